// internal/workers/loan/create-loan-request/config.go
package createloanrequest

import "time"

type Config struct {
	Timeout    time.Duration
	ExpiryDays int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:    30 * time.Second,
		ExpiryDays: 30,
	}
}
