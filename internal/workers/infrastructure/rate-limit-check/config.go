// internal/workers/infrastructure/rate-limit-check/config.go
package ratelimitcheck

import "time"

type Config struct {
	Timeout           time.Duration
	RequestsPerWindow int
	Window            time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout:           10 * time.Second,
		RequestsPerWindow: 120,
		Window:            time.Minute,
	}
}
