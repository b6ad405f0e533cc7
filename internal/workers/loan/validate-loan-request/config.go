// internal/workers/loan/validate-loan-request/config.go
package validateloanrequest

import "time"

type Config struct {
	Timeout          time.Duration
	MinAmount        float64
	MaxAmount        float64
	MinTermMonths    int
	MaxTermMonths    int
	MinPurposeLength int
	MaxPurposeLength int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:          10 * time.Second,
		MinAmount:        1000,
		MaxAmount:        5000000,
		MinTermMonths:    3,
		MaxTermMonths:    120,
		MinPurposeLength: 10,
		MaxPurposeLength: 500,
	}
}
