// internal/workers/loan/parse-search-filters/config.go
package parsesearchfilters

import "time"

type Config struct {
	Timeout         time.Duration
	DefaultPageSize int
	MaxPageSize     int
	MaxAmount       float64
}

func LoadConfig() *Config {
	return &Config{
		Timeout:         10 * time.Second,
		DefaultPageSize: 20,
		MaxPageSize:     100,
		MaxAmount:       5000000,
	}
}
