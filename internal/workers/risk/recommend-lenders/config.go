// internal/workers/risk/recommend-lenders/config.go
package recommendlenders

import "time"

type Config struct {
	Timeout       time.Duration
	CacheTTL      time.Duration
	MaxCandidates int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:       30 * time.Second,
		CacheTTL:      15 * time.Minute,
		MaxCandidates: 25,
	}
}
