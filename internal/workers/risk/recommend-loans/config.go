// internal/workers/risk/recommend-loans/config.go
package recommendloans

import "time"

type Config struct {
	Timeout               time.Duration
	CacheTTL              time.Duration
	EnrichmentConcurrency int
	MaxCandidates         int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:               30 * time.Second,
		CacheTTL:              15 * time.Minute,
		EnrichmentConcurrency: 5,
		MaxCandidates:         25,
	}
}
