// internal/workers/risk/evaluate-company-risk/config.go
package evaluatecompanyrisk

import "time"

type Config struct {
	Timeout  time.Duration
	CacheTTL time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout:  30 * time.Second,
		CacheTTL: 15 * time.Minute,
	}
}
