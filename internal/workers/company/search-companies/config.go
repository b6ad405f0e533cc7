// internal/workers/company/search-companies/config.go
package searchcompanies

import "time"

type Config struct {
	Timeout time.Duration
	Index   string
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
		Index:   "companies",
	}
}
