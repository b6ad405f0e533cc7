// internal/workers/communication/contact-message/config.go
package contactmessage

import "time"

type Config struct {
	Timeout          time.Duration `yaml:"timeout"`
	AWSRegion        string        `yaml:"awsRegion"`
	SupportEmail     string        `yaml:"supportEmail"`
	MaxMessageLength int           `yaml:"maxMessageLength"`
}

func DefaultConfig() *Config {
	return &Config{
		Timeout:          30 * time.Second,
		AWSRegion:        "eu-west-1",
		SupportEmail:     "support@lendmarket.example",
		MaxMessageLength: 5000,
	}
}
