// internal/workers/communication/send-notification/config.go
package sendnotification

import "time"

type Config struct {
	Timeout      time.Duration `yaml:"timeout"`
	AWSRegion    string        `yaml:"awsRegion"`
	FromEmail    string        `yaml:"fromEmail"`
	EmailEnabled bool          `yaml:"emailEnabled"`
	SMSEnabled   bool          `yaml:"smsEnabled"`
}

func DefaultConfig() *Config {
	return &Config{
		Timeout:      30 * time.Second,
		AWSRegion:    "eu-west-1",
		FromEmail:    "noreply@lendmarket.example",
		EmailEnabled: true,
		SMSEnabled:   false,
	}
}
