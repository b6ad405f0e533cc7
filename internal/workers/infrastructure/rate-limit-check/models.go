// internal/workers/infrastructure/rate-limit-check/models.go
package ratelimitcheck

type Input struct {
	ClientID string `json:"clientId"`
	Limit    int    `json:"limit,omitempty"`
}

type Output struct {
	Allowed    bool  `json:"allowed"`
	Count      int64 `json:"count"`
	Limit      int   `json:"limit"`
	RetryAfter int64 `json:"retryAfter,omitempty"` // seconds
}
