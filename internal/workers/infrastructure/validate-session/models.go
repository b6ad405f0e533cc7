// internal/workers/infrastructure/validate-session/models.go
package validatesession

type Input struct {
	SessionToken string `json:"sessionToken"`
}

type Output struct {
	Valid     bool   `json:"valid"`
	UserID    string `json:"userId"`
	Role      string `json:"role"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}
