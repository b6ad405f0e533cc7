package models

import "time"

type Session struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"userId" db:"user_id"`
	Token        string    `json:"token" db:"token"`
	Role         string    `json:"role" db:"role"`
	IPAddress    string    `json:"ipAddress,omitempty" db:"ip_address"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	ExpiresAt    time.Time `json:"expiresAt" db:"expires_at"`
	LastActivity time.Time `json:"lastActivity" db:"last_activity"`
	IsActive     bool      `json:"isActive" db:"is_active"`
}

func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

func (s *Session) UpdateActivity() {
	s.LastActivity = time.Now()
}
