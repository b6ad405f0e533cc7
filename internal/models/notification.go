package models

type Notification struct {
	ID            string                 `json:"id"`
	RecipientID   string                 `json:"recipientId"`
	RecipientType string                 `json:"recipientType"` // "borrower", "lender" or "admin"
	Type          string                 `json:"type"`          // "user_approved", "loan_funded", "contact_received"
	Channel       string                 `json:"channel"`       // "email", "sms"
	Status        string                 `json:"status"`        // "sent", "failed", "disabled"
	Payload       map[string]interface{} `json:"payload"`
	SentAt        string                 `json:"sentAt"`
	CreatedAt     string                 `json:"createdAt"`
}

type NotificationTemplate struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Version string `json:"version"`
}

type ContactMessage struct {
	ID        string `json:"id"`
	UserID    string `json:"userId,omitempty"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Status    string `json:"status"` // "open", "answered", "closed"
	CreatedAt string `json:"createdAt"`
}
