// internal/workers/user/approve-user/models.go
package approveuser

type Input struct {
	UserID     string `json:"userId"`
	Decision   string `json:"decision"`
	ReviewerID string `json:"reviewerId,omitempty"`
}

type Output struct {
	UserID           string `json:"userId"`
	Status           string `json:"status"`
	ReviewedAt       string `json:"reviewedAt"`
	NotificationType string `json:"notificationType"`
	RecipientEmail   string `json:"recipientEmail"`
	RecipientRole    string `json:"recipientRole"`
}
