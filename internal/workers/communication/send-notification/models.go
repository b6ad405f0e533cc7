// internal/workers/communication/send-notification/models.go
package sendnotification

const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"

	RecipientTypeBorrower = "borrower"
	RecipientTypeLender   = "lender"
	RecipientTypeAdmin    = "admin"

	TypeRegistrationApproved = "registration_approved"
	TypeRegistrationRejected = "registration_rejected"
	TypeLoanFunded           = "loan_funded"
	TypeNewRecommendations   = "new_recommendations"
	TypeContactReceived      = "contact_received"
)

type Input struct {
	NotificationType string                 `json:"notificationType"`
	RecipientID      string                 `json:"recipientId"`
	RecipientType    string                 `json:"recipientType"`
	Priority         string                 `json:"priority"`
	LoanID           string                 `json:"loanId,omitempty"`
	Amount           float64                `json:"amount,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

type Output struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"status"`
	SentAt         string `json:"sentAt"`
}
