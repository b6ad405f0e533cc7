// internal/workers/communication/contact-message/models.go
package contactmessage

type Input struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
}

type Output struct {
	MessageID  string `json:"messageId"`
	Status     string `json:"status"`
	AckSent    bool   `json:"ackSent"`
	ReceivedAt string `json:"receivedAt"`
}
