// internal/workers/infrastructure/build-response/models.go
package buildresponse

type Input struct {
	TemplateID string                 `json:"templateId"`
	RequestID  string                 `json:"requestId"`
	Data       map[string]interface{} `json:"data"`
	Error      *ErrorPayload          `json:"error,omitempty"`
}

type Output struct {
	Response ResponsePayload `json:"response"`
}

type ResponsePayload struct {
	RequestID string                 `json:"requestId"`
	Status    string                 `json:"status"` // "success" or "error"
	Data      map[string]interface{} `json:"data,omitempty"`
	Error     *ErrorPayload          `json:"error,omitempty"`
	Metadata  ResponseMetadata       `json:"metadata"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ResponseMetadata struct {
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	TookMs    int64  `json:"tookMs"`
}

// TemplateDefinition is one entry of the response-template registry.
type TemplateDefinition struct {
	ID       string                 `json:"id"`
	Schema   map[string]interface{} `json:"schema"`
	Template map[string]interface{} `json:"template"`
	Version  string                 `json:"version,omitempty"`
}
