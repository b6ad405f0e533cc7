// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Risk & recommendation errors
	ErrCodeDataUnavailable  ErrorCode = "DATA_UNAVAILABLE"
	ErrCodeCompanyNotFound  ErrorCode = "COMPANY_NOT_FOUND"
	ErrCodeLoanNotFound     ErrorCode = "LOAN_NOT_FOUND"
	ErrCodeLenderNotFound   ErrorCode = "LENDER_NOT_FOUND"
	ErrCodeRiskUpsertFailed ErrorCode = "RISK_UPSERT_FAILED"

	// Input errors
	ErrCodeInvalidInput         ErrorCode = "INVALID_INPUT"
	ErrCodeInvalidFilterFormat  ErrorCode = "INVALID_FILTER_FORMAT"
	ErrCodeLoanValidationFailed ErrorCode = "LOAN_VALIDATION_FAILED"

	// Session & rate limiting
	ErrCodeSessionInvalid     ErrorCode = "SESSION_INVALID"
	ErrCodeSessionExpired     ErrorCode = "SESSION_EXPIRED"
	ErrCodeSessionCheckFailed ErrorCode = "SESSION_CHECK_FAILED"
	ErrCodeRateLimitExceeded  ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Database errors
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"
	ErrCodeInvalidQueryType         ErrorCode = "INVALID_QUERY_TYPE"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeDuplicateLoanRequest     ErrorCode = "DUPLICATE_LOAN_REQUEST"
	ErrCodeDuplicateUser            ErrorCode = "DUPLICATE_USER"
	ErrCodeLoanNotFundable          ErrorCode = "LOAN_NOT_FUNDABLE"

	// Search errors
	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeSearchQueryFailed             ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout                 ErrorCode = "SEARCH_TIMEOUT"
	ErrCodeIndexNotFound                 ErrorCode = "INDEX_NOT_FOUND"

	// Notification errors
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeTemplateNotFound       ErrorCode = "TEMPLATE_NOT_FOUND"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// BPMNError represents an error that can be thrown to the workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// NewDataUnavailableError marks a company whose financial or covenant data
// is missing or unparseable. Non-retryable: re-running the evaluation will
// not make the data appear.
func NewDataUnavailableError(companyID string, err error) *StandardError {
	details := fmt.Sprintf("companyId: %s", companyID)
	if err != nil {
		details = fmt.Sprintf("companyId: %s, error: %s", companyID, err.Error())
	}
	return &StandardError{
		Code:      ErrCodeDataUnavailable,
		Message:   "Company financial data missing or unparseable",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewCompanyNotFoundError(companyID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCompanyNotFound,
		Message:   "Company not found",
		Details:   fmt.Sprintf("companyId: %s", companyID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewLoanNotFoundError(loanID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeLoanNotFound,
		Message:   "Loan request not found",
		Details:   fmt.Sprintf("loanId: %s", loanID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewLenderNotFoundError(lenderID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeLenderNotFound,
		Message:   "Lender profile not found",
		Details:   fmt.Sprintf("lenderId: %s", lenderID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid request input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidFilterFormatError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidFilterFormat,
		Message:   "Invalid filter format",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewLoanValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeLoanValidationFailed,
		Message:   "Loan request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSessionInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionInvalid,
		Message:   "Invalid or not found session",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSessionExpiredError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionExpired,
		Message:   "Session has expired",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewQueryTimeoutError(queryType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Database query timeout",
		Details:   fmt.Sprintf("queryType: %s", queryType),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewDuplicateLoanRequestError(borrowerID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateLoanRequest,
		Message:   "An active loan request already exists for this borrower",
		Details:   fmt.Sprintf("borrowerId: %s", borrowerID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewLoanNotFundableError(loanID, status string) *StandardError {
	return &StandardError{
		Code:      ErrCodeLoanNotFundable,
		Message:   "Loan request is not in a fundable state",
		Details:   fmt.Sprintf("loanId: %s, status: %s", loanID, status),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSearchQueryFailedError(queryType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Elasticsearch query error",
		Details:   fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTemplateNotFoundError(templateID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateNotFound,
		Message:   "Template not found in registry",
		Details:   fmt.Sprintf("templateId: %s", templateID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// GetRetryCount returns the retry budget for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeSessionCheckFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeRiskUpsertFailed,
		ErrCodeNotificationSendFailed:
		return 3

	case ErrCodeQueryTimeout,
		ErrCodeSearchTimeout:
		return 2

	default:
		return 0
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// ConvertToBPMNError converts a StandardError into the form thrown to the
// workflow engine.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}
