// internal/workers/loan/create-loan-request/handler.go
package createloanrequest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lendmarket-workers/internal/common/logger"
	"lendmarket-workers/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "create-loan-request"
)

var (
	ErrDuplicateRequest = errors.New("DUPLICATE_LOAN_REQUEST")
	ErrInsertFailed     = errors.New("DATABASE_INSERT_FAILED")
	ErrInvalidInput     = errors.New("INVALID_INPUT")
)

type Handler struct {
	config *Config
	db     *sql.DB
	logger logger.Logger
}

func NewHandler(config *Config, db *sql.DB, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		db:     db,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	jobStart := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer func() {
		metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()
		metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(jobStart).Seconds())
	}()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err), 0)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		errorCode := "LOAN_CREATION_FAILED"
		retries := int32(0)
		switch {
		case errors.Is(err, ErrDuplicateRequest):
			errorCode = "DUPLICATE_LOAN_REQUEST"
		case errors.Is(err, ErrInvalidInput):
			errorCode = "INVALID_INPUT"
		case errors.Is(err, ErrInsertFailed):
			errorCode = "DATABASE_INSERT_FAILED"
			retries = 2
		}
		h.failJob(client, job, errorCode, err.Error(), retries)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.BorrowerID == "" || input.CompanyID == "" {
		return nil, fmt.Errorf("%w: borrowerId and companyId are required", ErrInvalidInput)
	}
	if input.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	// One open request per borrower and company at a time.
	var existing string
	err := h.db.QueryRowContext(ctx, `
		SELECT id FROM loan_requests
		WHERE borrower_id = $1 AND company_id = $2 AND status = 'pending'`,
		input.BorrowerID, input.CompanyID).Scan(&existing)
	if err == nil {
		return nil, fmt.Errorf("%w: open request %s exists", ErrDuplicateRequest, existing)
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("%w: duplicate check: %v", ErrInsertFailed, err)
	}

	loanID := uuid.New().String()
	now := time.Now().UTC()
	expiresAt := now.AddDate(0, 0, h.config.ExpiryDays)

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO loan_requests
			(id, borrower_id, company_id, amount, term_months, purpose, sector,
			 status, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8, $8, $9)`,
		loanID, input.BorrowerID, input.CompanyID, input.Amount,
		input.TermMonths, input.Purpose, input.Sector,
		now.Format(time.RFC3339), expiresAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsertFailed, err)
	}

	h.auditLog(ctx, loanID, input.BorrowerID)

	h.logger.Info("loan request created", map[string]interface{}{
		"loanId":     loanID,
		"borrowerId": input.BorrowerID,
		"companyId":  input.CompanyID,
	})

	return &Output{
		LoanID:    loanID,
		Status:    "pending",
		CreatedAt: now.Format(time.RFC3339),
		ExpiresAt: expiresAt.Format(time.RFC3339),
	}, nil
}

// auditLog is best effort; a failed audit row never fails the request.
func (h *Handler) auditLog(ctx context.Context, loanID, borrowerID string) {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, entity_type, entity_id, action, actor_id, created_at)
		VALUES ($1, 'loan_request', $2, 'created', $3, $4)`,
		uuid.New().String(), loanID, borrowerID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		h.logger.Warn("audit log insert failed", map[string]interface{}{
			"loanId": loanID,
			"error":  err.Error(),
		})
	}
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()

	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string, retries int32) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, errorCode).Inc()

	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
		"retries":      retries,
	})

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
