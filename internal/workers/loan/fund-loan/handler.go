// internal/workers/loan/fund-loan/handler.go
package fundloan

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
	TaskType = "fund-loan"
)

var (
	ErrLoanNotFound    = errors.New("LOAN_NOT_FOUND")
	ErrLoanNotFundable = errors.New("LOAN_NOT_FUNDABLE")
	ErrAmountMismatch  = errors.New("AMOUNT_MISMATCH")
	ErrFundingFailed   = errors.New("DATABASE_INSERT_FAILED")
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
		errorCode := "FUNDING_FAILED"
		retries := int32(0)
		switch {
		case errors.Is(err, ErrLoanNotFound):
			errorCode = "LOAN_NOT_FOUND"
		case errors.Is(err, ErrLoanNotFundable):
			errorCode = "LOAN_NOT_FUNDABLE"
		case errors.Is(err, ErrAmountMismatch):
			errorCode = "AMOUNT_MISMATCH"
		case errors.Is(err, ErrFundingFailed):
			errorCode = "DATABASE_INSERT_FAILED"
			retries = 2
		}
		h.failJob(client, job, errorCode, err.Error(), retries)
		return
	}

	h.completeJob(client, job, output)
}

// execute moves a pending loan to funded inside a single transaction. The
// row lock keeps two lenders from funding the same request.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.LoanID == "" || input.LenderID == "" {
		return nil, fmt.Errorf("%w: loanId and lenderId are required", ErrLoanNotFound)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", ErrFundingFailed, err)
	}
	defer tx.Rollback()

	var status string
	var amount float64
	err = tx.QueryRowContext(ctx, `
		SELECT status, amount FROM loan_requests
		WHERE id = $1
		FOR UPDATE`, input.LoanID).Scan(&status, &amount)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrLoanNotFound, input.LoanID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFundingFailed, err)
	}

	if status != "pending" {
		return nil, fmt.Errorf("%w: loan %s is %s", ErrLoanNotFundable, input.LoanID, status)
	}
	if input.Amount != amount {
		return nil, fmt.Errorf("%w: offered %.2f, requested %.2f",
			ErrAmountMismatch, input.Amount, amount)
	}

	fundingID := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO fundings (id, loan_id, lender_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		fundingID, input.LoanID, input.LenderID, amount, now)
	if err != nil {
		return nil, fmt.Errorf("%w: funding record: %v", ErrFundingFailed, err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE loan_requests SET status = 'funded', updated_at = $2
		WHERE id = $1`, input.LoanID, now)
	if err != nil {
		return nil, fmt.Errorf("%w: status update: %v", ErrFundingFailed, err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE lender_profiles SET funded_loan_count = funded_loan_count + 1
		WHERE id = $1`, input.LenderID)
	if err != nil {
		return nil, fmt.Errorf("%w: lender counter: %v", ErrFundingFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrFundingFailed, err)
	}

	h.logger.Info("loan funded", map[string]interface{}{
		"loanId":    input.LoanID,
		"lenderId":  input.LenderID,
		"fundingId": fundingID,
	})

	return &Output{
		FundingID: fundingID,
		LoanID:    input.LoanID,
		Status:    "funded",
		FundedAt:  now,
	}, nil
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
