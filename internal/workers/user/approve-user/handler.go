// internal/workers/user/approve-user/handler.go
package approveuser

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
	TaskType = "approve-user"
)

var (
	ErrUserNotFound   = errors.New("USER_NOT_FOUND")
	ErrInvalidState   = errors.New("USER_NOT_PENDING")
	ErrInvalidInput   = errors.New("INVALID_INPUT")
	ErrApprovalFailed = errors.New("DATABASE_INSERT_FAILED")
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
		errorCode := "APPROVAL_FAILED"
		retries := int32(0)
		switch {
		case errors.Is(err, ErrUserNotFound):
			errorCode = "USER_NOT_FOUND"
		case errors.Is(err, ErrInvalidState):
			errorCode = "USER_NOT_PENDING"
		case errors.Is(err, ErrInvalidInput):
			errorCode = "INVALID_INPUT"
		case errors.Is(err, ErrApprovalFailed):
			errorCode = "DATABASE_INSERT_FAILED"
			retries = 2
		}
		h.failJob(client, job, errorCode, err.Error(), retries)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.UserID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}
	if input.Decision != "approved" && input.Decision != "rejected" {
		return nil, fmt.Errorf("%w: decision must be approved or rejected", ErrInvalidInput)
	}

	var status, email, role string
	err := h.db.QueryRowContext(ctx, `
		SELECT status, email, role FROM users WHERE id = $1`, input.UserID).
		Scan(&status, &email, &role)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, input.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrApprovalFailed, err)
	}

	if status != "pending_approval" {
		return nil, fmt.Errorf("%w: user %s is %s", ErrInvalidState, input.UserID, status)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = h.db.ExecContext(ctx, `
		UPDATE users SET status = $2, updated_at = $3 WHERE id = $1`,
		input.UserID, input.Decision, now)
	if err != nil {
		return nil, fmt.Errorf("%w: status update: %v", ErrApprovalFailed, err)
	}

	h.auditLog(ctx, input.UserID, input.Decision, input.ReviewerID)

	h.logger.Info("user reviewed", map[string]interface{}{
		"userId":   input.UserID,
		"decision": input.Decision,
	})

	// Downstream send-notification picks these up from the process variables.
	return &Output{
		UserID:           input.UserID,
		Status:           input.Decision,
		ReviewedAt:       now,
		NotificationType: "registration_" + input.Decision,
		RecipientEmail:   email,
		RecipientRole:    role,
	}, nil
}

func (h *Handler) auditLog(ctx context.Context, userID, decision, reviewerID string) {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, entity_type, entity_id, action, actor_id, created_at)
		VALUES ($1, 'user', $2, $3, $4, $5)`,
		uuid.New().String(), userID, decision, reviewerID,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		h.logger.Warn("audit log insert failed", map[string]interface{}{
			"userId": userID,
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
