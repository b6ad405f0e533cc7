// internal/workers/user/create-user-record/handler.go
package createuserrecord

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"lendmarket-workers/internal/common/auth"
	"lendmarket-workers/internal/common/logger"
	"lendmarket-workers/internal/common/metrics"
	"lendmarket-workers/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "create-user-record"
)

var (
	ErrDuplicateUser = errors.New("DUPLICATE_USER")
	ErrInvalidInput  = errors.New("INVALID_INPUT")
	ErrInsertFailed  = errors.New("DATABASE_INSERT_FAILED")
)

// IdentityProvider is the slice of the Keycloak admin API this worker needs.
type IdentityProvider interface {
	CreateUser(ctx context.Context, user *auth.User) (*auth.User, error)
	GetUserByEmail(ctx context.Context, email string) (*auth.User, error)
}

var registrationSchema = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"email":     {Type: "string", MinLength: intPtr(3), MaxLength: intPtr(254)},
		"firstName": {Type: "string", MinLength: intPtr(1), MaxLength: intPtr(100)},
		"lastName":  {Type: "string", MinLength: intPtr(1), MaxLength: intPtr(100)},
		"role":      {Type: "string", Enum: []string{"borrower", "lender", "admin"}},
		"phone":     {Type: "string"},
	},
	Required: []string{"email", "firstName", "lastName", "role"},
}

func intPtr(v int) *int { return &v }

type Handler struct {
	config   *Config
	db       *sql.DB
	identity IdentityProvider
	logger   logger.Logger
}

func NewHandler(config *Config, db *sql.DB, identity IdentityProvider, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		db:       db,
		identity: identity,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
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
		errorCode := "USER_CREATION_FAILED"
		retries := int32(0)
		switch {
		case errors.Is(err, ErrDuplicateUser):
			errorCode = "DUPLICATE_USER"
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
	payload := map[string]interface{}{
		"email":     input.Email,
		"firstName": input.FirstName,
		"lastName":  input.LastName,
		"role":      input.Role,
	}
	if input.Phone != "" {
		payload["phone"] = input.Phone
	}

	result := validation.ValidateInput(payload, registrationSchema)
	if !result.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput,
			strings.Join(result.GetErrorMessages(), "; "))
	}
	if !validation.ValidateEmail(input.Email) {
		return nil, fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}
	if input.Phone != "" && !validation.ValidatePhone(input.Phone) {
		return nil, fmt.Errorf("%w: malformed phone", ErrInvalidInput)
	}

	var existing string
	err := h.db.QueryRowContext(ctx, `
		SELECT id FROM users WHERE email = $1`, input.Email).Scan(&existing)
	if err == nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateUser, input.Email)
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("%w: duplicate check: %v", ErrInsertFailed, err)
	}

	userID := uuid.New().String()
	externalID := ""

	// The identity provider is the system of record for credentials; the
	// local row carries marketplace state. Provider registration failures
	// leave the user local-only rather than blocking registration.
	if h.identity != nil {
		created, err := h.identity.CreateUser(ctx, &auth.User{
			Email:     input.Email,
			FirstName: input.FirstName,
			LastName:  input.LastName,
			Username:  input.Email,
			Enabled:   true,
		})
		if err != nil {
			h.logger.Warn("identity provider registration failed", map[string]interface{}{
				"email": input.Email,
				"error": err.Error(),
			})
		} else {
			externalID = created.ID
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = h.db.ExecContext(ctx, `
		INSERT INTO users
			(id, external_id, email, first_name, last_name, role, phone,
			 status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending_approval', $8, $8)`,
		userID, externalID, input.Email, input.FirstName, input.LastName,
		input.Role, input.Phone, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsertFailed, err)
	}

	h.auditLog(ctx, userID)

	h.logger.Info("user record created", map[string]interface{}{
		"userId": userID,
		"role":   input.Role,
	})

	return &Output{
		UserID:    userID,
		Status:    "pending_approval",
		CreatedAt: now,
	}, nil
}

// auditLog is best effort; a failed audit row never fails the registration.
func (h *Handler) auditLog(ctx context.Context, userID string) {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, entity_type, entity_id, action, actor_id, created_at)
		VALUES ($1, 'user', $2, 'registered', $2, $3)`,
		uuid.New().String(), userID, time.Now().UTC().Format(time.RFC3339))
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
