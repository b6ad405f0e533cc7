// internal/workers/infrastructure/validate-session/handler.go
package validatesession

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lendmarket-workers/internal/common/auth"
	"lendmarket-workers/internal/common/logger"
	"lendmarket-workers/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/redis/go-redis/v9"
)

const (
	TaskType = "validate-session"
)

var (
	ErrSessionInvalid     = errors.New("SESSION_INVALID")
	ErrSessionExpired     = errors.New("SESSION_EXPIRED")
	ErrSessionCheckFailed = errors.New("SESSION_CHECK_FAILED")
)

// TokenValidator introspects bearer tokens with the identity provider.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*auth.TokenInfo, error)
}

type session struct {
	UserID    string `json:"userId"`
	Role      string `json:"role"`
	ExpiresAt string `json:"expiresAt"`
}

type Handler struct {
	config   *Config
	db       *sql.DB
	redis    *redis.Client
	identity TokenValidator
	logger   logger.Logger
}

func NewHandler(config *Config, db *sql.DB, redis *redis.Client, identity TokenValidator, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		db:       db,
		redis:    redis,
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
		errorCode := "SESSION_CHECK_FAILED"
		retries := int32(2)
		switch {
		case errors.Is(err, ErrSessionInvalid):
			errorCode = "SESSION_INVALID"
			retries = 0
		case errors.Is(err, ErrSessionExpired):
			errorCode = "SESSION_EXPIRED"
			retries = 0
		}
		h.failJob(client, job, errorCode, err.Error(), retries)
		return
	}

	h.completeJob(client, job, output)
}

// execute resolves a session token: Redis first, then the sessions table,
// then identity-provider introspection for bearer tokens.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.SessionToken == "" {
		return nil, fmt.Errorf("%w: session token is required", ErrSessionInvalid)
	}

	if h.redis != nil {
		if val, err := h.redis.Get(ctx, "session:"+input.SessionToken).Result(); err == nil {
			var s session
			if err := json.Unmarshal([]byte(val), &s); err == nil {
				return h.checkExpiry(&s)
			}
		}
	}

	var s session
	err := h.db.QueryRowContext(ctx, `
		SELECT user_id, role, expires_at FROM sessions WHERE token = $1`,
		input.SessionToken).Scan(&s.UserID, &s.Role, &s.ExpiresAt)
	if err == nil {
		out, checkErr := h.checkExpiry(&s)
		if checkErr == nil {
			h.cacheSession(ctx, input.SessionToken, &s)
		}
		return out, checkErr
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %v", ErrSessionCheckFailed, err)
	}

	if h.identity != nil {
		info, err := h.identity.ValidateToken(ctx, input.SessionToken)
		if err == nil && info.Active {
			return &Output{
				Valid:  true,
				UserID: info.Username,
				Role:   "bearer",
			}, nil
		}
	}

	return nil, fmt.Errorf("%w: unknown session token", ErrSessionInvalid)
}

func (h *Handler) checkExpiry(s *session) (*Output, error) {
	expires, err := time.Parse(time.RFC3339, s.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable expiry", ErrSessionInvalid)
	}
	if time.Now().After(expires) {
		return nil, fmt.Errorf("%w: expired at %s", ErrSessionExpired, s.ExpiresAt)
	}
	return &Output{
		Valid:     true,
		UserID:    s.UserID,
		Role:      s.Role,
		ExpiresAt: s.ExpiresAt,
	}, nil
}

func (h *Handler) cacheSession(ctx context.Context, token string, s *session) {
	if h.redis == nil {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	h.redis.Set(ctx, "session:"+token, data, h.config.CacheTTL)
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
