// internal/workers/infrastructure/rate-limit-check/handler.go
package ratelimitcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lendmarket-workers/internal/common/logger"
	"lendmarket-workers/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/redis/go-redis/v9"
)

const (
	TaskType = "rate-limit-check"
)

var (
	ErrInvalidInput     = errors.New("INVALID_INPUT")
	ErrRateLimitBackend = errors.New("RATE_LIMIT_CHECK_FAILED")
)

type Handler struct {
	config *Config
	redis  *redis.Client
	logger logger.Logger
}

func NewHandler(config *Config, redis *redis.Client, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		redis:  redis,
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
		errorCode := "RATE_LIMIT_CHECK_FAILED"
		retries := int32(2)
		if errors.Is(err, ErrInvalidInput) {
			errorCode = "INVALID_INPUT"
			retries = 0
		}
		h.failJob(client, job, errorCode, err.Error(), retries)
		return
	}

	h.completeJob(client, job, output)
}

// execute runs a fixed-window counter. The first hit in a window sets the
// expiry; an over-limit caller gets allowed=false with the window remainder
// as retryAfter, never a job failure.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ClientID == "" {
		return nil, fmt.Errorf("%w: clientId is required", ErrInvalidInput)
	}

	limit := input.Limit
	if limit <= 0 {
		limit = h.config.RequestsPerWindow
	}

	key := "ratelimit:" + input.ClientID
	count, err := h.redis.Incr(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRateLimitBackend, err)
	}
	if count == 1 {
		h.redis.Expire(ctx, key, h.config.Window)
	}

	if count > int64(limit) {
		ttl, err := h.redis.TTL(ctx, key).Result()
		if err != nil || ttl < 0 {
			ttl = h.config.Window
		}
		h.logger.Warn("rate limit exceeded", map[string]interface{}{
			"clientId": input.ClientID,
			"count":    count,
			"limit":    limit,
		})
		return &Output{
			Allowed:    false,
			Count:      count,
			Limit:      limit,
			RetryAfter: int64(ttl.Seconds()),
		}, nil
	}

	return &Output{
		Allowed: true,
		Count:   count,
		Limit:   limit,
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
