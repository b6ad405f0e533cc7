// internal/workers/risk/evaluate-company-risk/handler.go
package evaluatecompanyrisk

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lendmarket-workers/internal/common/logger"
	"lendmarket-workers/internal/common/metrics"
	"lendmarket-workers/internal/risk"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/redis/go-redis/v9"
)

const (
	TaskType = "evaluate-company-risk"
)

var (
	ErrCompanyNotFound  = errors.New("COMPANY_NOT_FOUND")
	ErrRiskUpsertFailed = errors.New("RISK_UPSERT_FAILED")
)

type Handler struct {
	config *Config
	db     *sql.DB
	redis  *redis.Client
	logger logger.Logger
}

func NewHandler(config *Config, db *sql.DB, redis *redis.Client, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		db:     db,
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
		errorCode := "RISK_EVALUATION_FAILED"
		retries := int32(0)
		if errors.Is(err, risk.ErrDataUnavailable) {
			errorCode = "DATA_UNAVAILABLE"
		} else if errors.Is(err, ErrCompanyNotFound) {
			errorCode = "COMPANY_NOT_FOUND"
		} else if errors.Is(err, ErrRiskUpsertFailed) {
			errorCode = "RISK_UPSERT_FAILED"
			retries = 2
		}
		h.failJob(client, job, errorCode, err.Error(), retries)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.CompanyID == "" {
		return nil, fmt.Errorf("%w: companyId is required", risk.ErrDataUnavailable)
	}

	raw := []byte(input.CovenantRatios)
	if len(raw) == 0 {
		var err error
		raw, err = h.loadCovenantRatios(ctx, input.CompanyID)
		if err != nil {
			return nil, err
		}
	}

	ratios, err := risk.ParseCovenantRatios(raw)
	if err != nil {
		return nil, fmt.Errorf("company %s: %w", input.CompanyID, err)
	}

	assessment := risk.Evaluate(ratios)

	if err := h.storeAssessment(ctx, input.CompanyID, assessment); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRiskUpsertFailed, err)
	}
	h.cacheAssessment(ctx, input.CompanyID, assessment)

	h.logger.Info("company risk evaluated", map[string]interface{}{
		"companyId": input.CompanyID,
		"score":     assessment.Score,
		"band":      assessment.Band,
	})

	categoryScores := make(map[string]int, len(assessment.CategoryScores))
	for cat, score := range assessment.CategoryScores {
		categoryScores[string(cat)] = score
	}

	return &Output{
		CompanyID:      input.CompanyID,
		RiskScore:      assessment.Score,
		RiskBand:       string(assessment.Band),
		CategoryScores: categoryScores,
		EvaluatedAt:    time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (h *Handler) loadCovenantRatios(ctx context.Context, companyID string) ([]byte, error) {
	var raw []byte
	err := h.db.QueryRowContext(ctx, `
		SELECT covenant_ratios FROM companies
		WHERE id = $1 AND is_active = true`, companyID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrCompanyNotFound, companyID)
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (h *Handler) storeAssessment(ctx context.Context, companyID string, a risk.Assessment) error {
	categoryJSON, err := json.Marshal(a.CategoryScores)
	if err != nil {
		return err
	}

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO risk_assessments (company_id, score, band, category_scores, evaluated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (company_id)
		DO UPDATE SET score = $2, band = $3, category_scores = $4, evaluated_at = NOW()`,
		companyID, a.Score, string(a.Band), categoryJSON)
	return err
}

// cacheAssessment is best-effort: a cache write failure never fails the job.
func (h *Handler) cacheAssessment(ctx context.Context, companyID string, a risk.Assessment) {
	if h.redis == nil {
		return
	}
	data, err := json.Marshal(map[string]interface{}{
		"score": a.Score,
		"band":  string(a.Band),
	})
	if err != nil {
		return
	}
	if err := h.redis.Set(ctx, "risk:assessment:"+companyID, data, h.config.CacheTTL).Err(); err != nil {
		h.logger.Warn("failed to cache assessment", map[string]interface{}{
			"companyId": companyID,
			"error":     err,
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
