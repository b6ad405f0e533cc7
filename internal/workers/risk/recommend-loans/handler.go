// internal/workers/risk/recommend-loans/handler.go
package recommendloans

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"lendmarket-workers/internal/common/logger"
	"lendmarket-workers/internal/common/metrics"
	"lendmarket-workers/internal/models"
	"lendmarket-workers/internal/risk"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/redis/go-redis/v9"
)

const (
	TaskType = "recommend-loans"
)

var (
	ErrLenderNotFound       = errors.New("LENDER_NOT_FOUND")
	ErrRecommendationFailed = errors.New("RECOMMENDATION_FAILED")
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
		errorCode := "RECOMMENDATION_FAILED"
		if errors.Is(err, ErrLenderNotFound) {
			errorCode = "LENDER_NOT_FOUND"
		}
		h.failJob(client, job, errorCode, err.Error(), 0)
		return
	}

	h.completeJob(client, job, output)
}

// scored carries a candidate through the enrichment stage. Candidates whose
// risk data is unavailable come back with ok=false and are excluded, never
// defaulted into a band.
type scored struct {
	candidate models.LoanCandidate
	score     int
	band      risk.Band
	ok        bool
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	profile := input.LenderProfile
	if profile == nil {
		if input.LenderID == "" {
			return nil, fmt.Errorf("%w: lenderId is required", ErrLenderNotFound)
		}
		var err error
		profile, err = h.getLenderProfile(ctx, input.LenderID)
		if err != nil {
			return nil, err
		}
	}

	candidates, err := h.getCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecommendationFailed, err)
	}

	enriched, err := risk.MapBounded(ctx, candidates, h.config.EnrichmentConcurrency,
		func(ctx context.Context, c models.LoanCandidate) (scored, error) {
			score, band, err := h.assessmentFor(ctx, c.CompanyID)
			if err != nil {
				if errors.Is(err, risk.ErrDataUnavailable) {
					return scored{candidate: c}, nil
				}
				return scored{}, err
			}
			return scored{candidate: c, score: score, band: band, ok: true}, nil
		})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecommendationFailed, err)
	}

	excluded := 0
	recommendations := make([]Recommendation, 0, len(enriched))
	for _, s := range enriched {
		if !s.ok {
			excluded++
			continue
		}
		if !risk.Accepts(profile.AcceptedBands, s.band) {
			continue
		}
		if !risk.AmountWithin(s.candidate.Amount, profile.MinLoanAmount, profile.MaxLoanAmount) {
			continue
		}
		if !risk.SectorAccepted(profile.TargetSectors, s.candidate.Sector) {
			continue
		}
		recommendations = append(recommendations, Recommendation{
			LoanID:     s.candidate.ID,
			CompanyID:  s.candidate.CompanyID,
			Amount:     s.candidate.Amount,
			Sector:     s.candidate.Sector,
			RiskScore:  s.score,
			RiskBand:   string(s.band),
			MatchScore: risk.MatchScore(s.band, s.candidate.Amount, profile.MinLoanAmount, profile.MaxLoanAmount),
			CreatedAt:  s.candidate.CreatedAt,
		})
	}

	// Match score descending; ties go to the newest request.
	sort.Slice(recommendations, func(i, j int) bool {
		if recommendations[i].MatchScore != recommendations[j].MatchScore {
			return recommendations[i].MatchScore > recommendations[j].MatchScore
		}
		return recommendations[i].CreatedAt > recommendations[j].CreatedAt
	})

	limit := input.MaxResults
	if limit <= 0 || limit > h.config.MaxCandidates {
		limit = h.config.MaxCandidates
	}
	if len(recommendations) > limit {
		recommendations = recommendations[:limit]
	}

	h.logger.Info("loan recommendations built", map[string]interface{}{
		"lenderId":   profile.ID,
		"candidates": len(candidates),
		"matched":    len(recommendations),
		"excluded":   excluded,
	})

	return &Output{
		LenderID:        profile.ID,
		Recommendations: recommendations,
		TotalCandidates: len(candidates),
		ExcludedCount:   excluded,
	}, nil
}

func (h *Handler) getLenderProfile(ctx context.Context, lenderID string) (*models.LenderProfile, error) {
	cacheKey := "lender:profile:" + lenderID
	if h.redis != nil {
		if val, err := h.redis.Get(ctx, cacheKey).Result(); err == nil {
			var profile models.LenderProfile
			if err := json.Unmarshal([]byte(val), &profile); err == nil {
				return &profile, nil
			}
		}
	}

	var profile models.LenderProfile
	var acceptedBands, targetSectors []byte
	var minAmount, maxAmount sql.NullFloat64
	err := h.db.QueryRowContext(ctx, `
		SELECT id, name, accepted_bands, min_loan_amount, max_loan_amount, target_sectors
		FROM lender_profiles
		WHERE id = $1 AND is_active = true`, lenderID).Scan(
		&profile.ID, &profile.Name, &acceptedBands, &minAmount, &maxAmount, &targetSectors)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrLenderNotFound, lenderID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecommendationFailed, err)
	}

	if err := json.Unmarshal(acceptedBands, &profile.AcceptedBands); err != nil {
		profile.AcceptedBands = []string{}
	}
	if err := json.Unmarshal(targetSectors, &profile.TargetSectors); err != nil {
		profile.TargetSectors = []string{}
	}
	if minAmount.Valid {
		profile.MinLoanAmount = &minAmount.Float64
	}
	if maxAmount.Valid {
		profile.MaxLoanAmount = &maxAmount.Float64
	}

	if h.redis != nil {
		if data, err := json.Marshal(profile); err == nil {
			h.redis.Set(ctx, cacheKey, data, h.config.CacheTTL)
		}
	}

	return &profile, nil
}

func (h *Handler) getCandidates(ctx context.Context) ([]models.LoanCandidate, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, company_id, amount, sector, created_at
		FROM loan_requests
		WHERE status = 'pending' AND expires_at > NOW()
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []models.LoanCandidate
	for rows.Next() {
		var c models.LoanCandidate
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.Amount, &c.Sector, &c.CreatedAt); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// assessmentFor resolves a company's risk assessment: cache, then the
// risk_assessments table, then a fresh evaluation from covenant ratios.
func (h *Handler) assessmentFor(ctx context.Context, companyID string) (int, risk.Band, error) {
	cacheKey := "risk:assessment:" + companyID
	if h.redis != nil {
		if val, err := h.redis.Get(ctx, cacheKey).Result(); err == nil {
			var cached struct {
				Score int    `json:"score"`
				Band  string `json:"band"`
			}
			if err := json.Unmarshal([]byte(val), &cached); err == nil && risk.ValidBand(cached.Band) {
				return cached.Score, risk.Band(cached.Band), nil
			}
		}
	}

	var score int
	var band string
	err := h.db.QueryRowContext(ctx, `
		SELECT score, band FROM risk_assessments WHERE company_id = $1`, companyID).
		Scan(&score, &band)
	if err == nil && risk.ValidBand(band) {
		h.cacheScore(ctx, cacheKey, score, band)
		return score, risk.Band(band), nil
	}
	if err != nil && err != sql.ErrNoRows {
		return 0, "", err
	}

	var raw []byte
	err = h.db.QueryRowContext(ctx, `
		SELECT covenant_ratios FROM companies
		WHERE id = $1 AND is_active = true`, companyID).Scan(&raw)
	if err == sql.ErrNoRows {
		return 0, "", fmt.Errorf("company %s: %w", companyID, risk.ErrDataUnavailable)
	}
	if err != nil {
		return 0, "", err
	}

	ratios, err := risk.ParseCovenantRatios(raw)
	if err != nil {
		return 0, "", err
	}
	assessment := risk.Evaluate(ratios)
	h.cacheScore(ctx, cacheKey, assessment.Score, string(assessment.Band))
	return assessment.Score, assessment.Band, nil
}

func (h *Handler) cacheScore(ctx context.Context, key string, score int, band string) {
	if h.redis == nil {
		return
	}
	data, err := json.Marshal(map[string]interface{}{"score": score, "band": band})
	if err != nil {
		return
	}
	h.redis.Set(ctx, key, data, h.config.CacheTTL)
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
