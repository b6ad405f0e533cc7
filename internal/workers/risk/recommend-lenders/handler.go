// internal/workers/risk/recommend-lenders/handler.go
package recommendlenders

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
	TaskType = "recommend-lenders"
)

var (
	ErrLoanNotFound   = errors.New("LOAN_NOT_FOUND")
	ErrMatchingFailed = errors.New("LENDER_MATCHING_FAILED")
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
		errorCode := "LENDER_MATCHING_FAILED"
		switch {
		case errors.Is(err, ErrLoanNotFound):
			errorCode = "LOAN_NOT_FOUND"
		case errors.Is(err, risk.ErrDataUnavailable):
			errorCode = "DATA_UNAVAILABLE"
		}
		h.failJob(client, job, errorCode, err.Error(), 0)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.LoanID == "" {
		return nil, fmt.Errorf("%w: loanId is required", ErrLoanNotFound)
	}

	loan, err := h.getLoan(ctx, input.LoanID)
	if err != nil {
		return nil, err
	}

	// One assessment for the loan's company covers every lender comparison.
	score, band, err := h.assessmentFor(ctx, loan.CompanyID)
	if err != nil {
		return nil, err
	}

	lenders, err := h.getActiveLenders(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMatchingFailed, err)
	}

	matches := make([]LenderMatch, 0, len(lenders))
	for _, l := range lenders {
		if !risk.Accepts(l.AcceptedBands, band) {
			continue
		}
		if !risk.AmountWithin(loan.Amount, l.MinLoanAmount, l.MaxLoanAmount) {
			continue
		}
		if !risk.SectorAccepted(l.TargetSectors, loan.Sector) {
			continue
		}
		matches = append(matches, LenderMatch{
			LenderID:        l.ID,
			Name:            l.Name,
			ContactEmail:    l.ContactEmail,
			FundedLoanCount: l.FundedLoanCount,
			MatchScore:      risk.MatchScore(band, loan.Amount, l.MinLoanAmount, l.MaxLoanAmount),
		})
	}

	// Match score descending; ties go to the more experienced lender.
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].MatchScore != matches[j].MatchScore {
			return matches[i].MatchScore > matches[j].MatchScore
		}
		if matches[i].FundedLoanCount != matches[j].FundedLoanCount {
			return matches[i].FundedLoanCount > matches[j].FundedLoanCount
		}
		return matches[i].LenderID < matches[j].LenderID
	})

	limit := input.MaxResults
	if limit <= 0 || limit > h.config.MaxCandidates {
		limit = h.config.MaxCandidates
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}

	h.logger.Info("lender matches built", map[string]interface{}{
		"loanId":     loan.ID,
		"riskBand":   string(band),
		"candidates": len(lenders),
		"matched":    len(matches),
	})

	return &Output{
		LoanID:          loan.ID,
		RiskScore:       score,
		RiskBand:        string(band),
		Lenders:         matches,
		TotalCandidates: len(lenders),
	}, nil
}

func (h *Handler) getLoan(ctx context.Context, loanID string) (*models.LoanCandidate, error) {
	var loan models.LoanCandidate
	err := h.db.QueryRowContext(ctx, `
		SELECT id, company_id, amount, sector, created_at
		FROM loan_requests
		WHERE id = $1`, loanID).Scan(
		&loan.ID, &loan.CompanyID, &loan.Amount, &loan.Sector, &loan.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrLoanNotFound, loanID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMatchingFailed, err)
	}
	return &loan, nil
}

func (h *Handler) getActiveLenders(ctx context.Context) ([]models.LenderProfile, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, name, accepted_bands, min_loan_amount, max_loan_amount,
		       target_sectors, contact_email, funded_loan_count
		FROM lender_profiles
		WHERE is_active = true
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lenders []models.LenderProfile
	for rows.Next() {
		var l models.LenderProfile
		var acceptedBands, targetSectors []byte
		var minAmount, maxAmount sql.NullFloat64
		if err := rows.Scan(&l.ID, &l.Name, &acceptedBands, &minAmount, &maxAmount,
			&targetSectors, &l.ContactEmail, &l.FundedLoanCount); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(acceptedBands, &l.AcceptedBands); err != nil {
			l.AcceptedBands = []string{}
		}
		if err := json.Unmarshal(targetSectors, &l.TargetSectors); err != nil {
			l.TargetSectors = []string{}
		}
		if minAmount.Valid {
			l.MinLoanAmount = &minAmount.Float64
		}
		if maxAmount.Valid {
			l.MaxLoanAmount = &maxAmount.Float64
		}
		lenders = append(lenders, l)
	}
	return lenders, rows.Err()
}

// assessmentFor resolves the company's risk assessment: cache, then the
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
		return 0, "", fmt.Errorf("%w: %v", ErrMatchingFailed, err)
	}

	var raw []byte
	err = h.db.QueryRowContext(ctx, `
		SELECT covenant_ratios FROM companies
		WHERE id = $1 AND is_active = true`, companyID).Scan(&raw)
	if err == sql.ErrNoRows {
		return 0, "", fmt.Errorf("company %s: %w", companyID, risk.ErrDataUnavailable)
	}
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrMatchingFailed, err)
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
