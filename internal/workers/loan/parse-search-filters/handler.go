// internal/workers/loan/parse-search-filters/handler.go
package parsesearchfilters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"lendmarket-workers/internal/common/logger"
	"lendmarket-workers/internal/common/metrics"
	"lendmarket-workers/internal/risk"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "parse-search-filters"

var validSectors = map[string]bool{
	"retail": true, "manufacturing": true, "construction": true,
	"technology": true, "healthcare": true, "hospitality": true,
	"logistics": true, "agriculture": true,
}

var validSortOptions = map[string]bool{
	"relevance": true, "amount": true, "created_at": true, "match_score": true,
}

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
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
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, "INVALID_FILTER_FORMAT", err.Error())
		return
	}

	h.completeJob(client, job, output)
}

// execute normalizes free-form filters into the canonical shape. Invalid
// fragments are dropped with a warning, never a failure.
func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	if input.RawFilters == nil {
		input.RawFilters = make(map[string]interface{})
	}

	warnings := []string{}
	parsed := ParsedFilters{
		Sectors:     []string{},
		RiskBands:   []string{},
		Keywords:    "",
		SortBy:      "relevance",
		Pagination:  Pagination{Page: 1, Size: h.config.DefaultPageSize},
		AmountRange: AmountRange{Min: 0, Max: h.config.MaxAmount},
	}

	if raw, ok := input.RawFilters["sectors"]; ok {
		for _, s := range h.parseStringArray(raw) {
			if validSectors[s] {
				parsed.Sectors = append(parsed.Sectors, s)
			} else {
				warnings = append(warnings, fmt.Sprintf("unknown sector '%s' dropped", s))
			}
		}
	}

	if raw, ok := input.RawFilters["riskBands"]; ok {
		for _, b := range h.parseStringArray(raw) {
			b = strings.ToLower(b)
			if risk.ValidBand(b) {
				parsed.RiskBands = append(parsed.RiskBands, b)
			} else {
				warnings = append(warnings, fmt.Sprintf("unknown risk band '%s' dropped", b))
			}
		}
	}

	if raw, ok := input.RawFilters["amountRange"]; ok {
		if rangeMap, ok := raw.(map[string]interface{}); ok {
			if minRaw, exists := rangeMap["min"]; exists {
				if min, err := h.parseAmount(minRaw); err == nil && min >= 0 {
					parsed.AmountRange.Min = min
				} else {
					warnings = append(warnings, "invalid amount minimum dropped")
				}
			}
			if maxRaw, exists := rangeMap["max"]; exists {
				if max, err := h.parseAmount(maxRaw); err == nil && max > 0 && max <= h.config.MaxAmount {
					parsed.AmountRange.Max = max
				} else {
					warnings = append(warnings, "invalid amount maximum dropped")
				}
			}
			if parsed.AmountRange.Min > parsed.AmountRange.Max {
				warnings = append(warnings, "amount range inverted, reset to defaults")
				parsed.AmountRange = AmountRange{Min: 0, Max: h.config.MaxAmount}
			}
		} else {
			warnings = append(warnings, "amountRange is not an object, dropped")
		}
	}

	if raw, ok := input.RawFilters["keywords"]; ok {
		if s, ok := raw.(string); ok {
			parsed.Keywords = strings.TrimSpace(s)
		}
	}

	if raw, ok := input.RawFilters["sortBy"]; ok {
		if s, ok := raw.(string); ok {
			s = strings.TrimSpace(s)
			if validSortOptions[s] {
				parsed.SortBy = s
			} else {
				warnings = append(warnings, fmt.Sprintf("unknown sortBy '%s' dropped", s))
			}
		}
	}

	if raw, ok := input.RawFilters["pagination"]; ok {
		if pgMap, ok := raw.(map[string]interface{}); ok {
			if pageRaw, exists := pgMap["page"]; exists {
				if page, err := h.parseIndex(pageRaw); err == nil && page >= 1 {
					parsed.Pagination.Page = page
				} else {
					warnings = append(warnings, "invalid page dropped")
				}
			}
			if sizeRaw, exists := pgMap["size"]; exists {
				if size, err := h.parseIndex(sizeRaw); err == nil && size >= 1 {
					if size > h.config.MaxPageSize {
						size = h.config.MaxPageSize
					}
					parsed.Pagination.Size = size
				} else {
					warnings = append(warnings, "invalid page size dropped")
				}
			}
		}
	}

	h.logger.Info("filters parsed", map[string]interface{}{
		"sectors":   parsed.Sectors,
		"riskBands": parsed.RiskBands,
		"sortBy":    parsed.SortBy,
		"warnings":  len(warnings),
	})

	return &Output{ParsedFilters: parsed, Warnings: warnings}, nil
}

func (h *Handler) parseStringArray(raw interface{}) []string {
	result := []string{}
	if raw == nil {
		return result
	}

	seen := make(map[string]bool)
	add := func(s string) {
		trimmed := strings.TrimSpace(s)
		if trimmed != "" && !seen[trimmed] {
			result = append(result, trimmed)
			seen[trimmed] = true
		}
	}

	switch v := raw.(type) {
	case string:
		for _, s := range strings.Split(v, ",") {
			add(s)
		}
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	case []string:
		for _, s := range v {
			add(s)
		}
	}

	return result
}

func (h *Handler) parseAmount(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		cleaned := strings.NewReplacer(" ", "", "$", "", "EUR", "", "USD", "", ",", "").Replace(v)
		var amount float64
		if _, err := fmt.Sscanf(cleaned, "%f", &amount); err != nil {
			return 0, errors.New("not a number")
		}
		return amount, nil
	}
	return 0, errors.New("unsupported amount type")
}

func (h *Handler) parseIndex(raw interface{}) (int, error) {
	switch v := raw.(type) {
	case float64:
		if v < 0 || v != float64(int(v)) {
			return 0, errors.New("not a valid positive integer")
		}
		return int(v), nil
	case int:
		if v < 0 {
			return 0, errors.New("negative integer not allowed")
		}
		return v, nil
	}
	return 0, errors.New("unsupported index type")
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

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, errorCode).Inc()

	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
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
