// internal/workers/loan/validate-loan-request/handler.go
package validateloanrequest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"lendmarket-workers/internal/common/logger"
	"lendmarket-workers/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/xeipuuv/gojsonschema"
)

const (
	TaskType = "validate-loan-request"
)

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
		h.failJob(client, job, "VALIDATION_ERROR", err.Error())
		return
	}

	h.completeJob(client, job, output)
}

// execute validates the payload against the request schema. An invalid
// payload is a normal outcome (valid=false), not a job failure.
func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	if input.LoanRequest == nil {
		return &Output{
			Valid:  false,
			Errors: []string{"loanRequest: payload is required"},
		}, nil
	}

	schemaLoader := gojsonschema.NewGoLoader(h.requestSchema())
	documentLoader := gojsonschema.NewGoLoader(input.LoanRequest)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	if result.Valid() {
		return &Output{Valid: true, Errors: []string{}}, nil
	}

	errs := make([]string, len(result.Errors()))
	for i, desc := range result.Errors() {
		errs[i] = desc.String()
	}
	sort.Strings(errs)

	h.logger.Info("loan request rejected", map[string]interface{}{
		"errorCount": len(errs),
	})

	return &Output{Valid: false, Errors: errs}, nil
}

func (h *Handler) requestSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []string{"borrowerId", "companyId", "amount", "termMonths", "purpose"},
		"properties": map[string]interface{}{
			"borrowerId": map[string]interface{}{
				"type":      "string",
				"minLength": 1,
			},
			"companyId": map[string]interface{}{
				"type":      "string",
				"minLength": 1,
			},
			"amount": map[string]interface{}{
				"type":    "number",
				"minimum": h.config.MinAmount,
				"maximum": h.config.MaxAmount,
			},
			"termMonths": map[string]interface{}{
				"type":    "integer",
				"minimum": h.config.MinTermMonths,
				"maximum": h.config.MaxTermMonths,
			},
			"purpose": map[string]interface{}{
				"type":      "string",
				"minLength": h.config.MinPurposeLength,
				"maxLength": h.config.MaxPurposeLength,
			},
			"sector": map[string]interface{}{
				"type": "string",
			},
		},
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
