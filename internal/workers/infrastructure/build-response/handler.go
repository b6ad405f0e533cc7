// internal/workers/infrastructure/build-response/handler.go
package buildresponse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"lendmarket-workers/internal/common/logger"
	"lendmarket-workers/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/xeipuuv/gojsonschema"
)

const TaskType = "build-response"

var (
	ErrTemplateNotFound         = errors.New("TEMPLATE_NOT_FOUND")
	ErrTemplateValidationFailed = errors.New("TEMPLATE_VALIDATION_FAILED")
)

type templateCacheEntry struct {
	template *TemplateDefinition
	loadedAt time.Time
}

type Handler struct {
	config *Config
	logger logger.Logger
	cache  map[string]*templateCacheEntry
	mu     sync.RWMutex
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
		cache:  make(map[string]*templateCacheEntry),
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
		errorCode := "RESPONSE_BUILD_ERROR"
		switch {
		case errors.Is(err, ErrTemplateNotFound):
			errorCode = "TEMPLATE_NOT_FOUND"
		case errors.Is(err, ErrTemplateValidationFailed):
			errorCode = "TEMPLATE_VALIDATION_FAILED"
		}
		h.failJob(client, job, errorCode, err.Error())
		return
	}

	h.completeJob(client, job, output)
}

// execute shapes worker results into the wire envelope: validated data run
// through the template, stamped with app version and timing metadata.
func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	start := time.Now()

	// Error envelopes bypass templates; the error payload is the contract.
	if input.Error != nil {
		return &Output{Response: ResponsePayload{
			RequestID: input.RequestID,
			Status:    "error",
			Error: &ErrorPayload{
				Code:    input.Error.Code,
				Message: input.Error.Message,
			},
			Metadata: h.metadata(start),
		}}, nil
	}

	template, err := h.loadTemplate(input.TemplateID)
	if err != nil {
		return nil, err
	}

	if err := h.validateData(template.Schema, input.Data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateValidationFailed, err)
	}

	substituted := h.substituteTemplate(template.Template, input.Data)
	responseData, ok := substituted.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("template %s did not produce an object", input.TemplateID)
	}

	return &Output{Response: ResponsePayload{
		RequestID: input.RequestID,
		Status:    "success",
		Data:      responseData,
		Metadata:  h.metadata(start),
	}}, nil
}

func (h *Handler) metadata(start time.Time) ResponseMetadata {
	return ResponseMetadata{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.config.AppVersion,
		TookMs:    time.Since(start).Milliseconds(),
	}
}

// builtinTemplates cover the marketplace envelopes; a registry file can
// add to or override them.
var builtinTemplates = map[string]*TemplateDefinition{
	"loan-recommendations": {
		ID: "loan-recommendations",
		Schema: map[string]interface{}{
			"type":     "object",
			"required": []string{"lenderId", "recommendations"},
		},
		Template: map[string]interface{}{
			"lenderId":        "{{lenderId}}",
			"recommendations": "{{recommendations}}",
			"totalCandidates": "{{totalCandidates}}",
			"excludedCount":   "{{excludedCount}}",
		},
	},
	"lender-matches": {
		ID: "lender-matches",
		Schema: map[string]interface{}{
			"type":     "object",
			"required": []string{"loanId", "lenders"},
		},
		Template: map[string]interface{}{
			"loanId":          "{{loanId}}",
			"riskBand":        "{{riskBand}}",
			"lenders":         "{{lenders}}",
			"totalCandidates": "{{totalCandidates}}",
		},
	},
	"risk-assessment": {
		ID: "risk-assessment",
		Schema: map[string]interface{}{
			"type":     "object",
			"required": []string{"companyId", "riskScore", "riskBand"},
		},
		Template: map[string]interface{}{
			"companyId":      "{{companyId}}",
			"riskScore":      "{{riskScore}}",
			"riskBand":       "{{riskBand}}",
			"categoryScores": "{{categoryScores}}",
			"evaluatedAt":    "{{evaluatedAt}}",
		},
	},
}

func (h *Handler) loadTemplate(id string) (*TemplateDefinition, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: templateId is required", ErrTemplateNotFound)
	}

	h.mu.RLock()
	if entry, ok := h.cache[id]; ok && time.Since(entry.loadedAt) < h.config.CacheTTL {
		h.mu.RUnlock()
		return entry.template, nil
	}
	h.mu.RUnlock()

	if h.config.TemplateRegistry != "" {
		if t, err := h.loadFromRegistry(id); err == nil {
			return t, nil
		}
	}

	if t, ok := builtinTemplates[id]; ok {
		return t, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
}

func (h *Handler) loadFromRegistry(id string) (*TemplateDefinition, error) {
	registryBytes, err := os.ReadFile(h.config.TemplateRegistry)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}

	var registry struct {
		Templates []TemplateDefinition `json:"templates"`
	}
	if err := json.Unmarshal(registryBytes, &registry); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}

	for _, t := range registry.Templates {
		if t.ID == id {
			h.mu.Lock()
			h.cache[id] = &templateCacheEntry{
				template: &t,
				loadedAt: time.Now(),
			}
			h.mu.Unlock()
			return &t, nil
		}
	}

	return nil, ErrTemplateNotFound
}

func (h *Handler) validateData(schemaMap, data map[string]interface{}) error {
	if len(schemaMap) == 0 {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(schemaMap)
	documentLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("data validation failed: %v", errs)
	}

	return nil
}

func (h *Handler) substituteTemplate(templateData interface{}, inputData map[string]interface{}) interface{} {
	switch v := templateData.(type) {
	case string:
		if len(v) > 4 && strings.HasPrefix(v, "{{") && strings.HasSuffix(v, "}}") {
			key := strings.TrimSpace(v[2 : len(v)-2])
			return h.lookupNestedValue(inputData, key)
		}
		return v
	case map[string]interface{}:
		result := make(map[string]interface{})
		for k, item := range v {
			result[k] = h.substituteTemplate(item, inputData)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			result[i] = h.substituteTemplate(item, inputData)
		}
		return result
	default:
		return v
	}
}

func (h *Handler) lookupNestedValue(data map[string]interface{}, key string) interface{} {
	parts := strings.Split(key, ".")
	current := interface{}(data)

	for _, part := range parts {
		currentMap, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		val, exists := currentMap[part]
		if !exists {
			return nil
		}
		current = val
	}

	return current
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
