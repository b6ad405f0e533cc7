// internal/workers/communication/contact-message/handler.go
package contactmessage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	commonaws "lendmarket-workers/internal/common/aws"
	"lendmarket-workers/internal/common/logger"
	"lendmarket-workers/internal/common/metrics"
	"lendmarket-workers/internal/common/validation"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "contact-message"
)

var (
	ErrInvalidInput = errors.New("INVALID_INPUT")
	ErrStoreFailed  = errors.New("MESSAGE_STORE_FAILED")
)

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type Handler struct {
	config    *Config
	db        *sql.DB
	logger    logger.Logger
	sesClient SESService
}

func NewHandler(config *Config, db *sql.DB, log logger.Logger) (*Handler, error) {
	sesClient, err := commonaws.NewSESClient(context.Background(), config.AWSRegion)
	if err != nil {
		return nil, fmt.Errorf("create SES client: %w", err)
	}
	return NewHandlerWithClient(config, db, sesClient, log), nil
}

func NewHandlerWithClient(config *Config, db *sql.DB, sesClient SESService, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		db:        db,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
		sesClient: sesClient,
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
		errorCode := "MESSAGE_STORE_FAILED"
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

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if err := h.validate(input); err != nil {
		return nil, err
	}

	messageID := uuid.New().String()
	receivedAt := time.Now().UTC().Format(time.RFC3339)

	_, err := h.db.ExecContext(ctx, `
		INSERT INTO contact_messages (id, name, email, subject, message, status, created_at)
		VALUES ($1, $2, $3, $4, $5, 'open', $6)`,
		messageID, input.Name, input.Email, input.Subject, input.Message, receivedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}

	// The message row is the source of truth; the acknowledgement is courtesy.
	ackSent := true
	if err := h.sendAcknowledgement(ctx, input); err != nil {
		h.logger.Warn("acknowledgement email failed", map[string]interface{}{
			"messageId": messageID,
			"error":     err.Error(),
		})
		ackSent = false
	}

	return &Output{
		MessageID:  messageID,
		Status:     "open",
		AckSent:    ackSent,
		ReceivedAt: receivedAt,
	}, nil
}

func (h *Handler) validate(input *Input) error {
	var problems []string
	if strings.TrimSpace(input.Name) == "" {
		problems = append(problems, "name is required")
	}
	if !validation.ValidateEmail(input.Email) {
		problems = append(problems, "email is invalid")
	}
	if strings.TrimSpace(input.Message) == "" {
		problems = append(problems, "message is required")
	}
	if len(input.Message) > h.config.MaxMessageLength {
		problems = append(problems, fmt.Sprintf("message exceeds %d characters", h.config.MaxMessageLength))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}

func (h *Handler) sendAcknowledgement(ctx context.Context, input *Input) error {
	subject := "We received your message"
	if input.Subject != "" {
		subject = "Re: " + input.Subject
	}
	body := fmt.Sprintf(
		"Hi %s,\n\nThanks for contacting us. Your message has been logged and our support team will reply within two business days.\n\nYour message:\n%s\n",
		input.Name, input.Message)

	_, err := h.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{input.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(h.config.SupportEmail),
	})
	return err
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
