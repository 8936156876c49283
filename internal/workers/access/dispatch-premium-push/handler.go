// internal/workers/access/dispatch-premium-push/handler.go
package dispatchpremiumpush

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"premium-push-workers/internal/access"
	apperrors "premium-push-workers/internal/common/errors"
	"premium-push-workers/internal/common/logger"
	"premium-push-workers/internal/common/metrics"
	"premium-push-workers/internal/common/validation"
	"premium-push-workers/internal/push"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

type AccessRunner interface {
	Run(ctx context.Context, email string, now time.Time, payload push.Payload) (*access.Report, error)
}

type Handler struct {
	config     *Config
	runner     AccessRunner
	errHandler *apperrors.ErrorHandler
	now        func() time.Time
	logger     logger.Logger
}

func NewHandler(config *Config, runner AccessRunner, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		runner:     runner,
		errHandler: apperrors.NewErrorHandler(l),
		now:        time.Now,
		logger:     l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job)
	if err != nil {
		h.errHandler.HandleJobError(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.errHandler.HandleJobError(ctx, client, job, err)
		return
	}

	// the batch may have used up ctx; completion still has to reach the broker
	cctx, ccancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer ccancel()
	h.completeJob(cctx, client, job, output)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	vars, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, apperrors.NewInvalidInputError("variables are not a JSON object")
	}
	if res, err := validation.ValidateVariables(h.config.InputSchema, vars); err != nil {
		return nil, err
	} else if !res.Valid {
		return nil, apperrors.NewInvalidInputError(strings.Join(res.GetErrorMessages(), "; "))
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	return &input, nil
}

// Execute runs a full access check and dispatches to linked devices.
// Per-device failures are part of the Output, not errors.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	email := strings.TrimSpace(input.Email)
	if !validation.ValidateEmail(email) {
		return nil, apperrors.NewInvalidInputError("email is not a valid address")
	}
	if strings.TrimSpace(input.Title) == "" || strings.TrimSpace(input.Body) == "" {
		return nil, apperrors.NewInvalidInputError("title and body are required")
	}

	now := h.now()
	if input.EvaluateAt != nil {
		now = *input.EvaluateAt
	}

	report, err := h.runner.Run(ctx, email, now, push.Payload{
		Title: input.Title,
		Body:  input.Body,
		Data:  input.Data,
	})
	if err != nil {
		return nil, err
	}

	out := &Output{
		ReportID:  report.ReportID,
		Status:    string(report.Status),
		Reason:    report.Reason,
		HasAccess: report.Entitlement.HasAccess,
	}
	if b := report.Dispatch; b != nil {
		out.Total, out.Delivered, out.Failed, out.Skipped = b.Total, b.Delivered, b.Failed, b.Skipped
		out.Cancelled = b.Cancelled
		if len(b.FailuresByKind) > 0 {
			out.FailuresByKind = make(map[string]int, len(b.FailuresByKind))
			for k, n := range b.FailuresByKind {
				out.FailuresByKind[string(k)] = n
			}
		}
		for _, w := range b.ConfigWarnings {
			out.ConfigWarnings = append(out.ConfigWarnings, w.Message)
		}
	}
	return out, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":    job.Key,
		"reportId":  output.ReportID,
		"status":    output.Status,
		"delivered": output.Delivered,
		"failed":    output.Failed,
	})
}
