// internal/workers/access/evaluate-premium-access/handler.go
package evaluatepremiumaccess

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

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "evaluate-premium-access"

type AccessChecker interface {
	Preview(ctx context.Context, email string, now time.Time) (*access.Report, error)
}

type Handler struct {
	config     *Config
	checker    AccessChecker
	errHandler *apperrors.ErrorHandler
	now        func() time.Time
	logger     logger.Logger
}

func NewHandler(config *Config, checker AccessChecker, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		checker:    checker,
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

	h.completeJob(ctx, client, job, output)
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

// Execute evaluates access without delivering anything.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	email := strings.TrimSpace(input.Email)
	if !validation.ValidateEmail(email) {
		return nil, apperrors.NewInvalidInputError("email is not a valid address")
	}

	now := h.now()
	if input.EvaluateAt != nil {
		now = *input.EvaluateAt
	}

	report, err := h.checker.Preview(ctx, email, now)
	if err != nil {
		return nil, err
	}

	out := &Output{
		ReportID:        report.ReportID,
		UserID:          report.UserID,
		HasAccess:       report.Entitlement.HasAccess,
		IsPremium:       report.Entitlement.IsPremium,
		IsTrial:         report.Entitlement.IsTrial,
		TrialEndsAt:     report.Entitlement.TrialEndsAt,
		Status:          string(report.Status),
		Reason:          report.Reason,
		LinkedDevices:   report.Linkage.Linked,
		OrphanedDevices: report.Linkage.Orphaned,
	}
	if report.Integrity != nil {
		out.IntegrityWarning = report.Integrity.Message
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
		"hasAccess": output.HasAccess,
		"status":    output.Status,
	})
}
