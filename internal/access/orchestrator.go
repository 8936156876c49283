// internal/access/orchestrator.go
package access

import (
	"context"
	"time"

	"premium-push-workers/internal/common/logger"
	"premium-push-workers/internal/common/metrics"
	"premium-push-workers/internal/dispatch"
	"premium-push-workers/internal/entitlement"
	"premium-push-workers/internal/linkage"
	"premium-push-workers/internal/models"
	"premium-push-workers/internal/push"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Status string

const (
	StatusNotEntitled          Status = "not_entitled"
	StatusNoDeliverableDevices Status = "no_deliverable_devices"
	StatusDispatched           Status = "dispatched"
	StatusCancelled            Status = "cancelled"
	StatusPreview              Status = "preview"
)

const (
	ReasonNotEntitled          = "not entitled"
	ReasonNoDeliverableDevices = "eligible, zero deliverable devices"
	ReasonDispatched           = "dispatched to linked devices"
	ReasonCancelled            = "cancelled during dispatch"
	ReasonPreview              = "eligible, dispatch not requested"

	defaultOrphanWindow = 15 * time.Minute
	hookTimeout         = 5 * time.Second
)

type UserLookup interface {
	FindActiveUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type DeviceQuery interface {
	ListActiveDevices(ctx context.Context, userID *string) ([]models.Device, error)
}

type Evaluator interface {
	Evaluate(user models.User, now time.Time) entitlement.Result
}

type Dispatcher interface {
	Dispatch(ctx context.Context, targets []dispatch.Target, payload push.Payload) *dispatch.BatchResult
}

// ReportSink persists finished reports.
type ReportSink interface {
	Save(ctx context.Context, report *Report) error
}

type ConfigAlerter interface {
	NotifyConfigWarning(ctx context.Context, w dispatch.ConfigWarning) (bool, error)
}

// Report is the structured result of one access check.
type Report struct {
	ReportID       string                    `json:"reportId"`
	Email          string                    `json:"email"`
	UserID         string                    `json:"userId"`
	Plan           models.Plan               `json:"plan"`
	EvaluatedAt    time.Time                 `json:"evaluatedAt"`
	Status         Status                    `json:"status"`
	Reason         string                    `json:"reason"`
	Entitlement    entitlement.Result        `json:"entitlement"`
	Linkage        linkage.Summary           `json:"linkage"`
	Integrity      *linkage.IntegrityWarning `json:"integrityWarning,omitempty"`
	RecentOrphans  []linkage.DevicePreview   `json:"recentOrphans,omitempty"`
	LinkedDevices  []linkage.DevicePreview   `json:"linkedDevices,omitempty"`
	PlannedTargets int                       `json:"plannedTargets"`
	Dispatch       *dispatch.BatchResult     `json:"dispatch,omitempty"`
	Warnings       []string                  `json:"warnings,omitempty"`
}

type Orchestrator struct {
	users        UserLookup
	devices      DeviceQuery
	evaluator    Evaluator
	dispatcher   Dispatcher
	sink         ReportSink
	alerter      ConfigAlerter
	tracer       trace.Tracer
	orphanWindow time.Duration
	logger       logger.Logger
}

type Option func(*Orchestrator)

func WithReportSink(s ReportSink) Option {
	return func(o *Orchestrator) { o.sink = s }
}

func WithConfigAlerter(a ConfigAlerter) Option {
	return func(o *Orchestrator) { o.alerter = a }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithOrphanWindow sets how recent an orphaned device must be to be listed
// as a likely candidate in the report.
func WithOrphanWindow(d time.Duration) Option {
	return func(o *Orchestrator) { o.orphanWindow = d }
}

func New(users UserLookup, devices DeviceQuery, evaluator Evaluator, dispatcher Dispatcher, log logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		users:        users,
		devices:      devices,
		evaluator:    evaluator,
		dispatcher:   dispatcher,
		tracer:       otel.Tracer("premium-push-workers/access"),
		orphanWindow: defaultOrphanWindow,
		logger:       log.WithFields(map[string]interface{}{"component": "orchestrator"}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run looks up the user, evaluates access at now, resolves devices and
// dispatches to linked devices when the user has access. Only collaborator
// failures are returned as errors; every other outcome is a Report.
func (o *Orchestrator) Run(ctx context.Context, email string, now time.Time, payload push.Payload) (*Report, error) {
	ctx, span := o.tracer.Start(ctx, "access.Run")
	defer span.End()

	report, res, err := o.prepare(ctx, email, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if report.Status == "" {
		batch := o.dispatcher.Dispatch(ctx, dispatch.TargetsFor(res.Linked), payload)
		report.Dispatch = batch
		report.Status, report.Reason = StatusDispatched, ReasonDispatched
		if batch.Cancelled {
			report.Status, report.Reason = StatusCancelled, ReasonCancelled
		}
		for _, w := range batch.ConfigWarnings {
			report.Warnings = append(report.Warnings, w.Message)
		}
		o.alert(ctx, batch.ConfigWarnings)
	}

	span.SetAttributes(
		attribute.String("access.status", string(report.Status)),
		attribute.Bool("access.has_access", report.Entitlement.HasAccess),
		attribute.Int("access.linked_devices", report.Linkage.Linked),
	)
	metrics.AccessReports.WithLabelValues(string(report.Status)).Inc()
	o.save(ctx, report)

	o.logger.Info("access check finished", map[string]interface{}{
		"reportId": report.ReportID,
		"userId":   report.UserID,
		"status":   string(report.Status),
		"reason":   report.Reason,
	})
	return report, nil
}

// Preview runs the same checks as Run without delivering anything.
func (o *Orchestrator) Preview(ctx context.Context, email string, now time.Time) (*Report, error) {
	ctx, span := o.tracer.Start(ctx, "access.Preview")
	defer span.End()

	report, _, err := o.prepare(ctx, email, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if report.Status == "" {
		report.Status, report.Reason = StatusPreview, ReasonPreview
	}
	metrics.AccessReports.WithLabelValues(string(report.Status)).Inc()
	return report, nil
}

// prepare leaves Status empty when the user is entitled and has at least one
// linked device.
func (o *Orchestrator) prepare(ctx context.Context, email string, now time.Time) (*Report, linkage.Resolution, error) {
	user, err := o.users.FindActiveUserByEmail(ctx, email)
	if err != nil {
		return nil, linkage.Resolution{}, err
	}

	result := o.evaluator.Evaluate(*user, now)
	metrics.EntitlementEvaluations.WithLabelValues(accessLabel(result)).Inc()

	// Unscoped on purpose: orphaned devices only show up in the full pool.
	pool, err := o.devices.ListActiveDevices(ctx, nil)
	if err != nil {
		return nil, linkage.Resolution{}, err
	}
	res := linkage.Resolve(user.ID, pool)

	report := &Report{
		ReportID:       uuid.NewString(),
		Email:          user.Email,
		UserID:         user.ID,
		Plan:           user.Plan,
		EvaluatedAt:    now,
		Entitlement:    result,
		Linkage:        res.Summary(),
		Integrity:      res.Integrity,
		RecentOrphans:  linkage.RecentOrphans(res.Unlinked, now, o.orphanWindow),
		PlannedTargets: len(res.Linked),
	}
	for _, d := range res.Linked {
		report.LinkedDevices = append(report.LinkedDevices, linkage.Preview(d))
	}
	if res.Integrity != nil {
		report.Warnings = append(report.Warnings, res.Integrity.Message)
	}

	switch {
	case !result.HasAccess:
		report.Status, report.Reason = StatusNotEntitled, ReasonNotEntitled
		report.PlannedTargets = 0
	case len(res.Linked) == 0:
		report.Status, report.Reason = StatusNoDeliverableDevices, ReasonNoDeliverableDevices
	}
	return report, res, nil
}

func (o *Orchestrator) alert(ctx context.Context, warnings []dispatch.ConfigWarning) {
	if o.alerter == nil {
		return
	}
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hookTimeout)
	defer cancel()
	for _, w := range warnings {
		if _, err := o.alerter.NotifyConfigWarning(hctx, w); err != nil {
			o.logger.Warn("config alert failed", map[string]interface{}{
				"provider": w.Provider,
				"error":    err.Error(),
			})
		}
	}
}

func (o *Orchestrator) save(ctx context.Context, report *Report) {
	if o.sink == nil {
		return
	}
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hookTimeout)
	defer cancel()
	if err := o.sink.Save(hctx, report); err != nil {
		o.logger.Warn("report sink failed", map[string]interface{}{
			"reportId": report.ReportID,
			"error":    err.Error(),
		})
	}
}

func accessLabel(r entitlement.Result) string {
	switch {
	case r.IsPremium:
		return "premium"
	case r.IsTrial:
		return "trial"
	default:
		return "none"
	}
}
