// internal/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "premium-push-workers/internal/common/errors"
	"premium-push-workers/internal/common/logger"
	"premium-push-workers/internal/common/metrics"
	"premium-push-workers/internal/linkage"
	"premium-push-workers/internal/models"
	"premium-push-workers/internal/push"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
)

const (
	DefaultSentinelToken  = "test-push-token"
	DefaultMaxConcurrency = 8
	DefaultAttemptTimeout = 10 * time.Second
)

type Status string

const (
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Target is one device token to deliver to.
type Target struct {
	DeviceID string          `json:"deviceId"`
	Platform models.Platform `json:"platform"`
	Token    string          `json:"-"`
}

// Outcome is the recorded result for one target.
type Outcome struct {
	DeviceID     string          `json:"deviceId"`
	Platform     models.Platform `json:"platform"`
	TokenPreview string          `json:"tokenPreview"`
	Provider     string          `json:"provider"`
	Status       Status          `json:"status"`
	Attempted    bool            `json:"attempted"`
	ErrorKind    push.Kind       `json:"errorKind,omitempty"`
	ErrorCode    string          `json:"errorCode,omitempty"`
	Retryable    bool            `json:"retryable"`
	Error        string          `json:"error,omitempty"`
	Duration     time.Duration   `json:"durationNs"`
}

func (o Outcome) Delivered() bool { return o.Status == StatusDelivered }

// ConfigWarning replaces N identical provider credential failures with one
// batch-level signal.
type ConfigWarning struct {
	Code            string    `json:"code"`
	Kind            push.Kind `json:"kind"`
	Provider        string    `json:"provider"`
	AffectedDevices int       `json:"affectedDevices"`
	Message         string    `json:"message"`
}

type BatchResult struct {
	BatchID        string            `json:"batchId"`
	Outcomes       []Outcome         `json:"outcomes"`
	Total          int               `json:"total"`
	Attempted      int               `json:"attempted"`
	Delivered      int               `json:"delivered"`
	Failed         int               `json:"failed"`
	Skipped        int               `json:"skipped"`
	FailuresByKind map[push.Kind]int `json:"failuresByKind"`
	ConfigWarnings []ConfigWarning   `json:"configWarnings,omitempty"`
	Cancelled      bool              `json:"cancelled"`
	StartedAt      time.Time         `json:"startedAt"`
	FinishedAt     time.Time         `json:"finishedAt"`
}

type Config struct {
	MaxConcurrency int
	AttemptTimeout time.Duration
	SentinelToken  string
}

type Dispatcher struct {
	sender push.Sender
	config Config
	logger logger.Logger
}

func New(sender push.Sender, cfg Config, log logger.Logger) *Dispatcher {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	if cfg.SentinelToken == "" {
		cfg.SentinelToken = DefaultSentinelToken
	}
	return &Dispatcher{
		sender: sender,
		config: cfg,
		logger: log.WithFields(map[string]interface{}{"component": "dispatcher", "provider": sender.Name()}),
	}
}

// Dispatch makes at most one delivery attempt per target. Attempts run on a
// bounded pool and each writes only its own outcome slot. When ctx ends,
// targets not yet attempted are recorded as cancelled failures; outcomes
// already recorded are kept.
func (d *Dispatcher) Dispatch(ctx context.Context, targets []Target, payload push.Payload) *BatchResult {
	started := time.Now().UTC()
	outcomes := make([]Outcome, len(targets))

	p := pool.New().WithMaxGoroutines(d.config.MaxConcurrency)
	for i, target := range targets {
		i, target := i, target

		if reason, skip := d.skipReason(target.Token); skip {
			outcomes[i] = d.outcome(target, StatusSkipped, push.KindInvalidToken, apperrors.NewInvalidTokenError(reason))
			continue
		}

		p.Go(func() {
			if err := ctx.Err(); err != nil {
				outcomes[i] = d.outcome(target, StatusFailed, push.KindCancelled, err)
				return
			}
			outcomes[i] = d.attempt(ctx, target, payload)
		})
	}
	p.Wait()

	result := Summarize(outcomes)
	result.BatchID = uuid.NewString()
	result.StartedAt = started
	result.FinishedAt = time.Now().UTC()

	d.record(result)
	return result
}

func (d *Dispatcher) skipReason(token string) (string, bool) {
	switch {
	case token == d.config.SentinelToken:
		return "sentinel test token", true
	case strings.TrimSpace(token) == "":
		return "missing push token", true
	}
	if v, ok := d.sender.(push.TokenValidator); ok && !v.ValidToken(token) {
		return "token format not accepted by " + d.sender.Name(), true
	}
	return "", false
}

// attempt bounds a single send by AttemptTimeout even if the sender ignores
// its context.
func (d *Dispatcher) attempt(ctx context.Context, target Target, payload push.Payload) Outcome {
	actx, cancel := context.WithTimeout(ctx, d.config.AttemptTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- d.sender.Send(actx, target.Token, payload)
	}()

	var err error
	select {
	case err = <-done:
	case <-actx.Done():
		select {
		case err = <-done:
		default:
			err = actx.Err()
		}
	}
	elapsed := time.Since(start)
	metrics.PushAttemptDuration.WithLabelValues(d.sender.Name()).Observe(elapsed.Seconds())

	out := d.classify(ctx, target, err)
	out.Attempted = true
	out.Duration = elapsed
	return out
}

// classify turns the result of one send into an outcome. A provider answer
// stands even when the caller cancelled afterwards; only context errors
// count as cancelled.
func (d *Dispatcher) classify(ctx context.Context, target Target, err error) Outcome {
	kind := push.KindOf(err)
	switch {
	case err == nil:
		return d.outcome(target, StatusDelivered, "", nil)
	case kind == push.KindCancelled, kind == push.KindTimeout && ctx.Err() != nil:
		return d.outcome(target, StatusFailed, push.KindCancelled, err)
	case kind == push.KindTimeout:
		return d.outcome(target, StatusFailed, push.KindTimeout,
			apperrors.NewPushTimeoutError(d.sender.Name(), d.config.AttemptTimeout))
	default:
		return d.outcome(target, StatusFailed, kind, apperrors.NewPushDeliveryFailedError(d.sender.Name(), err, kind.Retryable()))
	}
}

func (d *Dispatcher) outcome(target Target, status Status, kind push.Kind, err error) Outcome {
	o := Outcome{
		DeviceID:     target.DeviceID,
		Platform:     target.Platform,
		TokenPreview: linkage.TokenPreview(target.Token),
		Provider:     d.sender.Name(),
		Status:       status,
		ErrorKind:    kind,
		Retryable:    kind.Retryable(),
	}
	if err != nil {
		o.Error = err.Error()
		if stdErr, ok := apperrors.AsStandardError(err); ok {
			o.ErrorCode = string(stdErr.Code)
			o.Error = stdErr.Message
			if stdErr.Details != "" {
				o.Error += ": " + stdErr.Details
			}
		}
	}
	return o
}

func (d *Dispatcher) record(result *BatchResult) {
	for _, o := range result.Outcomes {
		metrics.PushOutcomes.WithLabelValues(o.Provider, string(o.Status), string(o.ErrorKind)).Inc()
	}
	for _, w := range result.ConfigWarnings {
		metrics.PushConfigWarnings.WithLabelValues(w.Provider).Inc()
		d.logger.Warn("push provider configuration problem", map[string]interface{}{
			"batchId":         result.BatchID,
			"affectedDevices": w.AffectedDevices,
			"message":         w.Message,
		})
	}

	d.logger.Info("dispatch finished", map[string]interface{}{
		"batchId":   result.BatchID,
		"total":     result.Total,
		"delivered": result.Delivered,
		"failed":    result.Failed,
		"skipped":   result.Skipped,
		"cancelled": result.Cancelled,
	})
}

// Summarize derives the aggregate from outcomes alone, so the result does not
// depend on the order attempts completed in.
func Summarize(outcomes []Outcome) *BatchResult {
	res := &BatchResult{
		Outcomes:       outcomes,
		Total:          len(outcomes),
		FailuresByKind: map[push.Kind]int{},
	}

	authByProvider := map[string]int{}
	var providers []string

	for _, o := range outcomes {
		if o.Attempted {
			res.Attempted++
		}
		switch o.Status {
		case StatusDelivered:
			res.Delivered++
		case StatusSkipped:
			res.Skipped++
		default:
			res.Failed++
			res.FailuresByKind[o.ErrorKind]++
		}

		if o.ErrorKind == push.KindCancelled {
			res.Cancelled = true
		}
		if o.Status == StatusFailed && o.ErrorKind == push.KindAuthConfiguration {
			if authByProvider[o.Provider] == 0 {
				providers = append(providers, o.Provider)
			}
			authByProvider[o.Provider]++
		}
	}

	for _, provider := range providers {
		affected := authByProvider[provider]
		stdErr := apperrors.NewPushAuthConfigurationError(provider, affected)
		res.ConfigWarnings = append(res.ConfigWarnings, ConfigWarning{
			Code:            string(stdErr.Code),
			Kind:            push.KindAuthConfiguration,
			Provider:        provider,
			AffectedDevices: affected,
			Message:         fmt.Sprintf("%s (%d device(s)); fix provider credentials before retrying", stdErr.Message, affected),
		})
	}
	return res
}

// TargetsFor turns linked devices into dispatch targets. Devices without a
// token are kept so they show up as skipped.
func TargetsFor(devices []models.Device) []Target {
	targets := make([]Target, 0, len(devices))
	for _, d := range devices {
		targets = append(targets, Target{
			DeviceID: d.DeviceID,
			Platform: d.Platform,
			Token:    d.Token(),
		})
	}
	return targets
}
