// internal/alerting/alerter.go
package alerting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"premium-push-workers/internal/common/logger"
	"premium-push-workers/internal/dispatch"
)

const keyPrefix = "push:config-alert:"

// Deduper grants a key to exactly one caller per ttl.
type Deduper interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type Mailer interface {
	SendText(ctx context.Context, from, to, subject, body string) (string, error)
}

// Alerter e-mails operators about provider credential problems, at most once
// per provider and kind per cooldown, however many workers hit the problem.
type Alerter struct {
	dedupe   Deduper
	mailer   Mailer
	from     string
	to       string
	cooldown time.Duration
	logger   logger.Logger
}

func New(dedupe Deduper, mailer Mailer, from, to string, cooldown time.Duration, log logger.Logger) *Alerter {
	if cooldown <= 0 {
		cooldown = time.Hour
	}
	return &Alerter{
		dedupe:   dedupe,
		mailer:   mailer,
		from:     from,
		to:       to,
		cooldown: cooldown,
		logger:   log.WithFields(map[string]interface{}{"component": "alerter"}),
	}
}

// NotifyConfigWarning reports whether an e-mail was sent.
func (a *Alerter) NotifyConfigWarning(ctx context.Context, w dispatch.ConfigWarning) (bool, error) {
	key := keyPrefix + strings.ToLower(w.Provider) + ":" + string(w.Kind)

	acquired, err := a.dedupe.Acquire(ctx, key, a.cooldown)
	if err != nil {
		return false, fmt.Errorf("alert dedupe: %w", err)
	}
	if !acquired {
		a.logger.Debug("config alert suppressed", map[string]interface{}{
			"provider": w.Provider,
			"cooldown": a.cooldown.String(),
		})
		return false, nil
	}

	subject := fmt.Sprintf("[premium-push] %s credentials rejected", w.Provider)
	body := fmt.Sprintf(
		"Provider: %s\nKind: %s\nAffected devices in batch: %d\n\n%s\n\nFurther alerts are suppressed for %s.\n",
		w.Provider, w.Kind, w.AffectedDevices, w.Message, a.cooldown,
	)

	id, err := a.mailer.SendText(ctx, a.from, a.to, subject, body)
	if err != nil {
		// let the next batch try again
		if relErr := a.dedupe.Release(ctx, key); relErr != nil {
			a.logger.Warn("failed to release alert key", map[string]interface{}{"key": key, "error": relErr.Error()})
		}
		return false, fmt.Errorf("send config alert: %w", err)
	}

	a.logger.Info("config alert sent", map[string]interface{}{
		"provider":  w.Provider,
		"messageId": id,
	})
	return true, nil
}
