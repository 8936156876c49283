// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"premium-push-workers/internal/access"
	"premium-push-workers/internal/alerting"
	awsc "premium-push-workers/internal/common/aws"
	"premium-push-workers/internal/common/config"
	"premium-push-workers/internal/common/database"
	"premium-push-workers/internal/common/logger"
	"premium-push-workers/internal/common/observability"
	"premium-push-workers/internal/dispatch"
	"premium-push-workers/internal/entitlement"
	"premium-push-workers/internal/push"
	"premium-push-workers/internal/reporting"
	"premium-push-workers/internal/store"
	"premium-push-workers/pkg/registry"
)

// App holds the wired access-check pipeline and the connections behind it.
// Redis and Elastic are nil unless alerts or reporting are enabled.
type App struct {
	Config       *config.Config
	Postgres     *database.PostgresClient
	Redis        *database.RedisClient
	Elastic      *database.ElasticsearchClient
	Registry     *registry.ActivityRegistry
	Orchestrator *access.Orchestrator
	Tracing      *observability.Tracing

	logger  logger.Logger
	closers []func()
}

type Options struct {
	// ConnectAttempts bounds retries for each backing service.
	ConnectAttempts int
	ConnectDelay    time.Duration
}

func Build(ctx context.Context, cfg *config.Config, log logger.Logger, opts Options) (*App, error) {
	if opts.ConnectAttempts <= 0 {
		opts.ConnectAttempts = 1
	}
	if opts.ConnectDelay <= 0 {
		opts.ConnectDelay = 2 * time.Second
	}

	a := &App{Config: cfg, logger: log}
	if err := a.build(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, opts Options) error {
	cfg, log := a.Config, a.logger

	tracing, err := observability.NewTracing(cfg.Observability.ServiceName, cfg.Observability.JaegerEndpoint)
	if err != nil {
		return err
	}
	a.Tracing = tracing

	err = retryWithBackoff(ctx, func() error {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			pg.Close()
			return err
		}
		a.Postgres = pg
		return nil
	}, opts.ConnectAttempts, opts.ConnectDelay, log, "PostgreSQL connection")
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() { a.Postgres.Close() })
	log.Info("PostgreSQL connected successfully", nil)

	a.Registry = a.loadRegistry()

	loc, err := cfg.Entitlement.Location()
	if err != nil {
		return fmt.Errorf("entitlement timezone: %w", err)
	}

	attemptTimeout := config.GetDuration(cfg.Dispatch.AttemptTimeoutMs)
	sender, err := push.New(ctx, cfg.Push, attemptTimeout, log)
	if err != nil {
		return fmt.Errorf("push provider: %w", err)
	}

	orchOpts := []access.Option{
		access.WithTracer(tracing.Tracer("premium-push-workers/access")),
	}

	if cfg.Alerts.Enabled {
		alerter, err := a.buildAlerter(ctx, opts)
		if err != nil {
			return err
		}
		orchOpts = append(orchOpts, access.WithConfigAlerter(alerter))
	}

	if cfg.Reporting.Enabled {
		err = retryWithBackoff(ctx, func() error {
			es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			if err := es.Ping(ctx); err != nil {
				return err
			}
			a.Elastic = es
			return nil
		}, opts.ConnectAttempts, opts.ConnectDelay, log, "Elasticsearch connection")
		if err != nil {
			return err
		}
		log.Info("Elasticsearch connected successfully", nil)
		orchOpts = append(orchOpts, access.WithReportSink(reporting.NewElasticsearchSink(a.Elastic, cfg.Reporting.Index, log)))
	}

	st := store.New(a.Postgres.DB, log)
	a.Orchestrator = access.New(
		st, st,
		entitlement.NewEvaluator(cfg.Entitlement.TrialDays, loc),
		dispatch.New(sender, dispatch.Config{
			MaxConcurrency: cfg.Dispatch.MaxConcurrency,
			AttemptTimeout: attemptTimeout,
			SentinelToken:  cfg.Dispatch.SentinelToken,
		}, log),
		log,
		orchOpts...,
	)

	log.Info("access pipeline ready", map[string]interface{}{
		"pushProvider": sender.Name(),
		"alerts":       cfg.Alerts.Enabled,
		"reporting":    cfg.Reporting.Enabled,
		"trialDays":    cfg.Entitlement.TrialDays,
		"timezone":     loc.String(),
	})
	return nil
}

func (a *App) buildAlerter(ctx context.Context, opts Options) (*alerting.Alerter, error) {
	cfg, log := a.Config, a.logger

	err := retryWithBackoff(ctx, func() error {
		rc, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		if err := rc.Ping(ctx); err != nil {
			rc.Close()
			return err
		}
		a.Redis = rc
		return nil
	}, opts.ConnectAttempts, opts.ConnectDelay, log, "Redis connection")
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { a.Redis.Close() })
	log.Info("Redis connected successfully", nil)

	mailer, err := awsc.NewSESClient(ctx, cfg.Alerts.Region)
	if err != nil {
		return nil, fmt.Errorf("ses client: %w", err)
	}
	return alerting.New(a.Redis, mailer, cfg.Alerts.FromEmail, cfg.Alerts.ToEmail,
		time.Duration(cfg.Alerts.Cooldown)*time.Second, log), nil
}

// loadRegistry returns nil when the file is missing; workers then run
// without schema validation.
func (a *App) loadRegistry() *registry.ActivityRegistry {
	path := a.Config.Registry.Path
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		if os.IsNotExist(err) {
			a.logger.Warn("activity registry not found, input schemas disabled", map[string]interface{}{"path": path})
		} else {
			a.logger.Error("activity registry unreadable, input schemas disabled", map[string]interface{}{"path": path, "error": err.Error()})
		}
		return nil
	}
	if err := reg.Validate(); err != nil {
		a.logger.Error("activity registry invalid, input schemas disabled", map[string]interface{}{"path": path, "error": err.Error()})
		return nil
	}
	return reg
}

// Ready checks the connections the pipeline cannot work without.
func (a *App) Ready(ctx context.Context) error {
	if err := a.Postgres.Ping(ctx); err != nil {
		return err
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases connections in reverse order and flushes traces.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	if a.Tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.Tracing.Shutdown(ctx)
	}
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		if err = operation(); err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(operationName+" failed, retrying...", map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("%s cancelled: %w", operationName, ctx.Err())
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
