// internal/workers/access/dispatch-premium-push/config.go
package dispatchpremiumpush

import (
	"time"

	"premium-push-workers/internal/common/config"
	"premium-push-workers/pkg/registry"
)

const TaskType = config.DispatchWorkerName

type Config struct {
	Timeout     time.Duration
	InputSchema map[string]interface{}
}

// LoadConfig never returns a job timeout shorter than two push attempts.
func LoadConfig(cfg *config.Config, reg *registry.ActivityRegistry) *Config {
	c := &Config{
		Timeout: config.GetDuration(config.GetWorkerConfig(cfg, TaskType).Timeout),
	}
	if reg != nil {
		if a, ok := reg.Find(TaskType); ok {
			c.InputSchema = a.InputSchema
		}
	}
	if floor := 2 * config.GetDuration(cfg.Dispatch.AttemptTimeoutMs); c.Timeout < floor {
		c.Timeout = floor
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	return c
}
