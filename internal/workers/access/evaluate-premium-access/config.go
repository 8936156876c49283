// internal/workers/access/evaluate-premium-access/config.go
package evaluatepremiumaccess

import (
	"time"

	"premium-push-workers/internal/common/config"
	"premium-push-workers/pkg/registry"
)

type Config struct {
	Timeout     time.Duration
	InputSchema map[string]interface{}
}

func LoadConfig(cfg *config.Config, reg *registry.ActivityRegistry) *Config {
	c := &Config{
		Timeout: config.GetDuration(config.GetWorkerConfig(cfg, TaskType).Timeout),
	}
	if reg != nil {
		if a, ok := reg.Find(TaskType); ok {
			c.InputSchema = a.InputSchema
		}
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}
