// internal/workers/notification/dispatch-notification/config.go
package dispatchnotification

import (
	"time"

	"bookverse-notifications/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(cfg config.WorkerConfig) *Config {
	c := &Config{Timeout: 30 * time.Second}
	if cfg.Timeout > 0 {
		c.Timeout = config.GetDuration(cfg.Timeout)
	}
	return c
}
