// internal/workers/notification/record-email-status/config.go
package recordemailstatus

import (
	"time"

	"bookverse-notifications/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(cfg config.WorkerConfig) *Config {
	c := &Config{Timeout: 10 * time.Second}
	if cfg.Timeout > 0 {
		c.Timeout = config.GetDuration(cfg.Timeout)
	}
	return c
}
