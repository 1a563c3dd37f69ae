// internal/workers/notification/flush-email-digest/config.go
package flushemaildigest

import (
	"time"

	"bookverse-notifications/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

// LoadConfig defaults to a longer timeout than single-event workers since a
// sweep sends one email per due user.
func LoadConfig(cfg config.WorkerConfig) *Config {
	c := &Config{Timeout: 2 * time.Minute}
	if cfg.Timeout > 0 {
		c.Timeout = config.GetDuration(cfg.Timeout)
	}
	return c
}
