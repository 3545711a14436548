package coordinator

import (
	"time"

	"go.uber.org/zap"
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTimeout bounds every execution. Zero means no deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.timeout = d
	}
}

// WithLogger sets the logger used for execution lifecycle events.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}
