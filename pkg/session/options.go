package session

import (
	"log/slog"
	"time"

	"github.com/aretw0/branchtale/pkg/domain"
	"github.com/aretw0/branchtale/pkg/ports"
	"github.com/aretw0/branchtale/pkg/selector"
)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// Option configures the Controller.
type Option func(*Controller)

// WithGraph enables graph mode over the given story graph.
func WithGraph(g ports.StoryGraph) Option {
	return func(c *Controller) {
		c.graph = g
	}
}

// WithGenerator sets the source of free-text continuations for generative mode.
func WithGenerator(gen ports.ChoiceGenerator) Option {
	return func(c *Controller) {
		c.generator = gen
	}
}

// WithSelector replaces the default selector.
func WithSelector(s *selector.Selector) Option {
	return func(c *Controller) {
		if s != nil {
			c.selector = s
		}
	}
}

// WithLogger configures a logger for the Controller.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Controller) {
		c.hooks = hooks
	}
}

// WithLocker enables distributed locking with the given lock TTL.
// A non-positive ttl uses DefaultLockTTL.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(c *Controller) {
		c.locker = locker
		if ttl > 0 {
			c.lockTTL = ttl
		}
	}
}

// WithClock overrides the time source used for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}
