package selector

import (
	"log/slog"
	"time"
)

const (
	// DefaultMaxAttempts bounds the generator round-trips for one ChoiceSet.
	DefaultMaxAttempts = 10
	// DefaultAttemptTimeout bounds a single generator call.
	DefaultAttemptTimeout = 15 * time.Second
)

// Option configures the Selector.
type Option func(*Selector)

// WithMaxAttempts sets the generative attempt ceiling. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(s *Selector) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithAttemptTimeout sets the per-attempt deadline. Zero disables it.
func WithAttemptTimeout(d time.Duration) Option {
	return func(s *Selector) {
		s.attemptTimeout = d
	}
}

// WithFallbacks replaces the padding list. The default fallbacks are still
// consulted after it, so padding always reaches a full ChoiceSet.
func WithFallbacks(fallbacks ...string) Option {
	return func(s *Selector) {
		s.fallbacks = append([]string(nil), fallbacks...)
	}
}

// WithMaxLength sets the exclusive upper bound for generated candidates.
func WithMaxLength(n int) Option {
	return func(s *Selector) {
		if n > 0 {
			s.maxLength = n
		}
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Selector) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHooks registers per-attempt observability callbacks.
func WithHooks(hooks Hooks) Option {
	return func(s *Selector) {
		s.hooks = hooks
	}
}
