package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/branchtale/pkg/domain"
	"github.com/aretw0/branchtale/pkg/selector"
)

// LogHooks returns lifecycle hooks that log every event at the given logger.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	logSession := func(ctx context.Context, e *domain.SessionEvent) {
		logger.InfoContext(ctx, string(e.Type),
			"user_id", e.UserID,
			"mode", e.Mode,
			"node_id", e.NodeID,
			"ended", e.Ended,
		)
	}
	return domain.LifecycleHooks{
		OnSessionStart: logSession,
		OnAdvance:      logSession,
		OnSessionEnd:   logSession,
		OnChoicesSelected: func(ctx context.Context, e *domain.SelectionEvent) {
			logger.DebugContext(ctx, string(e.Type),
				"user_id", e.UserID,
				"mode", e.Mode,
				"attempts", e.Attempts,
				"padded", e.Padded,
				"duration", e.Duration,
			)
		},
	}
}

// Combine returns hooks that invoke each non-nil hook of every set, in order.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var (
		starts     []func(context.Context, *domain.SessionEvent)
		advances   []func(context.Context, *domain.SessionEvent)
		ends       []func(context.Context, *domain.SessionEvent)
		selections []func(context.Context, *domain.SelectionEvent)
	)
	for _, h := range sets {
		if h.OnSessionStart != nil {
			starts = append(starts, h.OnSessionStart)
		}
		if h.OnAdvance != nil {
			advances = append(advances, h.OnAdvance)
		}
		if h.OnSessionEnd != nil {
			ends = append(ends, h.OnSessionEnd)
		}
		if h.OnChoicesSelected != nil {
			selections = append(selections, h.OnChoicesSelected)
		}
	}
	return domain.LifecycleHooks{
		OnSessionStart:    fanOut(starts),
		OnAdvance:         fanOut(advances),
		OnSessionEnd:      fanOut(ends),
		OnChoicesSelected: fanOut(selections),
	}
}

// CombineSelector does for selector hooks what Combine does for lifecycle hooks.
func CombineSelector(sets ...selector.Hooks) selector.Hooks {
	var attempts []func(context.Context, *selector.AttemptEvent)
	for _, h := range sets {
		if h.OnAttempt != nil {
			attempts = append(attempts, h.OnAttempt)
		}
	}
	return selector.Hooks{OnAttempt: fanOut(attempts)}
}

func fanOut[E any](fns []func(context.Context, E)) func(context.Context, E) {
	switch len(fns) {
	case 0:
		return nil
	case 1:
		return fns[0]
	}
	return func(ctx context.Context, e E) {
		for _, fn := range fns {
			fn(ctx, e)
		}
	}
}
