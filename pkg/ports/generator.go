package ports

import "context"

// ChoiceGenerator turns a narrative prefix into raw candidate continuations.
// It may be slow and non-deterministic. Returning fewer than count candidates,
// or none at all, is a normal outcome.
type ChoiceGenerator interface {
	Propose(ctx context.Context, narrativePrefix string, count int) ([]string, error)
}

// ChoiceGeneratorFunc adapts a plain function to ChoiceGenerator.
type ChoiceGeneratorFunc func(ctx context.Context, narrativePrefix string, count int) ([]string, error)

// Propose calls f.
func (f ChoiceGeneratorFunc) Propose(ctx context.Context, narrativePrefix string, count int) ([]string, error) {
	return f(ctx, narrativePrefix, count)
}
