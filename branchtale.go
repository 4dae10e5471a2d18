package branchtale

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/branchtale/internal/stories"
	"github.com/aretw0/branchtale/pkg/adapters/memory"
	"github.com/aretw0/branchtale/pkg/domain"
	"github.com/aretw0/branchtale/pkg/graph"
	"github.com/aretw0/branchtale/pkg/ports"
	"github.com/aretw0/branchtale/pkg/selector"
	"github.com/aretw0/branchtale/pkg/session"
)

type options struct {
	store        ports.ProgressStore
	graph        ports.StoryGraph
	storyFile    string
	generator    ports.ChoiceGenerator
	selectorOpts []selector.Option
	hooks        domain.LifecycleHooks
	logger       *slog.Logger
}

// Option defines a functional option for New.
type Option func(*options)

// WithStore persists progress to store instead of memory.
func WithStore(store ports.ProgressStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithGraph uses g for graph-mode stories instead of the bundled demo.
func WithGraph(g ports.StoryGraph) Option {
	return func(o *options) {
		o.graph = g
	}
}

// WithStoryFile loads the story graph from a YAML or JSON file.
func WithStoryFile(path string) Option {
	return func(o *options) {
		o.storyFile = path
	}
}

// WithGenerator sets the source of generative continuations.
// Without it, the offline generator with canned continuations is used.
func WithGenerator(gen ports.ChoiceGenerator) Option {
	return func(o *options) {
		o.generator = gen
	}
}

// WithSelectorOptions tunes the choice selector (attempts, timeouts, fallbacks).
func WithSelectorOptions(opts ...selector.Option) Option {
	return func(o *options) {
		o.selectorOpts = append(o.selectorOpts, opts...)
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(o *options) {
		o.hooks = hooks
	}
}

// WithLogger sets the logger shared by the controller and the selector.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New assembles a session.Controller with sensible defaults: an in-memory
// store, the bundled demo story and the offline generator.
func New(opts ...Option) (*session.Controller, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.store == nil {
		o.store = memory.NewStore()
	}
	if o.graph == nil {
		var (
			g   *graph.Graph
			err error
		)
		if o.storyFile != "" {
			g, err = graph.LoadFile(o.storyFile)
		} else {
			g, err = stories.Demo()
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load story graph: %w", err)
		}
		o.graph = g
	}
	if o.generator == nil {
		o.generator = stories.OfflineGenerator()
	}

	selectorOpts := o.selectorOpts
	ctrlOpts := []session.Option{
		session.WithGraph(o.graph),
		session.WithGenerator(o.generator),
		session.WithHooks(o.hooks),
	}
	if o.logger != nil {
		selectorOpts = append([]selector.Option{selector.WithLogger(o.logger)}, selectorOpts...)
		ctrlOpts = append(ctrlOpts, session.WithLogger(o.logger))
	}
	ctrlOpts = append(ctrlOpts, session.WithSelector(selector.New(selectorOpts...)))

	return session.New(o.store, ctrlOpts...), nil
}
