package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/aretw0/branchtale/internal/logging"
	"github.com/aretw0/branchtale/pkg/domain"
	"github.com/aretw0/branchtale/pkg/ports"
	"github.com/aretw0/branchtale/pkg/selector"
)

// StartRequest selects how a story begins: from a free-text Prompt
// (generative mode) or from a graph NodeID (graph mode). Exactly one must be set.
type StartRequest struct {
	Prompt string `json:"prompt,omitempty"`
	NodeID string `json:"node_id,omitempty"`
}

// Turn is the outcome of an operation: the session after it and the choices
// to offer next. Choices is empty once the session has ended.
type Turn struct {
	Session *domain.Session  `json:"session"`
	Choices domain.ChoiceSet `json:"choices"`
}

// Ended reports whether the story is over.
func (t *Turn) Ended() bool {
	return t.Session != nil && !t.Session.IsActive()
}

// entryPicker is implemented by graphs that can choose a random opening node.
type entryPicker interface {
	RandomEntry(r *rand.Rand) (domain.StoryNode, error)
}

// Controller orchestrates reader sessions over a ProgressStore.
type Controller struct {
	store     ports.ProgressStore
	graph     ports.StoryGraph
	generator ports.ChoiceGenerator
	selector  *selector.Selector

	locks   *userLocks
	locker  ports.DistributedLocker
	lockTTL time.Duration

	logger *slog.Logger
	hooks  domain.LifecycleHooks
	now    func() time.Time
}

// New creates a Controller persisting to store.
// Without WithGraph only generative sessions can start; without WithGenerator
// generative sessions are offered the fallback choices.
func New(store ports.ProgressStore, opts ...Option) *Controller {
	c := &Controller{
		store:    store,
		selector: selector.New(),
		locks:    newUserLocks(),
		lockTTL:  DefaultLockTTL,
		logger:   logging.NewNop(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Graph returns the configured story graph, or nil.
func (c *Controller) Graph() ports.StoryGraph {
	return c.graph
}

// Start begins a new story for userID, replacing any previous session.
func (c *Controller) Start(ctx context.Context, userID string, req StartRequest) (*Turn, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return nil, err
	}
	prompt, err := SanitizeInput(req.Prompt)
	if err != nil {
		return nil, err
	}
	nodeID := strings.TrimSpace(req.NodeID)

	switch {
	case prompt != "" && nodeID != "":
		return nil, fmt.Errorf("%w: provide either a prompt or a node id, not both", domain.ErrInvalidInput)
	case prompt == "" && nodeID == "":
		return nil, fmt.Errorf("%w: prompt must not be empty", domain.ErrInvalidInput)
	}

	var session *domain.Session
	if nodeID != "" {
		node, err := c.node(nodeID)
		if err != nil {
			return nil, err
		}
		session = c.newGraphSession(userID, node)
	} else {
		session = domain.NewGenerativeSession(userID, prompt, c.now())
	}
	return c.begin(ctx, session)
}

// StartRandom begins a graph story at a randomly chosen opening node.
// A nil r uses the global source.
func (c *Controller) StartRandom(ctx context.Context, userID string, r *rand.Rand) (*Turn, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return nil, err
	}
	picker, ok := c.graph.(entryPicker)
	if !ok {
		return nil, fmt.Errorf("%w: no story graph available for a random start", domain.ErrInvalidInput)
	}
	node, err := picker.RandomEntry(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return c.begin(ctx, c.newGraphSession(userID, node))
}

// newGraphSession opens a session at node, already ended when node has no
// authored choices.
func (c *Controller) newGraphSession(userID string, node domain.StoryNode) *domain.Session {
	session := domain.NewGraphSession(userID, node, c.now())
	if len(c.graph.ChoicesOf(node)) == 0 {
		session.End(c.now())
	}
	return session
}

func (c *Controller) begin(ctx context.Context, session *domain.Session) (*Turn, error) {
	err := c.withLock(ctx, session.UserID, func(ctx context.Context) error {
		return c.save(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("session started",
		"user_id", session.UserID,
		"mode", session.Mode,
		"node_id", session.CurrentNodeID,
	)
	c.emitSession(ctx, c.hooks.OnSessionStart, domain.EventSessionStart, session)
	if !session.IsActive() {
		c.emitSession(ctx, c.hooks.OnSessionEnd, domain.EventSessionEnd, session)
	}

	choices, err := c.choicesFor(ctx, session)
	if err != nil {
		return nil, err
	}
	return &Turn{Session: session.Clone(), Choices: choices}, nil
}

// Advance applies the reader's chosen continuation and returns the next turn.
func (c *Controller) Advance(ctx context.Context, userID, chosen string) (*Turn, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return nil, err
	}
	chosen, err = SanitizeInput(chosen)
	if err != nil {
		return nil, err
	}

	var next *domain.Session
	err = c.withLock(ctx, userID, func(ctx context.Context) error {
		current, err := c.loadActive(ctx, userID)
		if err != nil {
			return err
		}
		if chosen == "" {
			return fmt.Errorf("%w: choice must not be empty", domain.ErrInvalidInput)
		}

		next = current.Clone()
		switch next.Mode {
		case domain.ModeGraph:
			if err := c.advanceGraph(next, chosen); err != nil {
				return err
			}
		default:
			next.Append(chosen)
		}
		next.UpdatedAt = c.now()
		return c.save(ctx, next)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("session advanced",
		"user_id", userID,
		"node_id", next.CurrentNodeID,
		"segments", len(next.Narrative),
		"ended", !next.IsActive(),
	)
	c.emitSession(ctx, c.hooks.OnAdvance, domain.EventSessionAdvance, next)
	if !next.IsActive() {
		c.emitSession(ctx, c.hooks.OnSessionEnd, domain.EventSessionEnd, next)
	}

	choices, err := c.choicesFor(ctx, next)
	if err != nil {
		return nil, err
	}
	return &Turn{Session: next.Clone(), Choices: choices}, nil
}

// advanceGraph appends exactly one segment to s: the authored choice with its
// outcome and the successor's prompt, or, for a fallback choice, the bare text.
func (c *Controller) advanceGraph(s *domain.Session, chosen string) error {
	node, err := c.node(s.CurrentNodeID)
	if err != nil {
		return err
	}

	for _, choice := range c.graph.ChoicesOf(node) {
		if strings.TrimSpace(choice.Text) != chosen {
			continue
		}
		segment := chosen
		if outcome := strings.TrimSpace(choice.Outcome); outcome != "" {
			segment += " -> " + outcome
		}
		if choice.IsTerminal() {
			s.Append(segment)
			s.End(c.now())
			return nil
		}
		successor, err := c.graph.NodeByID(choice.Next)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
		}
		s.Append(segment + "\n\n" + successor.Prompt)
		s.CurrentNodeID = successor.ID
		s.Path = append(s.Path, successor.ID)
		// A node without authored choices is a dead end.
		if len(c.graph.ChoicesOf(successor)) == 0 {
			s.End(c.now())
		}
		return nil
	}

	// Padding choices keep the reader on the current node.
	offered := c.selector.FromGraph(c.graph.ChoicesOf(node)).Choices
	if offered.Contains(chosen) {
		s.Append(chosen)
		return nil
	}
	return fmt.Errorf("%w: '%s' is not a choice at node '%s'", domain.ErrInvalidInput, chosen, node.ID)
}

// End concludes the user's story and returns the final session.
// Ending an already ended story returns it unchanged.
func (c *Controller) End(ctx context.Context, userID string) (*domain.Session, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return nil, err
	}

	var (
		session *domain.Session
		changed bool
	)
	err = c.withLock(ctx, userID, func(ctx context.Context) error {
		var err error
		session, err = c.load(ctx, userID)
		if err != nil {
			return err
		}
		if !session.IsActive() {
			return nil
		}
		session.End(c.now())
		changed = true
		return c.save(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		c.logger.Info("session ended", "user_id", userID, "segments", len(session.Narrative))
		c.emitSession(ctx, c.hooks.OnSessionEnd, domain.EventSessionEnd, session)
	}
	return session.Clone(), nil
}

// Resume returns the stored session with freshly computed choices.
func (c *Controller) Resume(ctx context.Context, userID string) (*Turn, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return nil, err
	}

	var session *domain.Session
	err = c.withLock(ctx, userID, func(ctx context.Context) error {
		var err error
		session, err = c.load(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	choices, err := c.choicesFor(ctx, session)
	if err != nil {
		return nil, err
	}
	return &Turn{Session: session.Clone(), Choices: choices}, nil
}

// Session returns the stored session without computing choices.
func (c *Controller) Session(ctx context.Context, userID string) (*domain.Session, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return nil, err
	}
	session, err := c.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return session.Clone(), nil
}

// List returns the users with stored progress when the store supports it.
func (c *Controller) List(ctx context.Context) ([]string, error) {
	lister, ok := c.store.(ports.ListableStore)
	if !ok {
		return nil, fmt.Errorf("store does not support listing")
	}
	users, err := lister.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	return users, nil
}

// choicesFor computes the ChoiceSet for s. Ended sessions get an empty set.
func (c *Controller) choicesFor(ctx context.Context, s *domain.Session) (domain.ChoiceSet, error) {
	if !s.IsActive() {
		return domain.ChoiceSet{}, nil
	}

	start := time.Now()
	var res selector.Result
	switch s.Mode {
	case domain.ModeGraph:
		node, err := c.node(s.CurrentNodeID)
		if err != nil {
			return nil, err
		}
		res = c.selector.FromGraph(c.graph.ChoicesOf(node))
	default:
		gen := c.generator
		if gen == nil {
			gen = ports.ChoiceGeneratorFunc(func(context.Context, string, int) ([]string, error) {
				return nil, nil
			})
		}
		res = c.selector.FromGenerator(ctx, gen, strings.Join(s.Narrative, " "))
	}

	if c.hooks.OnChoicesSelected != nil {
		c.hooks.OnChoicesSelected(ctx, &domain.SelectionEvent{
			EventBase: domain.EventBase{
				Timestamp: c.now(),
				Type:      domain.EventChoicesSelected,
				UserID:    s.UserID,
			},
			Mode:     s.Mode,
			Attempts: res.Attempts,
			Padded:   res.Padded,
			Duration: time.Since(start),
		})
	}
	if res.Padded > 0 {
		c.logger.Debug("choice set padded with fallbacks",
			"user_id", s.UserID,
			"attempts", res.Attempts,
			"padded", res.Padded,
		)
	}
	return res.Choices, nil
}

func (c *Controller) node(id string) (domain.StoryNode, error) {
	if c.graph == nil {
		return domain.StoryNode{}, fmt.Errorf("%w: no story graph loaded", domain.ErrInvalidInput)
	}
	node, err := c.graph.NodeByID(id)
	if err != nil {
		return domain.StoryNode{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return node, nil
}

// load returns the stored session or ErrNoActiveSession when there is none.
func (c *Controller) load(ctx context.Context, userID string) (*domain.Session, error) {
	session, err := c.store.Load(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: %w", domain.ErrNoActiveSession, err)
		}
		if errors.Is(err, domain.ErrInvalidInput) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: failed to load session: %w", domain.ErrPersistence, err)
	}
	return session, nil
}

func (c *Controller) loadActive(ctx context.Context, userID string) (*domain.Session, error) {
	session, err := c.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive() {
		return nil, fmt.Errorf("%w: story for '%s' has ended", domain.ErrNoActiveSession, userID)
	}
	return session, nil
}

func (c *Controller) save(ctx context.Context, s *domain.Session) error {
	if err := c.store.Save(ctx, s.UserID, s); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return err
		}
		c.logger.Error("failed to save session", "user_id", s.UserID, "err", err)
		return fmt.Errorf("%w: failed to save session: %w", domain.ErrPersistence, err)
	}
	return nil
}

func (c *Controller) emitSession(ctx context.Context, hook func(context.Context, *domain.SessionEvent), typ domain.EventType, s *domain.Session) {
	if hook == nil {
		return
	}
	hook(ctx, &domain.SessionEvent{
		EventBase: domain.EventBase{
			Timestamp: c.now(),
			Type:      typ,
			UserID:    s.UserID,
		},
		Mode:   s.Mode,
		NodeID: s.CurrentNodeID,
		Ended:  !s.IsActive(),
	})
}

func validateUserID(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("%w: user id must not be empty", domain.ErrInvalidInput)
	}
	return userID, nil
}
