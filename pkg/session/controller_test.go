package session_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/branchtale/pkg/adapters/memory"
	"github.com/aretw0/branchtale/pkg/adapters/scripted"
	"github.com/aretw0/branchtale/pkg/domain"
	"github.com/aretw0/branchtale/pkg/dsl"
	"github.com/aretw0/branchtale/pkg/graph"
	"github.com/aretw0/branchtale/pkg/ports"
	"github.com/aretw0/branchtale/pkg/selector"
	"github.com/aretw0/branchtale/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const detectivePrompt = "A detective finds a hidden letter."

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func mansion(t *testing.T) *graph.Graph {
	t.Helper()
	b := dsl.New()
	b.Add("hall").
		Prompt("Rain hammers the windows of the old mansion.").
		Choice("Enter the dark study", "The door creaks open.", "study")
	b.Add("study").
		Prompt("A letter lies on the desk.").
		End("Open the letter", "It was from you all along.").
		Choice("Climb to the attic", "Dust fills your lungs.", "attic")
	b.Add("attic").
		Prompt("Old trunks line the walls.").
		Choice("Return to the study", "The stairs groan.", "study").
		Choice("Search the old trunks", "You find a photograph.", "attic").
		End("Jump out the window", "You land in the hedge. The end.")
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

// flakyStore fails Save on demand.
type flakyStore struct {
	*memory.Store
	mu       sync.Mutex
	failSave bool
	failLoad bool
}

func (s *flakyStore) setFailSave(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSave = v
}

func (s *flakyStore) Save(ctx context.Context, userID string, session *domain.Session) error {
	s.mu.Lock()
	fail := s.failSave
	s.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return s.Store.Save(ctx, userID, session)
}

func (s *flakyStore) Load(ctx context.Context, userID string) (*domain.Session, error) {
	if s.failLoad {
		return nil, errors.New("connection reset")
	}
	return s.Store.Load(ctx, userID)
}

func TestController_StartGenerative(t *testing.T) {
	store := memory.NewStore()
	gen := scripted.New([]string{
		"Open the letter by candlelight",
		"Call the inspector at once",
		"Hide the letter under the rug",
	})
	ctrl := session.New(store, session.WithGenerator(gen), session.WithClock(clock))

	turn, err := ctrl.Start(context.Background(), "u1", session.StartRequest{Prompt: detectivePrompt})
	require.NoError(t, err)

	assert.Equal(t, []string{detectivePrompt}, turn.Session.Narrative)
	assert.Equal(t, domain.ModeGenerative, turn.Session.Mode)
	assert.Equal(t, domain.StatusActive, turn.Session.Status)
	assert.Empty(t, turn.Session.CurrentNodeID)
	assert.Equal(t, domain.ChoiceSet{
		"Open the letter by candlelight",
		"Call the inspector at once",
		"Hide the letter under the rug",
	}, turn.Choices)
	assert.False(t, turn.Ended())

	stored, err := store.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{detectivePrompt}, stored.Narrative)
	assert.True(t, fixedNow.Equal(stored.CreatedAt))

	require.Len(t, gen.Calls(), 1)
	assert.Equal(t, detectivePrompt+selector.ContinuationPrompt, gen.Calls()[0])
}

func TestController_GenerativeFallbacks(t *testing.T) {
	tests := []struct {
		name string
		gen  ports.ChoiceGenerator
	}{
		{"no generator", nil},
		{"silent generator", scripted.New()},
		{"short candidates", scripted.NewLooping([]string{"ok"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := []session.Option{session.WithClock(clock)}
			if tt.gen != nil {
				opts = append(opts, session.WithGenerator(tt.gen))
			}
			ctrl := session.New(memory.NewStore(), opts...)

			turn, err := ctrl.Start(context.Background(), "u1", session.StartRequest{Prompt: detectivePrompt})
			require.NoError(t, err)
			assert.Equal(t, domain.ChoiceSet(domain.DefaultFallbackChoices), turn.Choices)
		})
	}
}

func TestController_AdvanceGenerativeIsAppendOnly(t *testing.T) {
	gen := scripted.NewLooping([]string{"Follow the footprints outside", "Read the letter aloud now"})
	ctrl := session.New(memory.NewStore(), session.WithGenerator(gen), session.WithClock(clock))
	ctx := context.Background()

	_, err := ctrl.Start(ctx, "u1", session.StartRequest{Prompt: detectivePrompt})
	require.NoError(t, err)

	before := []string{detectivePrompt}
	for i, choice := range []string{"Follow the footprints outside", "  a reader's own idea  "} {
		turn, err := ctrl.Advance(ctx, "u1", choice)
		require.NoError(t, err)
		require.Len(t, turn.Session.Narrative, len(before)+1, "advance %d", i)
		assert.Equal(t, before, turn.Session.Narrative[:len(before)], "earlier segments untouched")
		assert.Len(t, turn.Choices, domain.ChoiceSetSize)
		before = turn.Session.Narrative
	}
	assert.Equal(t, "a reader's own idea", before[2])
}

func TestController_AdvanceErrors(t *testing.T) {
	store := memory.NewStore()
	ctrl := session.New(store, session.WithGraph(mansion(t)), session.WithClock(clock))
	ctx := context.Background()

	_, err := ctrl.Advance(ctx, "ghost", "Open the letter")
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = ctrl.Start(ctx, "u1", session.StartRequest{NodeID: "study"})
	require.NoError(t, err)
	before, err := store.Load(ctx, "u1")
	require.NoError(t, err)

	_, err = ctrl.Advance(ctx, "u1", "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = ctrl.Advance(ctx, "u1", "Dance on the desk wildly")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = ctrl.Advance(ctx, "", "Open the letter")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	after, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, before, after, "rejected input must not change stored state")
}

func TestController_GraphTraversal(t *testing.T) {
	ctrl := session.New(memory.NewStore(), session.WithGraph(mansion(t)), session.WithClock(clock))
	ctx := context.Background()

	turn, err := ctrl.Start(ctx, "u1", session.StartRequest{NodeID: "hall"})
	require.NoError(t, err)
	assert.Equal(t, "hall", turn.Session.CurrentNodeID)
	assert.Equal(t, []string{"Rain hammers the windows of the old mansion."}, turn.Session.Narrative)
	assert.Equal(t, domain.ChoiceSet{"Enter the dark study", "Investigate the mystery", "Confront the challenge"}, turn.Choices)

	turn, err = ctrl.Advance(ctx, "u1", "Enter the dark study")
	require.NoError(t, err)
	assert.Equal(t, "study", turn.Session.CurrentNodeID)
	assert.Equal(t, []string{"hall", "study"}, turn.Session.Path)
	require.Len(t, turn.Session.Narrative, 2)
	assert.Equal(t, "Enter the dark study -> The door creaks open.\n\nA letter lies on the desk.", turn.Session.Narrative[1])
	assert.Equal(t, domain.ChoiceSet{"Open the letter", "Climb to the attic", "Investigate the mystery"}, turn.Choices)

	turn, err = ctrl.Advance(ctx, "u1", "Open the letter")
	require.NoError(t, err)
	assert.True(t, turn.Ended())
	assert.Equal(t, domain.StatusEnded, turn.Session.Status)
	assert.Empty(t, turn.Session.CurrentNodeID)
	assert.Empty(t, turn.Choices)
	assert.NotNil(t, turn.Choices)
	assert.Equal(t, "Open the letter -> It was from you all along.", turn.Session.Narrative[2])

	_, err = ctrl.Advance(ctx, "u1", "Climb to the attic")
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)
}

func TestController_GraphFallbackChoiceStaysOnNode(t *testing.T) {
	ctrl := session.New(memory.NewStore(), session.WithGraph(mansion(t)), session.WithClock(clock))
	ctx := context.Background()

	_, err := ctrl.Start(ctx, "u1", session.StartRequest{NodeID: "hall"})
	require.NoError(t, err)

	turn, err := ctrl.Advance(ctx, "u1", "Investigate the mystery")
	require.NoError(t, err)
	assert.Equal(t, "hall", turn.Session.CurrentNodeID)
	assert.Equal(t, "Investigate the mystery", turn.Session.Narrative[1])
	assert.Len(t, turn.Choices, domain.ChoiceSetSize)
}

func TestController_GraphDeadEndEndsStory(t *testing.T) {
	var ended int
	hooks := domain.LifecycleHooks{
		OnSessionEnd: func(context.Context, *domain.SessionEvent) { ended++ },
	}
	b := dsl.New()
	b.Add("stairs").Prompt("Stone steps lead down into the dark.").
		Choice("Descend into the cellar", "The door slams shut behind you.", "cellar")
	b.Add("cellar").Prompt("Water drips somewhere in the dark.")
	ctrl := session.New(memory.NewStore(), session.WithGraph(b.MustBuild()), session.WithClock(clock), session.WithHooks(hooks))
	ctx := context.Background()

	_, err := ctrl.Start(ctx, "u1", session.StartRequest{NodeID: "stairs"})
	require.NoError(t, err)

	turn, err := ctrl.Advance(ctx, "u1", "Descend into the cellar")
	require.NoError(t, err)
	assert.True(t, turn.Ended())
	assert.Empty(t, turn.Choices)
	assert.Equal(t, []string{"stairs", "cellar"}, turn.Session.Path)
	require.Len(t, turn.Session.Narrative, 2)
	assert.Equal(t, "Descend into the cellar -> The door slams shut behind you.\n\nWater drips somewhere in the dark.", turn.Session.Narrative[1])
	assert.Equal(t, 1, ended)

	_, err = ctrl.Advance(ctx, "u1", "Investigate the mystery")
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)

	turn, err = ctrl.Start(ctx, "u2", session.StartRequest{NodeID: "cellar"})
	require.NoError(t, err)
	assert.True(t, turn.Ended())
	assert.Empty(t, turn.Choices)
	assert.Equal(t, []string{"Water drips somewhere in the dark."}, turn.Session.Narrative)
	assert.Equal(t, 2, ended)
}

func TestController_StartValidation(t *testing.T) {
	ctrl := session.New(memory.NewStore(), session.WithGraph(mansion(t)))
	ctx := context.Background()

	tests := []struct {
		name   string
		userID string
		req    session.StartRequest
	}{
		{"empty user", " ", session.StartRequest{Prompt: detectivePrompt}},
		{"empty prompt", "u1", session.StartRequest{Prompt: "  "}},
		{"both", "u1", session.StartRequest{Prompt: detectivePrompt, NodeID: "hall"}},
		{"unknown node", "u1", session.StartRequest{NodeID: "cellar"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ctrl.Start(ctx, tt.userID, tt.req)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}

	noGraph := session.New(memory.NewStore())
	_, err := noGraph.Start(ctx, "u1", session.StartRequest{NodeID: "hall"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestController_StartReplacesPreviousSession(t *testing.T) {
	ctrl := session.New(memory.NewStore(), session.WithGraph(mansion(t)), session.WithClock(clock))
	ctx := context.Background()

	_, err := ctrl.Start(ctx, "u1", session.StartRequest{NodeID: "study"})
	require.NoError(t, err)
	_, err = ctrl.Advance(ctx, "u1", "Open the letter")
	require.NoError(t, err)

	turn, err := ctrl.Start(ctx, "u1", session.StartRequest{Prompt: detectivePrompt})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, turn.Session.Status)
	assert.Equal(t, []string{detectivePrompt}, turn.Session.Narrative)
}

func TestController_EndIsIdempotent(t *testing.T) {
	var ended int
	hooks := domain.LifecycleHooks{
		OnSessionEnd: func(context.Context, *domain.SessionEvent) { ended++ },
	}
	ctrl := session.New(memory.NewStore(), session.WithClock(clock), session.WithHooks(hooks))
	ctx := context.Background()

	_, err := ctrl.End(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)

	_, err = ctrl.Start(ctx, "u1", session.StartRequest{Prompt: detectivePrompt})
	require.NoError(t, err)
	_, err = ctrl.Advance(ctx, "u1", "Open the letter by candlelight")
	require.NoError(t, err)

	first, err := ctrl.End(ctx, "u1")
	require.NoError(t, err)
	second, err := ctrl.End(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, []string{detectivePrompt, "Open the letter by candlelight"}, first.Narrative)
	assert.Equal(t, first.Narrative, second.Narrative)
	assert.Equal(t, domain.StatusEnded, second.Status)
	assert.Equal(t, 1, ended, "end hook fires once")
}

func TestController_Resume(t *testing.T) {
	ctrl := session.New(memory.NewStore(), session.WithGraph(mansion(t)), session.WithClock(clock))
	ctx := context.Background()

	_, err := ctrl.Resume(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)

	_, err = ctrl.Start(ctx, "u1", session.StartRequest{NodeID: "study"})
	require.NoError(t, err)

	turn, err := ctrl.Resume(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "study", turn.Session.CurrentNodeID)
	assert.Len(t, turn.Choices, domain.ChoiceSetSize)

	_, err = ctrl.End(ctx, "u1")
	require.NoError(t, err)
	turn, err = ctrl.Resume(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, turn.Ended())
	assert.Empty(t, turn.Choices)
}

func TestController_SessionSkipsChoiceSelection(t *testing.T) {
	var calls int
	gen := ports.ChoiceGeneratorFunc(func(context.Context, string, int) ([]string, error) {
		calls++
		return []string{"Follow the muddy footprints"}, nil
	})
	ctrl := session.New(memory.NewStore(), session.WithGenerator(gen), session.WithClock(clock))
	ctx := context.Background()

	_, err := ctrl.Session(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)
	_, err = ctrl.Session(ctx, " ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = ctrl.Start(ctx, "u1", session.StartRequest{Prompt: detectivePrompt})
	require.NoError(t, err)
	before := calls

	got, err := ctrl.Session(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{detectivePrompt}, got.Narrative)
	assert.Equal(t, before, calls)
}

func TestController_StartRandom(t *testing.T) {
	ctrl := session.New(memory.NewStore(), session.WithGraph(mansion(t)))
	ctx := context.Background()

	turn, err := ctrl.StartRandom(ctx, "u1", rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)
	assert.Equal(t, "hall", turn.Session.CurrentNodeID, "hall is the only opening node")

	_, err = session.New(memory.NewStore()).StartRandom(ctx, "u1", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestController_PersistenceFailure(t *testing.T) {
	store := &flakyStore{Store: memory.NewStore()}
	ctrl := session.New(store, session.WithGraph(mansion(t)), session.WithClock(clock))
	ctx := context.Background()

	store.setFailSave(true)
	_, err := ctrl.Start(ctx, "u1", session.StartRequest{NodeID: "hall"})
	assert.ErrorIs(t, err, domain.ErrPersistence)

	store.setFailSave(false)
	_, err = ctrl.Start(ctx, "u1", session.StartRequest{NodeID: "hall"})
	require.NoError(t, err)

	store.setFailSave(true)
	_, err = ctrl.Advance(ctx, "u1", "Enter the dark study")
	assert.ErrorIs(t, err, domain.ErrPersistence)
	_, err = ctrl.End(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrPersistence)

	stored, err := store.Store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "hall", stored.CurrentNodeID)
	assert.Len(t, stored.Narrative, 1)

	store.failLoad = true
	_, err = ctrl.Resume(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.NotErrorIs(t, err, domain.ErrNoActiveSession)
}

func TestController_Hooks(t *testing.T) {
	var events []domain.EventType
	var selections []*domain.SelectionEvent
	record := func(_ context.Context, e *domain.SessionEvent) { events = append(events, e.Type) }
	hooks := domain.LifecycleHooks{
		OnSessionStart: record,
		OnAdvance:      record,
		OnSessionEnd:   record,
		OnChoicesSelected: func(_ context.Context, e *domain.SelectionEvent) {
			selections = append(selections, e)
		},
	}
	ctrl := session.New(memory.NewStore(), session.WithGraph(mansion(t)), session.WithHooks(hooks), session.WithClock(clock))
	ctx := context.Background()

	_, err := ctrl.Start(ctx, "u1", session.StartRequest{NodeID: "study"})
	require.NoError(t, err)
	_, err = ctrl.Advance(ctx, "u1", "Open the letter")
	require.NoError(t, err)

	assert.Equal(t, []domain.EventType{
		domain.EventSessionStart,
		domain.EventSessionAdvance,
		domain.EventSessionEnd,
	}, events)
	require.Len(t, selections, 1, "ended sessions skip selection")
	assert.Equal(t, domain.ModeGraph, selections[0].Mode)
	assert.Equal(t, 1, selections[0].Attempts)
	assert.Equal(t, 1, selections[0].Padded)
}

func TestController_ConcurrentAdvancesAreSerialized(t *testing.T) {
	store := &slowStore{Store: memory.NewStore(), delay: 2 * time.Millisecond}
	ctrl := session.New(store)
	ctx := context.Background()

	_, err := ctrl.Start(ctx, "u1", session.StartRequest{Prompt: detectivePrompt})
	require.NoError(t, err)

	const writers = 10
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := ctrl.Advance(ctx, "u1", fmt.Sprintf("reader move number %d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	final, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, final.Narrative, writers+1, "no advance may be lost")
}

// slowStore widens the read-modify-write window.
type slowStore struct {
	*memory.Store
	delay time.Duration
}

func (s *slowStore) Load(ctx context.Context, userID string) (*domain.Session, error) {
	time.Sleep(s.delay)
	return s.Store.Load(ctx, userID)
}

// countingLocker records lock usage.
type countingLocker struct {
	mu      sync.Mutex
	locks   int
	unlocks int
	lockErr error
	lastKey string
	lastTTL time.Duration
}

func (l *countingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lockErr != nil {
		return nil, l.lockErr
	}
	l.locks++
	l.lastKey = key
	l.lastTTL = ttl
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.unlocks++
		return nil
	}, nil
}

func TestController_DistributedLocker(t *testing.T) {
	locker := &countingLocker{}
	ctrl := session.New(memory.NewStore(), session.WithLocker(locker, 5*time.Second))
	ctx := context.Background()

	_, err := ctrl.Start(ctx, "u1", session.StartRequest{Prompt: detectivePrompt})
	require.NoError(t, err)
	_, err = ctrl.Advance(ctx, "u1", "Open the letter by candlelight")
	require.NoError(t, err)

	assert.Equal(t, 2, locker.locks)
	assert.Equal(t, 2, locker.unlocks)
	assert.Equal(t, "u1", locker.lastKey)
	assert.Equal(t, 5*time.Second, locker.lastTTL)

	locker.lockErr = errors.New("redis down")
	_, err = ctrl.Advance(ctx, "u1", "Open the letter by candlelight")
	assert.ErrorContains(t, err, "redis down")
}
