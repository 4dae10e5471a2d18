package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/branchtale/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunProgressStoreContract runs a suite of tests to verify that a ProgressStore implementation
// adheres to the defined interface contract.
func RunProgressStoreContract(t *testing.T, store ProgressStore) {
	ctx := context.Background()
	userID := "contract-user-" + time.Now().Format("20060102150405")
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Save and Load", func(t *testing.T) {
		session := domain.NewGraphSession(userID, domain.StoryNode{ID: "start", Prompt: "The door creaks."}, now)

		require.NoError(t, store.Save(ctx, userID, session), "Save should not return error")

		loaded, err := store.Load(ctx, userID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, session.UserID, loaded.UserID)
		assert.Equal(t, session.CurrentNodeID, loaded.CurrentNodeID)
		assert.Equal(t, session.Narrative, loaded.Narrative)
		assert.Equal(t, session.Path, loaded.Path)
		assert.Equal(t, domain.StatusActive, loaded.Status)
		assert.Equal(t, domain.ModeGraph, loaded.Mode)
		assert.True(t, session.CreatedAt.Equal(loaded.CreatedAt))
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		session := domain.NewGenerativeSession(userID, "A detective finds a hidden letter.", now)
		require.NoError(t, store.Save(ctx, userID, session))

		session.Append("Open the letter by candlelight")
		session.End(now.Add(time.Minute))
		require.NoError(t, store.Save(ctx, userID, session))
		require.NoError(t, store.Save(ctx, userID, session), "Save must be idempotent")

		loaded, err := store.Load(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, []string{"A detective finds a hidden letter.", "Open the letter by candlelight"}, loaded.Narrative)
		assert.Equal(t, domain.StatusEnded, loaded.Status)
		assert.Empty(t, loaded.CurrentNodeID)
	})

	t.Run("Load Returns Copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, userID)
		require.NoError(t, err)
		loaded.Append("mutated after load")

		again, err := store.Load(ctx, userID)
		require.NoError(t, err)
		assert.NotContains(t, again.Narrative, "mutated after load")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+userID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	if lister, ok := store.(ListableStore); ok {
		t.Run("List", func(t *testing.T) {
			id1 := userID + "-1"
			id2 := userID + "-2"
			require.NoError(t, lister.Save(ctx, id1, domain.NewGenerativeSession(id1, "First prompt here.", now)))
			require.NoError(t, lister.Save(ctx, id2, domain.NewGenerativeSession(id2, "Second prompt here.", now)))

			users, err := lister.List(ctx)
			require.NoError(t, err)
			assert.Contains(t, users, id1)
			assert.Contains(t, users, id2)
		})
	}
}
