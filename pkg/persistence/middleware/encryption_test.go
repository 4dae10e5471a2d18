package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/branchtale/pkg/adapters/memory"
	"github.com/aretw0/branchtale/pkg/domain"
	"github.com/aretw0/branchtale/pkg/persistence/middleware"
	"github.com/aretw0/branchtale/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func encrypted(t *testing.T, next ports.ProgressStore, cfg middleware.EncryptionConfig) ports.ProgressStore {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return middleware.Chain(next, mw)
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	ports.RunProgressStoreContract(t, encrypted(t, memory.NewStore(), middleware.EncryptionConfig{ActiveKey: generateKey(t)}))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	secure := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})

	ctx := context.Background()
	session := domain.NewGenerativeSession("alice", "The book glows, revealing a hidden world inside.", time.Now().UTC())
	session.Append("Step through the pages")
	require.NoError(t, secure.Save(ctx, "alice", session))

	stored, err := underlying.Load(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, stored.Narrative, 1)
	assert.True(t, strings.HasPrefix(stored.Narrative[0], "enc:v1:"))
	assert.NotContains(t, stored.Narrative[0], "hidden world")
	assert.Equal(t, domain.StatusActive, stored.Status)

	loaded, err := secure.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, session.Narrative, loaded.Narrative)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	ctx := context.Background()

	oldStore := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: oldKey})
	session := domain.NewGenerativeSession("bob", "A coded letter arrives.", time.Now().UTC())
	require.NoError(t, oldStore.Save(ctx, "bob", session))

	newStore := encrypted(t, underlying, middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})
	loaded, err := newStore.Load(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"A coded letter arrives."}, loaded.Narrative)

	// Re-saving seals with the new key only.
	require.NoError(t, newStore.Save(ctx, "bob", loaded))
	_, err = oldStore.Load(ctx, "bob")
	assert.Error(t, err)
}

func TestEncryptionMiddleware_Errors(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	assert.ErrorIs(t, err, middleware.ErrInvalidKey)

	_, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    generateKey(t),
		FallbackKeys: [][]byte{[]byte("short")},
	})
	assert.ErrorIs(t, err, middleware.ErrInvalidKey)

	underlying := memory.NewStore()
	secure := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ctx := context.Background()

	_, err = secure.Load(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	plain := domain.NewGenerativeSession("carol", "Plain text is refused.", time.Now().UTC())
	require.NoError(t, underlying.Save(ctx, "carol", plain))
	_, err = secure.Load(ctx, "carol")
	assert.ErrorContains(t, err, "envelope")
}
