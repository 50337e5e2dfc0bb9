package patternstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindSimilar(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	near := testPattern(t, "connection timeout error on startup")
	require.NoError(t, store.Save(ctx, near))

	far := testPattern(t, "unrelated configuration issue")
	require.NoError(t, store.Save(ctx, far))

	t.Run("empty signature", func(t *testing.T) {
		_, err := store.FindSimilar(ctx, "", 0)
		assert.ErrorIs(t, err, ErrEmptySignature)
	})

	t.Run("default threshold keeps close matches only", func(t *testing.T) {
		got, err := store.FindSimilar(ctx, "connection timeout failure on startup", 0)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, near.ID, got[0].ID)
		// tokens share {connection, timeout, on, startup} of six distinct.
		assert.InDelta(t, 4.0/6.0, got[0].Score, 1e-9)
	})

	t.Run("exact signature scores one", func(t *testing.T) {
		got, err := store.FindSimilar(ctx, "connection timeout error on startup", 0)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.InDelta(t, 1.0, got[0].Score, 1e-9)
	})

	t.Run("lower threshold widens the net", func(t *testing.T) {
		got, err := store.FindSimilar(ctx, "configuration issue", 0.3)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, far.ID, got[0].ID)
	})

	t.Run("matching is case insensitive", func(t *testing.T) {
		got, err := store.FindSimilar(ctx, "CONNECTION TIMEOUT ERROR ON STARTUP", 0.9)
		require.NoError(t, err)
		require.Len(t, got, 1)
	})

	t.Run("no match above threshold", func(t *testing.T) {
		got, err := store.FindSimilar(ctx, "completely different words here", 0)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("results sorted by score descending", func(t *testing.T) {
		also := testPattern(t, "connection timeout error on shutdown")
		require.NoError(t, store.Save(ctx, also))

		got, err := store.FindSimilar(ctx, "connection timeout error on startup", 0.5)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, near.ID, got[0].ID)
		assert.Equal(t, also.ID, got[1].ID)
		assert.Greater(t, got[0].Score, got[1].Score)
	})

	t.Run("query anonymized before matching", func(t *testing.T) {
		host := testPattern(t, "cannot reach http://db.internal:5432/health endpoint")
		require.NoError(t, store.Save(ctx, host))

		got, err := store.FindSimilar(ctx, "cannot reach http://cache.internal:6379/health endpoint", 0.9)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, host.ID, got[0].ID)
	})
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{name: "identical", a: "a b c", b: "a b c", want: 1.0},
		{name: "disjoint", a: "a b", b: "c d", want: 0.0},
		{name: "half overlap", a: "a b c", b: "b c d", want: 0.5},
		{name: "both empty", a: "", b: "", want: 0.0},
		{name: "one empty", a: "a b", b: "", want: 0.0},
		{name: "duplicate tokens collapse", a: "a a b", b: "a b", want: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, jaccard(tokenSet(tt.a), tokenSet(tt.b)), 1e-9)
		})
	}
}
