package local

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garciabuilder/site-service/internal/core/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "nested", "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_PutGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ts := time.UnixMilli(1_700_000_000_123)

	err := store.Put(ctx, "u1", domain.SectionKey(domain.SectionBasic), domain.LocalEntry{
		Data:      json.RawMessage(`{"full_name":"Ana"}`),
		UpdatedAt: ts,
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, "u1", "gb_brutal_basic")
	require.NoError(t, err)
	assert.JSONEq(t, `{"full_name":"Ana"}`, string(got.Data))
	assert.False(t, got.Synced)
	assert.Equal(t, domain.SchemaVersion, got.SchemaVersion)
	assert.True(t, ts.Equal(got.UpdatedAt))

	t.Run("overwrite flips synced", func(t *testing.T) {
		got.Synced = true
		require.NoError(t, store.Put(ctx, "u1", "gb_brutal_basic", got))

		again, err := store.Get(ctx, "u1", "gb_brutal_basic")
		require.NoError(t, err)
		assert.True(t, again.Synced)
	})

	t.Run("namespaces are isolated", func(t *testing.T) {
		_, err := store.Get(ctx, "u2", "gb_brutal_basic")
		assert.True(t, errors.Is(err, domain.ErrEntryNotFound))
	})
}

func TestStore_NewerSchemaRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "u1", "k", domain.LocalEntry{
		SchemaVersion: domain.SchemaVersion + 1,
		Data:          json.RawMessage(`{}`),
	}))

	_, err := store.Get(ctx, "u1", "k")
	assert.True(t, errors.Is(err, domain.ErrSchemaVersion))

	entries, err := store.List(ctx, "u1", "")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_ListUsesLiteralPrefix(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"gb_brutal_basic", "gb_brutal_habits", "gbXbrutalXbasic", "garcia_profile_u1"} {
		require.NoError(t, store.Put(ctx, "u1", key, domain.LocalEntry{Data: json.RawMessage(`1`)}))
	}

	entries, err := store.List(ctx, "u1", domain.SectionKeyPrefix())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Contains(t, entries, "gb_brutal_basic")
	assert.Contains(t, entries, "gb_brutal_habits")
}

func TestStore_PendingNamespacesAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	prefix := domain.SectionKeyPrefix()

	require.NoError(t, store.Put(ctx, "u1", "gb_brutal_basic", domain.LocalEntry{Data: json.RawMessage(`{}`)}))
	require.NoError(t, store.Put(ctx, "u2", "gb_brutal_basic", domain.LocalEntry{Data: json.RawMessage(`{}`), Synced: true}))
	require.NoError(t, store.Put(ctx, "u3", "gb_last_submit", domain.LocalEntry{Data: json.RawMessage(`0`)}))

	pending, err := store.PendingNamespaces(ctx, prefix)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, pending)

	count, err := store.CountPending(ctx, prefix)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, store.Delete(ctx, "u1", "gb_brutal_basic", "does-not-exist"))
	pending, err = store.PendingNamespaces(ctx, prefix)
	require.NoError(t, err)
	assert.Empty(t, pending)

	count, err = store.CountPending(ctx, prefix)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.db")
	ctx := context.Background()

	store, err := New(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "u1", "k", domain.LocalEntry{Data: json.RawMessage(`"v"`)}))
	require.NoError(t, store.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "u1", "k")
	require.NoError(t, err)
	assert.Equal(t, `"v"`, string(got.Data))
}
