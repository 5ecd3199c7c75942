package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisBackendTest(t *testing.T, ttl time.Duration) (*RedisBackend, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err, "miniredis start")
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewRedisBackend(rdb, ttl), mr
}

func newSQLiteBackendTest(t *testing.T) *SQLiteBackend {
	t.Helper()
	backend, err := OpenSQLite(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	return backend
}

// exerciseBackend runs the Store contract against a real medium.
func exerciseBackend(t *testing.T, backend Backend) {
	t.Helper()
	ctx := context.Background()
	store := NewStore(backend, "it", nil)

	rec, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec)

	require.NoError(t, store.Save(ctx, "abc", testProfile(), time.Time{}))
	rec, err = store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "abc", rec.Token)
	assert.Equal(t, testProfile(), rec.Profile)

	require.NoError(t, store.Save(ctx, "def", testProfile(), time.Time{}))
	token, ok := store.Token(ctx)
	require.True(t, ok)
	assert.Equal(t, "def", token)

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx))
	rec, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRedisBackendStoreContract(t *testing.T) {
	backend, _ := newRedisBackendTest(t, 0)
	exerciseBackend(t, backend)
}

func TestRedisBackendPairExpiresTogether(t *testing.T) {
	backend, mr := newRedisBackendTest(t, time.Hour)
	store := NewStore(backend, "ttl", nil)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "abc", testProfile(), time.Time{}))

	tokenKey, profileKey := store.Keys()
	assert.Equal(t, time.Hour, mr.TTL(tokenKey))
	assert.Equal(t, time.Hour, mr.TTL(profileKey))

	mr.FastForward(2 * time.Hour)
	rec, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRedisBackendUnavailable(t *testing.T) {
	backend, mr := newRedisBackendTest(t, 0)
	store := NewStore(backend, "down", nil)
	mr.Close()

	_, err := store.Load(context.Background())
	require.ErrorIs(t, err, ErrBackendUnavailable)
	require.ErrorIs(t, store.Save(context.Background(), "abc", testProfile(), time.Time{}), ErrBackendUnavailable)
}

func TestSQLiteBackendStoreContract(t *testing.T) {
	exerciseBackend(t, newSQLiteBackendTest(t))
}

func TestSQLiteBackendPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	ctx := context.Background()

	first, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, NewStore(first, "", nil).Save(ctx, "abc", testProfile(), time.Time{}))
	require.NoError(t, first.Close())

	second, err := OpenSQLite(path)
	require.NoError(t, err)
	defer second.Close()
	rec, err := NewStore(second, "", nil).Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "abc", rec.Token)
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	_, err := OpenSQLite("  ")
	require.Error(t, err)
}
