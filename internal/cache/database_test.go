package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/athlosone/athlos-server/internal/database"
)

func setupStoreTest(t *testing.T) *DatabaseStore {
	t.Helper()

	db, err := database.Open(database.Config{Driver: "sqlite"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return NewDatabaseStore(db)
}

func TestDatabaseStoreIncrementWithTTL(t *testing.T) {
	store := setupStoreTest(t)
	ctx := context.Background()

	count, ttl, err := store.IncrementWithTTL(ctx, "counter", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Greater(t, ttl, time.Duration(0))

	count, _, err = store.IncrementWithTTL(ctx, "counter", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	// Separate keys keep separate counters.
	count, _, err = store.IncrementWithTTL(ctx, "other", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestDatabaseStoreSetGetDelete(t *testing.T) {
	store := setupStoreTest(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "state", []byte(`{"nonce":"abc"}`), time.Minute))

	value, found, err := store.Get(ctx, "state")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte(`{"nonce":"abc"}`), value)

	// Overwrites keep the latest value.
	require.NoError(t, store.Set(ctx, "state", []byte("updated"), time.Minute))
	value, found, err = store.Get(ctx, "state")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("updated"), value)

	require.NoError(t, store.Delete(ctx, "state"))
	_, found, err = store.Get(ctx, "state")
	require.NoError(t, err)
	require.False(t, found)
}

func TestDatabaseStoreGetExpired(t *testing.T) {
	store := setupStoreTest(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", []byte("v"), time.Nanosecond))
	time.Sleep(time.Millisecond)

	_, found, err := store.Get(ctx, "short")
	require.NoError(t, err)
	require.False(t, found)
}

func TestDatabaseStoreGetMissing(t *testing.T) {
	store := setupStoreTest(t)

	_, found, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, found)
}
