package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/nova/internal/profile"
	"github.com/hrygo/nova/store"
)

func TestDB_KeyValue(t *testing.T) {
	ctx := context.Background()
	driver, err := NewDB(&profile.Profile{DSN: filepath.Join(t.TempDir(), "nova_test.db")})
	require.NoError(t, err)
	defer driver.Close()

	_, err = driver.Get(ctx, store.KeyUserEvents)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, driver.Set(ctx, store.KeyUserEvents, []byte(`{"events":[]}`)))
	require.NoError(t, driver.Set(ctx, store.KeyUserEvents, []byte(`{"events":[1]}`)))

	value, err := driver.Get(ctx, store.KeyUserEvents)
	require.NoError(t, err)
	assert.Equal(t, `{"events":[1]}`, string(value))

	usage, err := driver.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(store.KeyUserEvents)+len(`{"events":[1]}`)), usage)

	require.NoError(t, driver.Delete(ctx, store.KeyUserEvents))
	_, err = driver.Get(ctx, store.KeyUserEvents)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestNewDB_RequiresDSN(t *testing.T) {
	_, err := NewDB(&profile.Profile{})
	assert.Error(t, err)
}
