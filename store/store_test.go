package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/nova/internal/profile"
	"github.com/hrygo/nova/store"
	"github.com/hrygo/nova/store/db/memory"
)

func TestStore_JSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := store.New(memory.NewDB(), &profile.Profile{})

	type entry struct {
		Name string `json:"name"`
	}

	var got entry
	found, err := s.GetJSON(ctx, "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SetJSON(ctx, store.KeyUserMemory, entry{Name: "nova"}))
	found, err = s.GetJSON(ctx, store.KeyUserMemory, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "nova", got.Name)

	require.NoError(t, s.Delete(ctx, store.KeyUserMemory))
	_, err = s.Get(ctx, store.KeyUserMemory)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_Quota(t *testing.T) {
	ctx := context.Background()
	s := store.New(memory.NewDB(), &profile.Profile{StorageQuotaBytes: 32})

	t.Run("write within quota", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k", []byte("0123456789")))
	})

	t.Run("overwrite replaces previous size", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k", []byte("0123456789abcdefghij")))
	})

	t.Run("write beyond quota is rejected", func(t *testing.T) {
		err := s.Set(ctx, "other", []byte("0123456789abcdefghij"))
		assert.ErrorIs(t, err, store.ErrQuotaExceeded)
	})

	assert.Equal(t, int64(32), s.Quota())
}
