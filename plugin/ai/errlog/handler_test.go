package errlog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/nova/plugin/ai/aitime"
	"github.com/hrygo/nova/store"
	"github.com/hrygo/nova/store/db/memory"
)

func newTestHandler(t *testing.T) (*Handler, *store.Store, *aitime.FakeClock) {
	t.Helper()
	st := store.New(memory.NewDB(), nil)
	clock := aitime.NewFakeClock(time.Date(2026, 10, 14, 20, 0, 0, 0, time.UTC))
	return NewHandler(st, nil, clock), st, clock
}

func TestHandler_HandleError(t *testing.T) {
	ctx := context.Background()
	h, st, _ := newTestHandler(t)

	id := h.HandleError(ctx, TypeValidation, "bad payload", map[string]any{"event_type": "venue_interaction"}, false)
	require.NotEmpty(t, id)

	rec, ok := h.Get(id)
	require.True(t, ok)
	assert.Equal(t, TypeValidation, rec.Type)
	assert.False(t, rec.Resolved)
	assert.Equal(t, "venue_interaction", rec.Context["event_type"])

	// Persisted and reloadable.
	reloaded := NewHandler(st, nil, nil)
	require.NoError(t, reloaded.Load(ctx))
	assert.Len(t, reloaded.Records(), 1)
	assert.Equal(t, id, reloaded.Records()[0].ID)
}

func TestHandler_CapsRecords(t *testing.T) {
	ctx := context.Background()
	h, _, _ := newTestHandler(t)

	var last string
	for i := 0; i < 120; i++ {
		last = h.HandleError(ctx, TypeDataProcessing, fmt.Sprintf("failure %d", i), nil, false)
	}
	records := h.Records()
	assert.Len(t, records, 100)
	assert.Equal(t, last, records[len(records)-1].ID)
	assert.Equal(t, "failure 20", records[0].Message)
}

func TestHandler_RetryOperation(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves on success", func(t *testing.T) {
		h, _, _ := newTestHandler(t)
		id := h.HandleError(ctx, TypeAICall, "timeout", nil, true)

		calls := 0
		err := h.RetryOperation(ctx, id, func(context.Context) error {
			calls++
			if calls < 2 {
				return errors.New("still failing")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)

		rec, _ := h.Get(id)
		assert.True(t, rec.Resolved)
		assert.Equal(t, 2, rec.RetryCount)
		assert.NotNil(t, rec.ResolvedAt)
	})

	t.Run("stops after budget", func(t *testing.T) {
		h, _, _ := newTestHandler(t)
		id := h.HandleError(ctx, TypeAICall, "auth", nil, true)

		calls := 0
		err := h.RetryOperation(ctx, id, func(context.Context) error {
			calls++
			return errors.New("denied")
		})
		assert.ErrorIs(t, err, ErrRetryBudgetExhausted)
		assert.Equal(t, 3, calls)

		rec, _ := h.Get(id)
		assert.False(t, rec.Resolved)
		assert.Equal(t, 3, rec.RetryCount)

		// Further retries do not run op.
		err = h.RetryOperation(ctx, id, func(context.Context) error {
			calls++
			return nil
		})
		assert.ErrorIs(t, err, ErrRetryBudgetExhausted)
		assert.Equal(t, 3, calls)
	})

	t.Run("unknown id", func(t *testing.T) {
		h, _, _ := newTestHandler(t)
		assert.Error(t, h.RetryOperation(ctx, "missing", func(context.Context) error { return nil }))
	})
}

func TestHandler_Cleanup(t *testing.T) {
	ctx := context.Background()
	h, _, clock := newTestHandler(t)

	resolvedID := h.HandleError(ctx, TypeAICall, "old resolved", nil, true)
	require.NoError(t, h.RetryOperation(ctx, resolvedID, func(context.Context) error { return nil }))
	openID := h.HandleError(ctx, TypeAICall, "old unresolved", nil, true)

	clock.Advance(8 * 24 * time.Hour)
	freshID := h.HandleError(ctx, TypeAICall, "fresh", nil, false)

	assert.Equal(t, 1, h.Cleanup(ctx))
	_, ok := h.Get(resolvedID)
	assert.False(t, ok)
	_, ok = h.Get(openID)
	assert.True(t, ok)
	_, ok = h.Get(freshID)
	assert.True(t, ok)
}

func TestErrorTaxonomy(t *testing.T) {
	err := Wrap(errors.New("quota"), TypeDataProcessing, "persist events").WithContext("key", store.KeyUserEvents)
	wrapped := errors.Wrap(err, "track")

	assert.True(t, IsType(wrapped, TypeDataProcessing))
	assert.False(t, IsType(wrapped, TypeValidation))
	assert.Equal(t, TypeDataProcessing, TypeOf(wrapped, TypeAICall))
	assert.Equal(t, TypeAICall, TypeOf(errors.New("plain"), TypeAICall))
	assert.Contains(t, err.Error(), "[data_processing] persist events: quota")

	h, _, _ := newTestHandler(t)
	id := h.Report(context.Background(), wrapped, TypeAICall, false)
	rec, ok := h.Get(id)
	require.True(t, ok)
	assert.Equal(t, TypeDataProcessing, rec.Type)
	assert.Equal(t, store.KeyUserEvents, rec.Context["key"])
}
