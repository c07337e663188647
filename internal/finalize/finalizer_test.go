package finalize

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railbird/handreel/internal/store/storetest"
	"github.com/railbird/handreel/internal/telemetry"
	"github.com/railbird/handreel/pkg/models"
)

func newTestFinalizer(t *testing.T) (*Finalizer, *storetest.MemStore) {
	t.Helper()
	st := storetest.New()
	return NewFinalizer(st, telemetry.NewMetrics(), 5), st
}

func seedHand(t *testing.T, st *storetest.MemStore, start, end int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, st.CreateHand(context.Background(), &models.Hand{
		ID:           id,
		StreamID:     "stream-1",
		JobID:        uuid.New(),
		VideoTsStart: start,
		VideoTsEnd:   end,
	}))
	return id
}

func TestNormalizeRemovesNearDuplicates(t *testing.T) {
	fin, st := newTestFinalizer(t)
	ctx := context.Background()

	seedHand(t, st, 10, 30)
	keep := seedHand(t, st, 12, 40) // same hand, seen longer
	seedHand(t, st, 100, 120)

	count, err := fin.Normalize(ctx, "stream-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	hands, err := st.ListHandsByStream(ctx, "stream-1")
	require.NoError(t, err)
	require.Len(t, hands, 2)
	assert.Equal(t, keep, hands[0].ID, "cluster keeps the hand with the later end")
	assert.Equal(t, 1, hands[0].Number)
	assert.Equal(t, 2, hands[1].Number)
}

func TestNormalizeToleranceBoundary(t *testing.T) {
	fin, st := newTestFinalizer(t)
	ctx := context.Background()

	seedHand(t, st, 100, 150)
	seedHand(t, st, 105, 160) // exactly tolerance apart: duplicate
	seedHand(t, st, 111, 170) // 6s past the anchor: distinct

	count, err := fin.Normalize(ctx, "stream-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	fin, st := newTestFinalizer(t)
	ctx := context.Background()

	seedHand(t, st, 10, 30)
	seedHand(t, st, 12, 40)
	seedHand(t, st, 200, 260)
	seedHand(t, st, 500, 580)

	first, err := fin.Normalize(ctx, "stream-1")
	require.NoError(t, err)

	second, err := fin.Normalize(ctx, "stream-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	hands, err := st.ListHandsByStream(ctx, "stream-1")
	require.NoError(t, err)
	require.Len(t, hands, first)
	for i, h := range hands {
		assert.Equal(t, i+1, h.Number)
	}
}

func TestNormalizeEmptyStream(t *testing.T) {
	fin, _ := newTestFinalizer(t)

	count, err := fin.Normalize(context.Background(), "stream-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}
