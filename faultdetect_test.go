package redisq

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudcello/redisq/metrics"
	"github.com/cloudcello/redisq/store/storetest"
)

func TestFaultDetector_Reconcile_RequeuesDeadWorkerChunk(t *testing.T) {
	ctx := context.Background()
	s := storetest.New()

	chunk, err := encodeTaskChunk(TaskChunk{Job: "job-1", Slots: []int{1, 2}})
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, startKey("q", "job-1", "dead-tok"), chunk))
	// No matching alive key for dead-tok: it never heartbeat, or died.

	mtx := metrics.NewBasicProvider()
	fd := newFaultDetector(s, "q", "job-1", zerolog.Nop(), mtx, nil, 1, false, nil, map[int]bool{}, 0)
	require.NoError(t, fd.reconcile(ctx))

	raw, ok, err := s.BRPop(ctx, "q", 0)
	require.NoError(t, err)
	require.True(t, ok, "the dead worker's chunk should be requeued")
	tc, err := decodeTaskChunk(raw)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, tc.Slots)

	exists, _ := s.Exists(ctx, startKey("q", "job-1", "dead-tok"))
	assert.False(t, exists, "stale start marker should be deleted")
}

func TestFaultDetector_Reconcile_LeavesAliveWorkerAlone(t *testing.T) {
	ctx := context.Background()
	s := storetest.New()

	chunk, err := encodeTaskChunk(TaskChunk{Job: "job-1", Slots: []int{1}})
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, startKey("q", "job-1", "live-tok"), chunk))
	require.NoError(t, s.Set(ctx, aliveKey("q", "job-1", "live-tok"), []byte("1")))

	fd := newFaultDetector(s, "q", "job-1", zerolog.Nop(), metrics.NewBasicProvider(), nil, 1, false, nil, map[int]bool{}, 0)
	require.NoError(t, fd.reconcile(ctx))

	n, err := s.LLen(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "a live worker's chunk must not be requeued")

	exists, _ := s.Exists(ctx, startKey("q", "job-1", "live-tok"))
	assert.True(t, exists)
}

func TestFaultDetector_Reconcile_NoopWhenNothingStarted(t *testing.T) {
	ctx := context.Background()
	s := storetest.New()
	fd := newFaultDetector(s, "q", "job-1", zerolog.Nop(), metrics.NewBasicProvider(), nil, 1, false, nil, map[int]bool{}, 0)
	require.NoError(t, fd.reconcile(ctx))
}

func TestFaultDetector_Reconcile_ResubmitsLostChunkWhenQueueAndStartedAreEmpty(t *testing.T) {
	ctx := context.Background()
	s := storetest.New()

	argsList := [][]byte{[]byte("a1"), []byte("a2"), []byte("a3"), []byte("a4")}
	seen := map[int]bool{1: true, 2: true} // slots for the first chunk already folded
	mtx := metrics.NewBasicProvider()

	// chunkSize=2 under single-level reduction: two chunks, slots {1,2} and
	// {3,4}. Queue is empty and no worker ever started the second chunk, so
	// it must be reconstructed and re-pushed.
	fd := newFaultDetector(s, "q", "job-1", zerolog.Nop(), mtx, argsList, 2, false, nil, seen, 4)
	require.NoError(t, fd.reconcile(ctx))

	raw, ok, err := s.BRPop(ctx, "q", 0)
	require.NoError(t, err)
	require.True(t, ok, "the lost chunk should be reconstructed and requeued")
	tc, err := decodeTaskChunk(raw)
	require.NoError(t, err)
	assert.Equal(t, "job-1", tc.Job)
	assert.Equal(t, []int{3, 4}, tc.Slots)
	assert.Equal(t, [][]byte{[]byte("a3"), []byte("a4")}, tc.Args)
}

func TestFaultDetector_Reconcile_DoesNotResubmitWhenJobAlreadyComplete(t *testing.T) {
	ctx := context.Background()
	s := storetest.New()

	argsList := [][]byte{[]byte("a1"), []byte("a2")}
	seen := map[int]bool{1: true, 2: true}

	fd := newFaultDetector(s, "q", "job-1", zerolog.Nop(), metrics.NewBasicProvider(), argsList, 2, false, nil, seen, 2)
	require.NoError(t, fd.reconcile(ctx))

	n, err := s.LLen(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "a completed job must not have chunks resubmitted")
}

func TestFaultDetector_Reconcile_DoesNotResubmitWhenQueueIsNotEmpty(t *testing.T) {
	ctx := context.Background()
	s := storetest.New()

	argsList := [][]byte{[]byte("a1"), []byte("a2")}
	seen := map[int]bool{}
	require.NoError(t, s.RPush(ctx, "q", []byte("some-other-chunk")))

	fd := newFaultDetector(s, "q", "job-1", zerolog.Nop(), metrics.NewBasicProvider(), argsList, 2, false, nil, seen, 2)
	require.NoError(t, fd.reconcile(ctx))

	n, err := s.LLen(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "only the pre-existing entry should remain")
}

func TestTokenOf(t *testing.T) {
	assert.Equal(t, "abc123", tokenOf("q.start.job-1.abc123"))
	assert.Equal(t, "bare", tokenOf("bare"))
}
