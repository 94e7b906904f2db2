package redisq

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudcello/redisq/store/storetest"
)

func TestDrainProducer_MaterializesInOrder(t *testing.T) {
	items := [][]byte{{1}, {2}, {3}}
	i := 0
	p := ProducerFunc(func() ([]byte, bool) {
		if i >= len(items) {
			return nil, false
		}
		v := items[i]
		i++
		return v, true
	})
	got := drainProducer(p)
	assert.Equal(t, items, got)
}

func TestPublishEnvelope_WritesAndRejectsOversize(t *testing.T) {
	ctx := context.Background()
	s := storetest.New()
	env := Envelope{Job: "job-1"}

	require.NoError(t, publishEnvelope(ctx, s, "q", "job-1", env, 0))
	raw, err := s.Get(ctx, EnvelopeKey("q", "job-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, raw)

	err = publishEnvelope(ctx, s, "q", "job-2", env, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEnvelopeTooLarge)
}

func TestProduceTasks_ChunksAndPushesInOrder(t *testing.T) {
	ctx := context.Background()
	s := storetest.New()
	args := [][]byte{{1}, {2}, {3}, {4}, {5}}

	require.NoError(t, produceTasks(ctx, s, "q", "job-1", args, 2, nil, false))

	raw, ok, err := s.BRPop(ctx, "q", 0)
	require.NoError(t, err)
	require.True(t, ok)
	c1, err := decodeTaskChunk(raw)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, c1.Slots)

	raw, ok, err = s.BRPop(ctx, "q", 0)
	require.NoError(t, err)
	require.True(t, ok)
	c2, err := decodeTaskChunk(raw)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, c2.Slots)

	raw, ok, err = s.BRPop(ctx, "q", 0)
	require.NoError(t, err)
	require.True(t, ok)
	c3, err := decodeTaskChunk(raw)
	require.NoError(t, err)
	assert.Equal(t, []int{5}, c3.Slots)
}

func TestProduceTasks_AttachesRNGSeedsWhenStreamSet(t *testing.T) {
	ctx := context.Background()
	s := storetest.New()
	stream := func(slot int) []byte { return []byte{byte(slot)} }

	require.NoError(t, produceTasks(ctx, s, "q", "job-1", [][]byte{{1}, {2}}, 10, stream, false))

	raw, ok, err := s.BRPop(ctx, "q", 0)
	require.NoError(t, err)
	require.True(t, ok)
	c, err := decodeTaskChunk(raw)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{1}, {2}}, c.RNGSeeds)
}

func TestProduceTasks_NoTasksIsANoop(t *testing.T) {
	ctx := context.Background()
	s := storetest.New()
	require.NoError(t, produceTasks(ctx, s, "q", "job-1", nil, 1, nil, false))
	n, err := s.LLen(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestProduceTasks_TwoLevelReductionSharesOneSlotPerChunk(t *testing.T) {
	ctx := context.Background()
	s := storetest.New()
	args := [][]byte{{1}, {2}, {3}, {4}, {5}}

	require.NoError(t, produceTasks(ctx, s, "q", "job-1", args, 2, nil, true))

	raw, ok, err := s.BRPop(ctx, "q", 0)
	require.NoError(t, err)
	require.True(t, ok)
	c1, err := decodeTaskChunk(raw)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1}, c1.Slots, "both tasks in the first chunk share chunk number 1")

	raw, ok, err = s.BRPop(ctx, "q", 0)
	require.NoError(t, err)
	require.True(t, ok)
	c2, err := decodeTaskChunk(raw)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, c2.Slots, "both tasks in the second chunk share chunk number 2")

	raw, ok, err = s.BRPop(ctx, "q", 0)
	require.NoError(t, err)
	require.True(t, ok)
	c3, err := decodeTaskChunk(raw)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, c3.Slots, "the last, partial chunk shares chunk number 3")
}
