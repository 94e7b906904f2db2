package redisq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeTaskChunk_RoundTrips(t *testing.T) {
	c := TaskChunk{
		Job:      "job-1",
		Slots:    []int{1, 2, 3},
		Args:     [][]byte{{1}, {2}, {3}},
		RNGSeeds: [][]byte{{9}, {9}, {9}},
	}
	raw, err := encodeTaskChunk(c)
	require.NoError(t, err)

	got, err := decodeTaskChunk(raw)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestDecodeResultChunk_RoundTrips(t *testing.T) {
	rc := ResultChunk{
		Job:    "job-1",
		Token:  "tok-1",
		Slots:  []int{1, 2},
		Values: [][]byte{{10}, {20}},
		Errs:   []string{"", "failed"},
	}
	raw, err := encodeGob(rc)
	require.NoError(t, err)

	got, err := decodeResultChunk(raw)
	require.NoError(t, err)
	assert.Equal(t, rc, got)
}

func TestDecodeValue_TypedRoundTrip(t *testing.T) {
	raw, err := encodeValue(42)
	require.NoError(t, err)

	v, err := decodeValue[int](raw)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestDecodeTaskChunk_RejectsGarbage(t *testing.T) {
	_, err := decodeTaskChunk([]byte("not gob"))
	assert.Error(t, err)
}
