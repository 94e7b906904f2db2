package redisq

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTagError_AttachesQueueAndJob(t *testing.T) {
	err := tagError(errors.New("boom"), "q1", "job-1")
	queue, ok := ExtractQueue(err)
	assert.True(t, ok)
	assert.Equal(t, "q1", queue)

	job, ok := ExtractJob(err)
	assert.True(t, ok)
	assert.Equal(t, "job-1", job)

	_, ok = ExtractSlot(err)
	assert.False(t, ok)
}

func TestTagError_NilIsNil(t *testing.T) {
	assert.Nil(t, tagError(nil, "q1", "job-1"))
}

func TestTagSlotError_AttachesSlot(t *testing.T) {
	err := tagSlotError(errors.New("boom"), "q1", "job-1", 7)
	slot, ok := ExtractSlot(err)
	assert.True(t, ok)
	assert.Equal(t, 7, slot)
}

func TestExtract_UnwrappedErrorHasNoCorrelation(t *testing.T) {
	_, ok := ExtractQueue(errors.New("plain"))
	assert.False(t, ok)
}

func TestTaggedError_UnwrapsToUnderlyingSentinel(t *testing.T) {
	err := tagError(ErrEnvelopeTooLarge, "q1", "job-1")
	assert.True(t, errors.Is(err, ErrEnvelopeTooLarge))
}
