package redisq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOptions_ApplyOntoConfig(t *testing.T) {
	cfg := defaultConfig()
	opts := []Option{
		WithQueue("q1"),
		WithChunkSize(8),
		WithExport("a", "b"),
		WithPackages("pkg1"),
		WithReduce(ReduceSame()),
		WithFTInterval(10 * time.Second),
		WithEnvelopeSizeLimit(1024),
		WithStoreAddr("localhost:6380", "secret", 2),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	assert.Equal(t, "q1", cfg.Queue)
	assert.Equal(t, 8, cfg.ChunkSize)
	assert.Equal(t, []string{"a", "b"}, cfg.Export)
	assert.Equal(t, []string{"pkg1"}, cfg.Packages)
	assert.True(t, cfg.Reduce.Enabled())
	assert.Equal(t, 10*time.Second, cfg.FTInterval)
	assert.Equal(t, int64(1024), cfg.EnvelopeSizeLimit)
	assert.Equal(t, "localhost:6380", cfg.Addr)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, 2, cfg.DB)
}

func TestWithExport_Accumulates(t *testing.T) {
	cfg := defaultConfig()
	WithExport("a")(&cfg)
	WithExport("b", "c")(&cfg)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Export)
}
