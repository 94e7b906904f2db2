package redisq

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Values(t *testing.T) {
	cfg := defaultConfig()
	assert.Equal(t, 1, cfg.ChunkSize)
	assert.False(t, cfg.Reduce.Enabled())
	assert.Equal(t, DefaultFTInterval, cfg.FTInterval)
	assert.Equal(t, int64(DefaultEnvelopeSizeLimit), cfg.EnvelopeSizeLimit)
}

func TestValidateConfig_RejectsNonPositiveChunkSize(t *testing.T) {
	cfg := defaultConfig()
	cfg.ChunkSize = 0
	err := validateConfig(&cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidateConfig_ClampsFTIntervalToFloor(t *testing.T) {
	cfg := defaultConfig()
	cfg.FTInterval = time.Second
	require.NoError(t, validateConfig(&cfg))
	assert.Equal(t, MinFTInterval, cfg.FTInterval)
}

func TestValidateConfig_RestoresDefaultEnvelopeSizeLimitWhenNonPositive(t *testing.T) {
	cfg := defaultConfig()
	cfg.EnvelopeSizeLimit = -1
	require.NoError(t, validateConfig(&cfg))
	assert.Equal(t, int64(DefaultEnvelopeSizeLimit), cfg.EnvelopeSizeLimit)
}

func TestLoadConfig_AppliesDefaultsForOmittedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queue.yaml")
	require.NoError(t, os.WriteFile(path, []byte("queue: jobs\nchunkSize: 4\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "jobs", cfg.Queue)
	assert.Equal(t, 4, cfg.ChunkSize)
	assert.Equal(t, DefaultFTInterval, cfg.FTInterval)
}

func TestLoadConfig_MissingFileIsAnError(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
