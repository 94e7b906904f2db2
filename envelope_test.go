package redisq

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEnvelope_AutoDiscoversFreeVarsMinusNoExportAndLoopVars(t *testing.T) {
	job := &Job[int]{
		Bindings: map[string]any{"a": 1, "b": 2, "c": 3, "i": 99},
		FreeVars: []string{"a", "b", "c", "i"},
		NoExport: []string{"b"},
		LoopVars: []string{"i"},
	}
	cfg := defaultConfig()
	cfg.Queue = "q"

	env, err := buildEnvelope("job-1", job, cfg, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, "job-1", env.Job)
	assert.Contains(t, env.Bindings, "a")
	assert.Contains(t, env.Bindings, "c")
	assert.NotContains(t, env.Bindings, "b", "NoExport names must not be shipped")
	assert.NotContains(t, env.Bindings, "i", "LoopVars names must not be shipped")

	got, err := decodeValue[any](env.Bindings["a"])
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestBuildEnvelope_UnionsJobAndRegistryExports(t *testing.T) {
	job := &Job[int]{
		Bindings: map[string]any{"x": 10, "y": 20},
		Export:   []string{"x"},
	}
	cfg := defaultConfig()
	cfg.Export = []string{"y"}

	env, err := buildEnvelope("job-1", job, cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Contains(t, env.Bindings, "x")
	assert.Contains(t, env.Bindings, "y")
}

func TestBuildEnvelope_MissingExportIsAnError(t *testing.T) {
	job := &Job[int]{
		Bindings: map[string]any{},
		Export:   []string{"missing"},
	}
	cfg := defaultConfig()

	_, err := buildEnvelope("job-1", job, cfg, zerolog.Nop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExportNotFound))
}

func TestBuildEnvelope_CarriesReduceSetting(t *testing.T) {
	job := &Job[int]{Bindings: map[string]any{}}
	cfg := defaultConfig()
	cfg.Reduce = ReduceFunc("worker-fold")

	env, err := buildEnvelope("job-1", job, cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, env.ReduceEnabled)
	assert.Equal(t, "worker-fold", env.ReduceName)
}

func TestBuildEnvelope_WarnsOnExportOverlap(t *testing.T) {
	job := &Job[int]{
		Bindings: map[string]any{"a": 1},
		FreeVars: []string{"a"},
		Export:   []string{"a"},
	}
	cfg := defaultConfig()

	var buf bytes.Buffer
	log := zerolog.New(&buf)

	env, err := buildEnvelope("job-1", job, cfg, log)
	require.NoError(t, err)
	assert.Contains(t, env.Bindings, "a", "the overlapping symbol is still shipped once")
	assert.Contains(t, buf.String(), "a", "the overlap is logged")
}

func TestCheckEnvelopeSize(t *testing.T) {
	assert.NoError(t, checkEnvelopeSize(make([]byte, 100), 0), "limit 0 means unbounded")
	assert.NoError(t, checkEnvelopeSize(make([]byte, 100), 200))
	err := checkEnvelopeSize(make([]byte, 300), 200)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEnvelopeTooLarge))
}
