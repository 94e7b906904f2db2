package redisq

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

var defaultRegistry atomic.Pointer[Registry]

// SetDefault installs r as the package-level default registry, for callers
// that want a single process-wide queue rather than threading a *Registry
// through every call site.
func SetDefault(r *Registry) { defaultRegistry.Store(r) }

// Default returns the registry installed by SetDefault, or nil if none
// has been installed yet.
func Default() *Registry { return defaultRegistry.Load() }

// Submit drives one job end to end: envelope construction, task
// production, result collection with in-order reduction, fault detection,
// and cleanup. It returns the job's reduced accumulator of type R.
func Submit[R any](ctx context.Context, reg *Registry, job *Job[R]) (R, error) {
	var zero R

	producer, err := job.producer()
	if err != nil {
		return zero, err
	}

	reg.mu.Lock()
	cfg := reg.cfg
	reg.mu.Unlock()

	// Job IDs are used as key suffixes: keep them to alphanumerics and '_'.
	jobID := strings.ReplaceAll(uuid.NewString(), "-", "_")
	log := reg.log.With().Str("job", jobID).Logger()

	argsList := drainProducer(producer)

	env, err := buildEnvelope(jobID, job, cfg, log)
	if err != nil {
		return zero, tagError(err, cfg.Queue, jobID)
	}
	if err := publishEnvelope(ctx, reg.store, cfg.Queue, jobID, env, cfg.EnvelopeSizeLimit); err != nil {
		return zero, tagError(err, cfg.Queue, jobID)
	}

	defer func() {
		cleanCtx := ctx
		interrupted := ctx.Err() != nil
		if interrupted {
			cleanCtx = context.Background()
		}
		if err := cleanupJob(cleanCtx, reg.store, cfg.Queue, jobID, interrupted); err != nil {
			log.Error().Err(err).Msg("cleanup failed")
		}
	}()

	if err := produceTasks(ctx, reg.store, cfg.Queue, jobID, argsList, cfg.ChunkSize, job.NextStream, env.ReduceEnabled); err != nil {
		return zero, tagError(err, cfg.Queue, jobID)
	}
	reg.mtx.Counter(metricTasksSubmitted).Add(int64(len(argsList)))

	// Under two-level reduction, the expected output count M is the number
	// of chunks (one folded value per chunk); under single-level reduction
	// it's N, one value per task. seen is shared with the fault detector so
	// its lost-chunk resubmission pass can tell which output slots are
	// still missing.
	total := len(argsList)
	if env.ReduceEnabled {
		total = numChunks(len(argsList), cfg.ChunkSize)
	}
	seen := make(map[int]bool, total)

	// Two-level reduction has no initial value: Init is ignored.
	initAcc := job.Init
	if env.ReduceEnabled {
		initAcc = zero
	}

	fd := newFaultDetector(reg.store, cfg.Queue, jobID, log, reg.mtx,
		argsList, cfg.ChunkSize, env.ReduceEnabled, job.NextStream, seen, total)

	acc, err := collectResults(
		ctx,
		reg.store,
		cfg.Queue,
		jobID,
		total,
		!env.ReduceEnabled,
		cfg.FTInterval,
		initAcc,
		job.Combine,
		job.ErrorMode,
		seen,
		reg.mtx,
		log,
		fd.asOnTimeout(),
	)
	if err != nil {
		return acc, tagError(err, cfg.Queue, jobID)
	}
	return acc, nil
}
