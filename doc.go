// Package redisq implements the master side of an elastic work-queue
// protocol over a Redis-compatible key/value store.
//
// A master registers a queue (NewRegistry), submits a job of N
// independent tasks (Submit), and gets back the in-order reduction of
// their results. Tasks are chunked and pushed onto a shared list; external
// workers pop chunks, execute the opaque task body, and push result
// chunks back. The coordinator here never runs user task code itself —
// only the producer, envelope, collection/reduction, fault-detection, and
// cleanup logic.
//
// Constructors
//   - NewRegistry(ctx, opts...): opens the store connection and registers
//     a queue, using the package's functional-options idiom.
//   - Submit[R](ctx, reg, job): drives envelope construction, task
//     production, result collection/reduction, fault detection, and
//     cleanup for one job, returning the reduced accumulator of type R.
//
// Defaults
// Unless overridden, the following defaults apply to a newly created
// Registry:
//   - ChunkSize: 1
//   - Reduce: ReduceNone() (no two-level reduction)
//   - FTInterval: 30s (clamped to a 3s floor)
//   - EnvelopeSizeLimit: 500 MiB
//
// Error handling
// Submit's job descriptor carries an error-handling mode (ErrorModeStop or
// ErrorModePass): under ErrorModeStop the first captured combine error
// aborts the job after drain; under ErrorModePass, folding continues past
// errored slots (which never reach the combine function) and every
// captured error is returned joined alongside the accumulator.
package redisq

// Version is the build version surfaced by Registry.Info("version").
// Overridden via -ldflags "-X github.com/cloudcello/redisq.Version=..."
// at build time.
var Version = "dev"
