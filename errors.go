package redisq

import "errors"

// Namespace prefixes every sentinel error this package defines, a single
// namespaced error set callers can grep for.
const Namespace = "redisq"

// Sentinel error kinds. Use errors.Is against these, or
// ExtractQueue/ExtractJob/ExtractSlot (errortag.go) to recover
// correlation context from a wrapped instance.
var (
	// ErrStoreUnavailable is returned when the store connection cannot be
	// opened or a required round-trip fails outright. No local recovery.
	ErrStoreUnavailable = errors.New(Namespace + ": store unavailable")

	// ErrExportNotFound is returned when an explicitly exported symbol
	// cannot be resolved in the caller's bindings.
	ErrExportNotFound = errors.New(Namespace + ": export not found")

	// ErrEnvelopeTooLarge is returned when the serialized job envelope
	// exceeds the configured size bound.
	ErrEnvelopeTooLarge = errors.New(Namespace + ": envelope too large")

	// ErrWorkerFault names the recovered-fault kind: a worker's start
	// marker had no matching alive marker. The job continues; the fault
	// detector logs a warning and counts the resubmission in metrics, and
	// never returns this error.
	ErrWorkerFault = errors.New(Namespace + ": worker fault detected")

	// ErrCombineError wraps an error raised by the caller's combine
	// function while folding a result chunk.
	ErrCombineError = errors.New(Namespace + ": combine error")

	// ErrInterrupt marks cleanup performed because of caller
	// cancellation (ctx.Done) rather than normal completion.
	ErrInterrupt = errors.New(Namespace + ": interrupted")

	// ErrInvalidState is returned when an operation needs a registered
	// queue and the Registry's queue is not registered (registration
	// failed, or RemoveQueue has run).
	ErrInvalidState = errors.New(Namespace + ": queue not registered")

	// ErrQueueRequired is returned by NewRegistry and
	// NewRegistryWithFacade when no queue name is configured.
	ErrQueueRequired = errors.New(Namespace + ": queue name required")

	// ErrInvalidConfig is returned for a configuration value outside its
	// valid range.
	ErrInvalidConfig = errors.New(Namespace + ": invalid configuration")

	// ErrProducerRequired is returned by Submit when a Job sets neither
	// Producer nor Iterator.
	ErrProducerRequired = errors.New(Namespace + ": producer or iterator required")
)
