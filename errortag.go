package redisq

import (
	"errors"
	"fmt"

	"github.com/ygrebnov/errorc"
)

// QueueJobError exposes the queue/job/slot correlation metadata attached to
// a coordinator error: an unexported concrete type implementing a small
// exported interface, recovered via errors.As.
type QueueJobError interface {
	error
	Unwrap() error
	Queue() (string, bool)
	Job() (string, bool)
	Slot() (int, bool)
}

type taggedError struct {
	err     error
	queue   string
	job     string
	slot    int
	hasSlot bool
}

// tagError wraps err with queue/job (and, when relevant, slot) context. It
// uses errorc.Wrap to attach the same fields as structured key/value pairs
// so logging and tracing integrations that understand errorc's context
// protocol can surface them without type-asserting QueueJobError.
func tagError(err error, queue, job string) error {
	if err == nil {
		return nil
	}
	wrapped := errorc.Wrap(err, "queue", queue, "job", job)
	return &taggedError{err: wrapped, queue: queue, job: job}
}

func tagSlotError(err error, queue, job string, slot int) error {
	if err == nil {
		return nil
	}
	wrapped := errorc.Wrap(err, "queue", queue, "job", job, "slot", slot)
	return &taggedError{err: wrapped, queue: queue, job: job, slot: slot, hasSlot: true}
}

func (e *taggedError) Error() string { return e.err.Error() }
func (e *taggedError) Unwrap() error { return e.err }

func (e *taggedError) Queue() (string, bool) { return e.queue, e.queue != "" }
func (e *taggedError) Job() (string, bool)   { return e.job, e.job != "" }
func (e *taggedError) Slot() (int, bool)     { return e.slot, e.hasSlot }

func (e *taggedError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			_, _ = fmt.Fprintf(s, "queue=%s job=%s: %+v", e.queue, e.job, e.err)
			return
		}
		fallthrough
	case 's':
		_, _ = fmt.Fprint(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}

// ExtractQueue returns the queue name attached to err, if any.
func ExtractQueue(err error) (string, bool) {
	var qje QueueJobError
	if errors.As(err, &qje) {
		return qje.Queue()
	}
	return "", false
}

// ExtractJob returns the job ID attached to err, if any.
func ExtractJob(err error) (string, bool) {
	var qje QueueJobError
	if errors.As(err, &qje) {
		return qje.Job()
	}
	return "", false
}

// ExtractSlot returns the failing slot index attached to err by
// tagSlotError, if any. Combine errors returned by Submit are not built
// with tagSlotError: they name the failing slot only in their message.
func ExtractSlot(err error) (int, bool) {
	var qje QueueJobError
	if errors.As(err, &qje) {
		return qje.Slot()
	}
	return 0, false
}
