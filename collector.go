package redisq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cloudcello/redisq/metrics"
	"github.com/cloudcello/redisq/store"
)

// onTimeout is invoked every time brpop against Q.out.J times out without a
// result, giving the fault detector a chance to run a reconciliation pass.
// It returns whether collection should keep waiting, and any fatal error.
type onTimeoutFunc func(ctx context.Context) (keepWaiting bool, err error)

// collectResults drains Q.out.J until total output slots have folded into
// the accumulator (or an ErrorModeStop error latches). total and ordered
// both depend on whether the job uses two-level reduction: single-level
// reduction folds task-indexed slots 1..N strictly in order (ordered=true);
// two-level reduction folds chunk-indexed slots 1..M in arrival order
// (ordered=false), since each already represents an independently-folded
// chunk. seen is owned by the caller, which also hands it to the fault
// detector so a resubmission pass can tell which slots are still missing.
func collectResults[R any](
	ctx context.Context,
	s store.Facade,
	queue, job string,
	total int,
	ordered bool,
	ftInterval time.Duration,
	init R,
	combine CombineFunc[R],
	mode ErrorMode,
	seen map[int]bool,
	mtx metrics.Provider,
	log zerolog.Logger,
	onTimeout onTimeoutFunc,
) (R, error) {
	ro := newSlotReorderer(init, combine, mode, ordered)
	inflight := mtx.UpDownCounter(metricInflightTasks)
	inflight.Add(int64(total))
	defer inflight.Add(-int64(total))

	key := outKey(queue, job)
	for !ro.done(total) {
		if err := ctx.Err(); err != nil {
			var zero R
			return zero, fmt.Errorf("%w: %v", ErrInterrupt, err)
		}

		raw, ok, err := s.BRPop(ctx, key, ftInterval)
		if err != nil {
			var zero R
			return zero, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if !ok {
			if onTimeout == nil {
				continue
			}
			keepWaiting, ftErr := onTimeout(ctx)
			if ftErr != nil {
				var zero R
				return zero, ftErr
			}
			if !keepWaiting {
				break
			}
			continue
		}

		rc, err := decodeResultChunk(raw)
		if err != nil {
			var zero R
			return zero, fmt.Errorf("%s: decoding result chunk: %w", Namespace, err)
		}
		if rc.Job != job {
			// A stale or foreign chunk; ignore it rather than corrupt this
			// job's reduction.
			log.Warn().Str("chunk_job", rc.Job).Msg("ignoring result chunk for another job")
			continue
		}

		applyResultChunk(rc, seen, ro, mtx)
	}

	return ro.result()
}

// applyResultChunk pushes one or more resultEvents derived from rc into ro,
// skipping slots already seen (duplicate delivery from a resubmitted
// chunk racing its original).
func applyResultChunk[R any](rc ResultChunk, seen map[int]bool, ro *slotReorderer[R], mtx metrics.Provider) {
	if len(rc.Values) == 1 && len(rc.Slots) > 1 {
		// Worker-local (two-level) reduction: one folded value represents
		// the whole chunk, keyed by its first slot.
		first := rc.Slots[0]
		if seen[first] {
			mtx.Counter(metricDuplicatesDropped).Add(1)
			return
		}
		for _, slot := range rc.Slots {
			seen[slot] = true
		}
		ro.push(resultEventFrom[R](first, rc.Values[0], errAt(rc.Errs, 0)))
		mtx.Counter(metricResultsCollected).Add(1)
		return
	}

	for i, slot := range rc.Slots {
		if seen[slot] {
			mtx.Counter(metricDuplicatesDropped).Add(1)
			continue
		}
		seen[slot] = true
		var raw []byte
		if i < len(rc.Values) {
			raw = rc.Values[i]
		}
		ro.push(resultEventFrom[R](slot, raw, errAt(rc.Errs, i)))
		mtx.Counter(metricResultsCollected).Add(1)
	}
}

func errAt(errs []string, i int) string {
	if i < len(errs) {
		return errs[i]
	}
	return ""
}

func resultEventFrom[R any](slot int, raw []byte, errMsg string) resultEvent {
	if errMsg != "" {
		return resultEvent{slot: slot, err: errors.New(errMsg)}
	}
	v, err := decodeValue[R](raw)
	if err != nil {
		return resultEvent{slot: slot, err: err}
	}
	return resultEvent{slot: slot, value: v}
}
