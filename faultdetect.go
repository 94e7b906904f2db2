package redisq

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cloudcello/redisq/metrics"
	"github.com/cloudcello/redisq/store"
)

// faultDetector reconciles Q.start.J.<token> markers (a worker claimed a
// chunk) against Q.alive.J.<token> markers (that worker is still making
// progress). A start marker with no matching alive marker means its worker
// died mid-chunk; the chunk's original bytes, retained as the start
// marker's value, are pushed back onto the queue for another worker to
// pick up.
//
// When no chunk is in flight at all — the queue is empty and no worker has
// a start marker — a chunk can still be missing entirely: it was popped,
// its worker vanished before ever writing a start marker, and nothing else
// will ever resubmit it. faultDetector holds onto the master's retained
// argsList so it can reconstruct and re-push every chunk that still has an
// unseen output slot, using the same chunking scheme produceTasks used.
type faultDetector struct {
	s     store.Facade
	queue string
	job   string
	log   zerolog.Logger
	mtx   metrics.Provider

	argsList      [][]byte
	chunkSize     int
	reduceEnabled bool
	stream        RNGStream
	seen          map[int]bool
	total         int
}

func newFaultDetector(
	s store.Facade, queue, job string, log zerolog.Logger, mtx metrics.Provider,
	argsList [][]byte, chunkSize int, reduceEnabled bool, stream RNGStream,
	seen map[int]bool, total int,
) *faultDetector {
	return &faultDetector{
		s: s, queue: queue, job: job,
		log: log.With().Str("component", "faultdetect").Logger(),
		mtx: mtx,

		argsList:      argsList,
		chunkSize:     chunkSize,
		reduceEnabled: reduceEnabled,
		stream:        stream,
		seen:          seen,
		total:         total,
	}
}

// asOnTimeout adapts reconcile to the onTimeoutFunc shape collectResults
// expects: a fault-detection pass never halts collection on its own, it
// just keeps waiting after resubmitting whatever it found dead.
func (fd *faultDetector) asOnTimeout() onTimeoutFunc {
	return func(ctx context.Context) (bool, error) {
		if err := fd.reconcile(ctx); err != nil {
			return false, err
		}
		return true, nil
	}
}

// reconcile runs one pass: list started and alive tokens, and for every
// token with a start marker but no alive marker, requeue its chunk and
// delete the stale start marker. Else, if the queue is empty, no worker has
// a start marker, and the job isn't complete yet, a chunk was lost before
// any worker ever claimed it (popped, then the worker vanished before
// writing a start marker) — reconstruct and re-push every output slot that
// still hasn't been seen.
func (fd *faultDetector) reconcile(ctx context.Context) error {
	var startKeys, aliveKeys []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		startKeys, err = fd.s.Keys(gctx, startPattern(fd.queue, fd.job))
		return err
	})
	g.Go(func() error {
		var err error
		aliveKeys, err = fd.s.Keys(gctx, alivePattern(fd.queue, fd.job))
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if len(startKeys) > 0 {
		alive := make(map[string]bool, len(aliveKeys))
		for _, k := range aliveKeys {
			alive[tokenOf(k)] = true
		}

		batch := fd.s.Batch()
		var toDelete []string
		resubmitted := 0
		for _, sk := range startKeys {
			token := tokenOf(sk)
			if alive[token] {
				continue
			}
			raw, err := fd.s.Get(ctx, sk)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
			if raw == nil {
				// Already cleaned up by a concurrent reconciliation pass.
				continue
			}
			batch.RPush(fd.queue, raw)
			toDelete = append(toDelete, sk)
			resubmitted++
			fd.log.Warn().Str("token", token).Msg("worker fault detected, chunk requeued")
		}
		if resubmitted == 0 {
			return nil
		}
		batch.Del(toDelete...)
		if err := batch.Exec(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		fd.mtx.Counter(metricTasksResubmitted).Add(int64(resubmitted))
		return nil
	}

	if len(fd.seen) >= fd.total {
		return nil
	}
	llen, err := fd.s.LLen(ctx, fd.queue)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if llen != 0 {
		return nil
	}
	return fd.resubmitLostChunks(ctx)
}

// resubmitLostChunks reconstructs, from the master's retained argsList,
// every chunk that still has an unseen output slot, and re-pushes it onto
// the queue. A chunk is reconstructed in full even if only one of its
// slots is missing, since a worker-local reduction requires every task in
// the chunk to run together.
func (fd *faultDetector) resubmitLostChunks(ctx context.Context) error {
	chunkSize := fd.chunkSize
	if chunkSize < 1 {
		chunkSize = 1
	}
	batch := fd.s.Batch()
	pushed := 0
	chunkIdx := 0
	for start := 0; start < len(fd.argsList); start += chunkSize {
		end := start + chunkSize
		if end > len(fd.argsList) {
			end = len(fd.argsList)
		}
		missing := false
		for i := start; i < end; i++ {
			slot := i + 1
			if fd.reduceEnabled {
				slot = chunkIdx + 1
			}
			if !fd.seen[slot] {
				missing = true
				break
			}
		}
		if missing {
			chunk := buildChunk(fd.job, chunkIdx, start, end, fd.argsList, fd.reduceEnabled, fd.stream)
			encoded, err := encodeTaskChunk(chunk)
			if err != nil {
				return fmt.Errorf("%s: encoding task chunk: %w", Namespace, err)
			}
			batch.RPush(fd.queue, encoded)
			pushed++
			fd.log.Warn().Int("chunk", chunkIdx).Msg("lost chunk reconstructed and requeued")
		}
		chunkIdx++
	}
	if pushed == 0 {
		return nil
	}
	if err := batch.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	fd.mtx.Counter(metricTasksResubmitted).Add(int64(pushed))
	return nil
}

func tokenOf(key string) string {
	idx := strings.LastIndex(key, ".")
	if idx < 0 {
		return key
	}
	return key[idx+1:]
}
