package redisq

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/cloudcello/redisq/store"
)

// cleanupJob tears down every job-scoped key once a job finishes, whether
// normally or via interrupt. When interrupted is true, it first purges this
// job's still-unpopped chunks out of the shared queue list so a future
// submission on the same queue doesn't pick up abandoned work.
//
// Idempotent: deleting keys that no longer exist is a no-op, so a second
// call (e.g. a deferred cleanup racing a normal completion path) is safe.
func cleanupJob(ctx context.Context, s store.Facade, queue, job string, interrupted bool) error {
	if interrupted {
		if err := purgeQueueOfJob(ctx, s, queue, job); err != nil {
			return err
		}
	}

	var startKeys, aliveKeys []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		startKeys, err = s.Keys(gctx, startPattern(queue, job))
		return err
	})
	g.Go(func() error {
		var err error
		aliveKeys, err = s.Keys(gctx, alivePattern(queue, job))
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	toDelete := append([]string{envKey(queue, job), outKey(queue, job)}, startKeys...)
	toDelete = append(toDelete, aliveKeys...)
	if err := s.Del(ctx, toDelete...); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// purgeQueueOfJob snapshots the shared queue list and removes exactly the
// chunks belonging to this job, by value, via LRem — never by wiping and
// rebuilding the whole list. That distinction matters because the queue is
// shared: a second master can be concurrently producing chunks for a
// different job on the same list, and a wipe-then-rebuild would have to
// win a race against that producer's own RPush or silently drop its work.
// Removing known byte values by count leaves anything this pass didn't
// itself observe untouched, including chunks pushed after the snapshot.
func purgeQueueOfJob(ctx context.Context, s store.Facade, queue, job string) error {
	all, err := s.LRange(ctx, queue, 0, -1)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(all) == 0 {
		return nil
	}

	counts := make(map[string]int)
	raws := make(map[string][]byte)
	for _, raw := range all {
		tc, decErr := decodeTaskChunk(raw)
		if decErr != nil || tc.Job != job {
			continue
		}
		key := string(raw)
		counts[key]++
		raws[key] = raw
	}
	if len(counts) == 0 {
		return nil
	}

	for key, n := range counts {
		if err := s.LRem(ctx, queue, int64(n), raws[key]); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	return nil
}
