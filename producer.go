package redisq

import (
	"context"
	"fmt"

	"github.com/cloudcello/redisq/store"
)

// drainProducer materializes p fully into an ordered, 1-indexed list of
// encoded argument tuples. The result is retained by the caller for the
// lifetime of the job so the fault detector can recompute a lost chunk's
// arguments without re-running the caller's Producer.
func drainProducer(p Producer) [][]byte {
	var args [][]byte
	for {
		a, ok := p.Next()
		if !ok {
			break
		}
		args = append(args, a)
	}
	return args
}

// publishEnvelope serializes env and writes it to Q.env.J, rejecting it
// when it exceeds cfg.EnvelopeSizeLimit.
func publishEnvelope(ctx context.Context, s store.Facade, queue, job string, env Envelope, limit int64) error {
	encoded, err := encodeGob(env)
	if err != nil {
		return fmt.Errorf("%s: encoding envelope: %w", Namespace, err)
	}
	if err := checkEnvelopeSize(encoded, limit); err != nil {
		return err
	}
	if err := s.Set(ctx, envKey(queue, job), encoded); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// numChunks returns the number of chunks chunking n items at chunkSize
// produces — the M of §4.5's "expected output count M (equals number of
// chunks under two-level reduction, else N)".
func numChunks(n, chunkSize int) int {
	if n == 0 {
		return 0
	}
	if chunkSize < 1 {
		chunkSize = 1
	}
	return (n + chunkSize - 1) / chunkSize
}

// buildChunk constructs the chunkIdx'th (0-indexed) TaskChunk covering
// argsList[start:end]. Each task's output slot is its own 1-indexed
// position under single-level reduction, or the chunk's shared 1-indexed
// chunk number under two-level reduction — "the chunk's inner map keys
// encode the indices under single-level reduction, or the output slot
// number under two-level reduction, so all indices in a chunk share one
// slot." RNG seeds are always keyed by the task's own index, since
// reproducibility is per task regardless of how results get folded.
func buildChunk(job string, chunkIdx, start, end int, argsList [][]byte, reduceEnabled bool, stream RNGStream) TaskChunk {
	chunk := TaskChunk{Job: job}
	for i := start; i < end; i++ {
		taskSlot := i + 1 // 1-indexed task slots
		slot := taskSlot
		if reduceEnabled {
			slot = chunkIdx + 1 // 1-indexed chunk/output slot
		}
		chunk.Slots = append(chunk.Slots, slot)
		chunk.Args = append(chunk.Args, argsList[i])
		if stream != nil {
			chunk.RNGSeeds = append(chunk.RNGSeeds, stream(taskSlot))
		}
	}
	return chunk
}

// produceTasks chunks argsList into TaskChunks of at most chunkSize task
// slots each and pushes them onto the queue's shared list in one pipelined
// round-trip. stream, when non-nil, supplies a reserved RNG seed per slot.
// reduceEnabled selects the output-slot numbering buildChunk assigns.
func produceTasks(ctx context.Context, s store.Facade, queue string, job string, argsList [][]byte, chunkSize int, stream RNGStream, reduceEnabled bool) error {
	if chunkSize < 1 {
		chunkSize = 1
	}
	batch := s.Batch()
	queued := 0
	chunkIdx := 0
	for start := 0; start < len(argsList); start += chunkSize {
		end := start + chunkSize
		if end > len(argsList) {
			end = len(argsList)
		}
		chunk := buildChunk(job, chunkIdx, start, end, argsList, reduceEnabled, stream)
		chunkIdx++
		encoded, err := encodeTaskChunk(chunk)
		if err != nil {
			return fmt.Errorf("%s: encoding task chunk: %w", Namespace, err)
		}
		batch.RPush(queue, encoded)
		queued++
	}
	if queued == 0 {
		return nil
	}
	if err := batch.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
