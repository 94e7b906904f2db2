// Package testworker is an in-process stand-in for an external worker
// binary, used by the coordinator's own tests to exercise the full wire
// contract (chunk pop, envelope fetch, start/alive markers, result push)
// against a storetest.Fake without a real Redis-compatible process on the
// other end.
package testworker

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cloudcello/redisq"
	"github.com/cloudcello/redisq/store"
)

// TaskFunc executes one task's opaque body against its decoded argument
// tuple and the job's exported bindings, returning the typed result a
// job's CombineFunc[R] expects.
type TaskFunc[R any] func(ctx context.Context, expr []byte, bindings map[string]any, args []byte) (R, error)

// FoldFunc is the worker-local reduction a Pool applies across one chunk's
// task results before pushing a single combined ResultChunk entry, mirroring
// a job's two-level Reduce setting.
type FoldFunc[R any] func(acc R, value R, slot int) (R, error)

// Pool runs one simulated worker loop: pop a TaskChunk, execute every task
// in it with Exec, optionally fold the chunk locally with Fold, and push a
// ResultChunk. Multiple Pools against the same queue model multiple
// workers racing BRPop.
type Pool[R any] struct {
	Store store.Facade
	Queue string
	Exec  TaskFunc[R]
	// Fold, when non-nil, is applied whenever a job's envelope requests
	// two-level reduction for this queue, regardless of the envelope's
	// ReduceName (a real external worker would resolve the name itself;
	// this harness already has the function in hand).
	Fold FoldFunc[R]

	token string

	mu      sync.Mutex
	current string // job ID of the in-flight chunk, for the alive refresher
}

// NewPool creates a worker identified by a fresh random token, the same
// correlation identity the fault detector keys start/alive markers on.
func NewPool[R any](s store.Facade, queue string, exec TaskFunc[R]) *Pool[R] {
	return &Pool[R]{Store: s, Queue: queue, Exec: exec, token: uuid.NewString()}
}

// Run pops and executes chunks until ctx is done or popTimeout elapses with
// nothing available.
func (p *Pool[R]) Run(ctx context.Context, popTimeout time.Duration) error {
	for {
		raw, ok, err := p.Store.BRPop(ctx, p.Queue, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("testworker: pop: %w", err)
		}
		if !ok {
			return nil
		}
		var chunk redisq.TaskChunk
		if err := gobDecode(raw, &chunk); err != nil {
			return fmt.Errorf("testworker: decoding chunk: %w", err)
		}
		if err := p.process(ctx, chunk); err != nil {
			return err
		}
	}
}

func (p *Pool[R]) process(ctx context.Context, chunk redisq.TaskChunk) error {
	startKey := redisq.StartKey(p.Queue, chunk.Job, p.token)
	aliveKey := redisq.AliveKey(p.Queue, chunk.Job, p.token)

	raw, err := gobEncode(chunk)
	if err != nil {
		return fmt.Errorf("testworker: re-encoding chunk for start marker: %w", err)
	}
	if err := p.Store.Set(ctx, startKey, raw); err != nil {
		return fmt.Errorf("testworker: writing start marker: %w", err)
	}
	if err := p.Store.Set(ctx, aliveKey, []byte("1")); err != nil {
		return fmt.Errorf("testworker: writing alive marker: %w", err)
	}
	stopRefresh := p.refreshAlive(ctx, aliveKey)
	defer stopRefresh()

	envRaw, err := p.Store.Get(ctx, redisq.EnvelopeKey(p.Queue, chunk.Job))
	if err != nil {
		return fmt.Errorf("testworker: fetching envelope: %w", err)
	}
	var env redisq.Envelope
	if envRaw != nil {
		if err := gobDecode(envRaw, &env); err != nil {
			return fmt.Errorf("testworker: decoding envelope: %w", err)
		}
	}
	bindings, err := decodeBindings(env.Bindings)
	if err != nil {
		return err
	}

	rc := redisq.ResultChunk{Job: chunk.Job, Token: p.token, Slots: chunk.Slots}
	values := make([]R, len(chunk.Slots))
	errs := make([]string, len(chunk.Slots))
	for i, slot := range chunk.Slots {
		v, execErr := p.Exec(ctx, env.Expr, bindings, chunk.Args[i])
		values[i] = v
		if execErr != nil {
			errs[i] = execErr.Error()
		}
	}

	if env.ReduceEnabled && p.Fold != nil {
		var acc R
		var foldErr error
		for i, v := range values {
			if errs[i] != "" {
				continue
			}
			acc, foldErr = p.Fold(acc, v, chunk.Slots[i])
			if foldErr != nil {
				errs[i] = foldErr.Error()
			}
		}
		encoded, err := gobEncode(acc)
		if err != nil {
			return fmt.Errorf("testworker: encoding folded result: %w", err)
		}
		rc.Values = [][]byte{encoded}
		rc.Errs = []string{firstNonEmpty(errs)}
	} else {
		rc.Values = make([][]byte, len(values))
		rc.Errs = errs
		for i, v := range values {
			encoded, err := gobEncode(v)
			if err != nil {
				return fmt.Errorf("testworker: encoding result: %w", err)
			}
			rc.Values[i] = encoded
		}
	}

	out, err := gobEncode(rc)
	if err != nil {
		return fmt.Errorf("testworker: encoding result chunk: %w", err)
	}
	if err := p.Store.RPush(ctx, redisq.ResultKey(p.Queue, chunk.Job), out); err != nil {
		return fmt.Errorf("testworker: pushing result chunk: %w", err)
	}
	return p.Store.Del(ctx, startKey, aliveKey)
}

// refreshAlive touches aliveKey periodically until the returned stop
// function is called, simulating a live worker's heartbeat.
func (p *Pool[R]) refreshAlive(ctx context.Context, aliveKey string) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = p.Store.Set(ctx, aliveKey, []byte("1"))
			}
		}
	}()
	return func() { close(done) }
}

func decodeBindings(raw map[string][]byte) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	for name, enc := range raw {
		var v any
		if err := gobDecode(enc, &v); err != nil {
			return nil, fmt.Errorf("testworker: decoding binding %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

func firstNonEmpty(errs []string) string {
	for _, e := range errs {
		if e != "" {
			return e
		}
	}
	return ""
}

func gobEncode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gobDecode(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
