// Package storetest provides an in-memory store.Facade used by the
// coordinator's own tests: a small hand-written fake rather than a
// mocking framework.
package storetest

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/cloudcello/redisq/store"
)

// Fake is a single-process, lock-protected implementation of store.Facade
// backed by plain Go maps and slices. It is not a Redis reimplementation:
// BRPop busy-polls instead of blocking on real notifications, which is
// fine at test scale and keeps this file small.
type Fake struct {
	mu    sync.Mutex
	kv    map[string][]byte
	lists map[string][][]byte
}

// New constructs an empty Fake.
func New() *Fake {
	return &Fake{kv: make(map[string][]byte), lists: make(map[string][][]byte)}
}

func (f *Fake) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.kv[key], nil
}

func (f *Fake) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kv[key] = append([]byte(nil), value...)
	return nil
}

func (f *Fake) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.kv, k)
		delete(f.lists, k)
	}
	return nil
}

func (f *Fake) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.kv[key]; ok {
		return true, nil
	}
	_, ok := f.lists[key]
	return ok, nil
}

func (f *Fake) Keys(_ context.Context, pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for k := range f.kv {
		if ok, _ := filepath.Match(pattern, k); ok {
			out = append(out, k)
		}
	}
	for k := range f.lists {
		if ok, _ := filepath.Match(pattern, k); ok {
			out = append(out, k)
		}
	}
	return out, nil
}

func (f *Fake) MGet(_ context.Context, keys ...string) ([][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = f.kv[k]
	}
	return out, nil
}

func (f *Fake) RPush(_ context.Context, list string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[list] = append(f.lists[list], append([]byte(nil), value...))
	return nil
}

func (f *Fake) BRPop(ctx context.Context, list string, timeout time.Duration) ([]byte, bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		f.mu.Lock()
		vs := f.lists[list]
		if len(vs) > 0 {
			v := vs[0]
			f.lists[list] = vs[1:]
			f.mu.Unlock()
			return v, true, nil
		}
		f.mu.Unlock()

		if timeout <= 0 || time.Now().After(deadline) {
			return nil, false, nil
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func (f *Fake) LRange(_ context.Context, list string, start, stop int64) ([][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	vs := f.lists[list]
	n := int64(len(vs))
	if n == 0 {
		return nil, nil
	}
	if stop < 0 || stop >= n {
		stop = n - 1
	}
	if start < 0 {
		start = 0
	}
	if start > stop {
		return nil, nil
	}
	out := make([][]byte, stop-start+1)
	copy(out, vs[start:stop+1])
	return out, nil
}

func (f *Fake) LLen(_ context.Context, list string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.lists[list])), nil
}

// LRem removes the first count occurrences of value scanning head to tail
// (matching Redis's LREM with a positive count); count <= 0 removes every
// occurrence.
func (f *Fake) LRem(_ context.Context, list string, count int64, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	vs := f.lists[list]
	if len(vs) == 0 {
		return nil
	}
	out := vs[:0:0]
	removed := int64(0)
	for _, v := range vs {
		if (count <= 0 || removed < count) && bytes.Equal(v, value) {
			removed++
			continue
		}
		out = append(out, v)
	}
	f.lists[list] = out
	return nil
}

func (f *Fake) Batch() store.Batch {
	return &fakeBatch{f: f}
}

// fakeBatch applies queued operations immediately under the fake's lock
// when Exec is called; the fake has no real pipelining, so "atomic" here
// means "executed while holding the single lock, without interleaving
// from other Fake calls."
type fakeBatch struct {
	f   *Fake
	ops []func()
}

func (b *fakeBatch) RPush(list string, value []byte) {
	b.ops = append(b.ops, func() {
		b.f.lists[list] = append(b.f.lists[list], append([]byte(nil), value...))
	})
}

func (b *fakeBatch) Del(keys ...string) {
	b.ops = append(b.ops, func() {
		for _, k := range keys {
			delete(b.f.kv, k)
			delete(b.f.lists, k)
		}
	})
}

func (b *fakeBatch) LRange(list string, start, stop int64) *store.RangeResult {
	res := &store.RangeResult{}
	b.ops = append(b.ops, func() {
		vs := b.f.lists[list]
		n := int64(len(vs))
		if n == 0 {
			return
		}
		if stop < 0 || stop >= n {
			stop = n - 1
		}
		if start < 0 {
			start = 0
		}
		if start > stop {
			return
		}
		out := make([][]byte, stop-start+1)
		copy(out, vs[start:stop+1])
		res.Values = out
	})
	return res
}

func (b *fakeBatch) MGet(keys ...string) *store.MGetResult {
	res := &store.MGetResult{}
	b.ops = append(b.ops, func() {
		out := make([][]byte, len(keys))
		for i, k := range keys {
			out[i] = b.f.kv[k]
		}
		res.Values = out
	})
	return res
}

func (b *fakeBatch) Exec(_ context.Context) error {
	b.f.mu.Lock()
	defer b.f.mu.Unlock()
	for _, op := range b.ops {
		op()
	}
	return nil
}
