// Package store is the thin, typed view over the key/value store that the
// rest of the coordinator talks to. It never inspects values: everything
// is an opaque []byte blob to this package.
package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Facade is the narrow set of primitives the coordinator needs. Concrete
// implementations back it with a real Redis-compatible client (Client,
// below) or an in-memory fake for tests (see storetest.Fake in the
// sibling test package).
type Facade interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context, pattern string) ([]string, error)
	MGet(ctx context.Context, keys ...string) ([][]byte, error)

	RPush(ctx context.Context, list string, value []byte) error
	// BRPop blocks up to timeout for an element at the tail of list to
	// become available. It returns (nil, false, nil) on timeout, never an
	// error for the empty-queue case.
	BRPop(ctx context.Context, list string, timeout time.Duration) (value []byte, ok bool, err error)
	LRange(ctx context.Context, list string, start, stop int64) ([][]byte, error)
	LLen(ctx context.Context, list string) (int64, error)
	// LRem removes up to count occurrences of value from list, scanning
	// from the head (count == 0 removes all occurrences), used to drop
	// specific chunks out of a
	// shared queue list without disturbing concurrently-pushed elements.
	LRem(ctx context.Context, list string, count int64, value []byte) error

	// Batch opens a pipelined, transactional scope. Queue operations on
	// the returned Batch, then call Exec to run them atomically in one
	// round-trip; results come back in submission order.
	Batch() Batch
}

// Batch buffers commands for atomic, pipelined execution (MULTI/EXEC under
// the hood). It mirrors the subset of Facade operations that are useful to
// batch: pushes and deletes, used by task production and fault detection,
// plus range and multi-key reads.
type Batch interface {
	RPush(list string, value []byte)
	Del(keys ...string)
	LRange(list string, start, stop int64) *RangeResult
	MGet(keys ...string) *MGetResult

	// Exec runs every queued command atomically and populates the
	// Result/RangeResult/MGetResult handles returned by the queuing calls.
	Exec(ctx context.Context) error
}

// RangeResult holds the value of a queued LRange call; valid only after
// Batch.Exec returns successfully.
type RangeResult struct {
	Values [][]byte
}

// MGetResult holds the value of a queued MGet call; valid only after
// Batch.Exec returns successfully.
type MGetResult struct {
	Values [][]byte
}

// Client is a Facade backed by github.com/redis/go-redis/v9.
type Client struct {
	rdb *redis.Client
}

// Options configures a new Client. Addr is required; Password and DB are
// passed straight through to redis.Options.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Open dials the store. It is part of registration: it succeeds only if
// the store is reachable, verified with a PING round-trip.
func Open(ctx context.Context, opts Options) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &Client{rdb: rdb}, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error { return c.rdb.Close() }

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return v, err
}

func (c *Client) Set(ctx context.Context, key string, value []byte) error {
	return c.rdb.Set(ctx, key, value, 0).Err()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	return n > 0, err
}

func (c *Client) Keys(ctx context.Context, pattern string) ([]string, error) {
	return c.rdb.Keys(ctx, pattern).Result()
}

func (c *Client) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	raw, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(raw))
	for i, v := range raw {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			out[i] = []byte(s)
		}
	}
	return out, nil
}

func (c *Client) RPush(ctx context.Context, list string, value []byte) error {
	return c.rdb.RPush(ctx, list, value).Err()
}

func (c *Client) BRPop(ctx context.Context, list string, timeout time.Duration) ([]byte, bool, error) {
	res, err := c.rdb.BRPop(ctx, timeout, list).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	// BRPop returns [key, value].
	if len(res) < 2 {
		return nil, false, nil
	}
	return []byte(res[1]), true, nil
}

func (c *Client) LRange(ctx context.Context, list string, start, stop int64) ([][]byte, error) {
	raw, err := c.rdb.LRange(ctx, list, start, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(raw))
	for i, v := range raw {
		out[i] = []byte(v)
	}
	return out, nil
}

func (c *Client) LLen(ctx context.Context, list string) (int64, error) {
	return c.rdb.LLen(ctx, list).Result()
}

func (c *Client) LRem(ctx context.Context, list string, count int64, value []byte) error {
	return c.rdb.LRem(ctx, list, count, value).Err()
}

func (c *Client) Batch() Batch {
	return &txBatch{rdb: c.rdb}
}

type txBatch struct {
	rdb      *redis.Client
	ops      []func(redis.Pipeliner)
	postExec []func()
}

func (b *txBatch) RPush(list string, value []byte) {
	b.ops = append(b.ops, func(p redis.Pipeliner) { p.RPush(context.Background(), list, value) })
}

func (b *txBatch) Del(keys ...string) {
	if len(keys) == 0 {
		return
	}
	b.ops = append(b.ops, func(p redis.Pipeliner) { p.Del(context.Background(), keys...) })
}

func (b *txBatch) LRange(list string, start, stop int64) *RangeResult {
	res := &RangeResult{}
	b.ops = append(b.ops, func(p redis.Pipeliner) {
		cmd := p.LRange(context.Background(), list, start, stop)
		b.onExec(func() {
			vals, err := cmd.Result()
			if err != nil {
				return
			}
			res.Values = make([][]byte, len(vals))
			for i, v := range vals {
				res.Values[i] = []byte(v)
			}
		})
	})
	return res
}

func (b *txBatch) MGet(keys ...string) *MGetResult {
	res := &MGetResult{}
	if len(keys) == 0 {
		return res
	}
	b.ops = append(b.ops, func(p redis.Pipeliner) {
		cmd := p.MGet(context.Background(), keys...)
		b.onExec(func() {
			vals, err := cmd.Result()
			if err != nil {
				return
			}
			res.Values = make([][]byte, len(vals))
			for i, v := range vals {
				if s, ok := v.(string); ok {
					res.Values[i] = []byte(s)
				}
			}
		})
	})
	return res
}

// onExec queues a closure that materializes a queued command's result once
// Exec has run the pipeline (LRange/MGet above).
func (b *txBatch) onExec(fn func()) {
	b.postExec = append(b.postExec, fn)
}

func (b *txBatch) Exec(ctx context.Context) error {
	_, err := b.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, op := range b.ops {
			op(p)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, fn := range b.postExec {
		fn()
	}
	return nil
}
