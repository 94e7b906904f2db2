package redisq

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cloudcello/redisq/metrics"
	"github.com/cloudcello/redisq/store"
)

// Registry is the queue registry: process-scoped configuration plus the
// opened store connection for one active queue. It is threaded as an
// explicit context object rather than raw package globals; Default() is
// the only place a singleton is tolerated, confined to the API facade.
type Registry struct {
	cfg   Config
	store store.Facade
	log   zerolog.Logger
	mtx   metrics.Provider

	mu         sync.Mutex
	registered bool
	closeFn    func() error
}

// NewRegistry builds a Registry from options, opens the backing store, and
// writes Q.live if it isn't already present. Opening the connection is
// part of registration: it succeeds only if the store is reachable.
func NewRegistry(ctx context.Context, opts ...Option) (*Registry, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	if cfg.Queue == "" {
		return nil, ErrQueueRequired
	}

	client, err := store.Open(ctx, store.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	r := &Registry{
		cfg:     cfg,
		store:   client,
		log:     zerolog.Nop(),
		mtx:     metrics.NoopProvider{},
		closeFn: client.Close,
	}
	return r, r.register(ctx)
}

// NewRegistryWithFacade wires a pre-built store.Facade (a real client or a
// storetest.Fake) instead of dialing one, the seam tests use.
func NewRegistryWithFacade(ctx context.Context, facade store.Facade, opts ...Option) (*Registry, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	if cfg.Queue == "" {
		return nil, ErrQueueRequired
	}
	r := &Registry{cfg: cfg, store: facade, log: zerolog.Nop(), mtx: metrics.NoopProvider{}}
	return r, r.register(ctx)
}

// WithLogger attaches a logger, in the usual child-logger idiom: derived
// loggers carry a component field rather than being constructed fresh.
func (r *Registry) WithLogger(log zerolog.Logger) *Registry {
	r.log = log.With().Str("component", "registry").Str("queue", r.cfg.Queue).Logger()
	return r
}

// WithMetrics attaches a metrics.Provider.
func (r *Registry) WithMetrics(p metrics.Provider) *Registry {
	r.mtx = p
	return r
}

func (r *Registry) register(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	exists, err := r.store.Exists(ctx, liveKey(r.cfg.Queue))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !exists {
		if err := r.store.Set(ctx, liveKey(r.cfg.Queue), []byte{}); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	r.registered = true
	return nil
}

// Queue returns the active queue name.
func (r *Registry) Queue() string { return r.cfg.Queue }

// Config returns a copy of the current configuration.
func (r *Registry) Config() Config { return r.cfg }

// Store exposes the backing store.Facade, for callers that need to drive
// a worker (e.g. internal/testworker) against the same connection a
// Registry already opened.
func (r *Registry) Store() store.Facade { return r.store }

// SetChunkSize updates the maximum number of task indices per pushed chunk.
func (r *Registry) SetChunkSize(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: chunkSize must be >= 1, got %d", ErrInvalidConfig, n)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.registered {
		return ErrInvalidState
	}
	r.cfg.ChunkSize = n
	return nil
}

// SetReduce updates the registry's two-level-reduction setting. Unlike
// SetChunkSize it does not check registration: it updates the setting,
// without error, even after RemoveQueue.
func (r *Registry) SetReduce(reduce Reduce) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.Reduce = reduce
}

// SetExport replaces the process-wide explicit export list.
func (r *Registry) SetExport(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.Export = names
}

// SetPackages replaces the process-wide package list.
func (r *Registry) SetPackages(pkgs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.Packages = pkgs
}

// Info answers the caller-facing info(item) operation. Returns
// ErrInvalidState for "workers" once the queue has been removed, since
// Q.count no longer has a registered owner to report on.
func (r *Registry) Info(ctx context.Context, item string) (string, error) {
	r.mu.Lock()
	registered := r.registered
	r.mu.Unlock()
	if item == "workers" && !registered {
		return "", ErrInvalidState
	}
	switch item {
	case "name":
		return Namespace, nil
	case "version":
		return Version, nil
	case "workers":
		v, err := r.store.Get(ctx, countKey(r.cfg.Queue))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if v == nil {
			return "0", nil
		}
		return string(v), nil
	default:
		return "", fmt.Errorf("%w: unknown info item %q", ErrInvalidConfig, item)
	}
}

// RemoveQueue tears down the queue: deletes Q, and all keys matching
// Q.env.*, Q.out.*, Q.start.*, Q.alive.*, Q.count, Q.live — including any
// start/alive markers left by workers with chunks still outstanding, so a
// queue removed mid-job doesn't leak marker keys. Idempotent: a second call
// on an already-removed queue is a no-op.
func (r *Registry) RemoveQueue(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	q := r.cfg.Queue
	var envKeys, outKeys, startKeys, aliveKeys []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		envKeys, err = r.store.Keys(gctx, envPattern(q))
		return err
	})
	g.Go(func() error {
		var err error
		outKeys, err = r.store.Keys(gctx, outPattern(q))
		return err
	})
	g.Go(func() error {
		var err error
		startKeys, err = r.store.Keys(gctx, startPatternAll(q))
		return err
	})
	g.Go(func() error {
		var err error
		aliveKeys, err = r.store.Keys(gctx, alivePatternAll(q))
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	toDelete := append([]string{q, countKey(q), liveKey(q)}, envKeys...)
	toDelete = append(toDelete, outKeys...)
	toDelete = append(toDelete, startKeys...)
	toDelete = append(toDelete, aliveKeys...)

	if err := r.store.Del(ctx, toDelete...); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	r.registered = false
	return nil
}

// Close releases the underlying store connection, when Registry opened it
// itself (NewRegistry, not NewRegistryWithFacade).
func (r *Registry) Close() error {
	if r.closeFn != nil {
		return r.closeFn()
	}
	return nil
}
