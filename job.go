package redisq

// ErrorMode selects how Submit treats a combine error captured while
// folding a result chunk.
type ErrorMode int

const (
	// ErrorModeStop aborts Submit with a wrapped error carrying the
	// failing slot after the job drains, on the first captured combine
	// error.
	ErrorModeStop ErrorMode = iota
	// ErrorModePass keeps folding every other result; an errored slot is
	// not passed to the combine function and does not appear in the
	// accumulator. Submit returns the accumulator plus a joined error of
	// everything captured.
	ErrorModePass
)

// Producer materializes one task's argument tuple at a time. Next returns
// ok=false once exhausted. Implementations are expected to be finite: the
// task producer drains Producer fully up front to build the ordered,
// 1-indexed task list.
type Producer interface {
	Next() (args []byte, ok bool)
}

// Iterator is a restartable Producer. This package drains it like any
// other Producer and never calls Reset: the fault detector rebuilds a lost
// chunk from the master's retained argument list (see producer.go) for
// either kind.
type Iterator interface {
	Producer
	Reset() error
}

// RNGStream derives the reserved per-task RNG seed blob appended to every
// task's argument tuple, so execution is reproducible independent of
// worker count. Delegated to an external function the caller supplies.
type RNGStream func(taskIndex int) []byte

// ProducerFunc adapts a plain function to Producer.
type ProducerFunc func() (args []byte, ok bool)

func (f ProducerFunc) Next() (args []byte, ok bool) { return f() }

// SliceProducer turns a pre-materialized slice of already-encoded argument
// tuples into a Producer, the common case when the caller already has a
// concrete []T to map over.
type SliceProducer struct {
	items []func() ([]byte, error)
	i     int
	err   error
}

// NewSliceProducer builds a Producer over items, encoding each with encode
// lazily as it's pulled. This mirrors masters that hold the full input
// argument list up front rather than streaming from an external source.
func NewSliceProducer[T any](items []T, encode func(T) ([]byte, error)) *SliceProducer {
	p := &SliceProducer{items: make([]func() ([]byte, error), len(items))}
	for i, it := range items {
		it := it
		p.items[i] = func() ([]byte, error) { return encode(it) }
	}
	return p
}

func (p *SliceProducer) Next() ([]byte, bool) {
	if p.err != nil || p.i >= len(p.items) {
		return nil, false
	}
	b, err := p.items[p.i]()
	p.i++
	if err != nil {
		p.err = err
		return nil, false
	}
	return b, true
}

// Err returns the first encode error SliceProducer encountered, if any.
func (p *SliceProducer) Err() error { return p.err }

// Job is the caller-facing submission descriptor. R is the accumulator's
// type.
type Job[R any] struct {
	// Expr is the pre-serialized, opaque task body.
	Expr []byte

	// Bindings is the caller's variable scope, used to resolve both
	// auto-discovered free variables and explicit exports.
	Bindings map[string]any

	// FreeVars lists the symbols referenced by Expr, computed by the
	// caller (or a code-generation step ahead of this package) since Go
	// has no runtime closure introspection. Auto-discovery is: FreeVars
	// minus NoExport minus LoopVars, each resolved in Bindings.
	FreeVars []string
	NoExport []string
	LoopVars []string

	// Export lists job-level explicit exports, unioned with the
	// registry's process-wide export list.
	Export []string

	// Producer yields the ordered argument tuples. At least one of
	// Producer or Iterator must be set; when both are, Iterator is used.
	// Iterator also satisfies Producer.
	Producer Producer
	Iterator Iterator

	// NextStream derives the reserved per-task RNG seed. Optional; when
	// nil, no RNG key is appended.
	NextStream RNGStream

	// Combine folds one result chunk into the accumulator.
	Combine CombineFunc[R]
	// Init is the accumulator's starting value. Ignored when two-level
	// reduction is enabled: there is no initial value in that case.
	Init R

	// ErrorMode selects combine-error propagation policy.
	ErrorMode ErrorMode
}

func (j *Job[R]) producer() (Producer, error) {
	switch {
	case j.Iterator != nil:
		return j.Iterator, nil
	case j.Producer != nil:
		return j.Producer, nil
	default:
		return nil, ErrProducerRequired
	}
}
