// Package bufpool pools the *bytes.Buffer scratch space used while
// gob-encoding job envelopes and task/result chunks.
package bufpool

import "bytes"

// Pool is an interface that defines methods on a pool of reusable buffers.
type Pool interface {
	// Get returns a buffer from the pool, reset and ready to write.
	Get() *bytes.Buffer

	// Put returns a buffer to the pool for reuse.
	Put(*bytes.Buffer)
}
