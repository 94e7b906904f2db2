package redisq

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/cloudcello/redisq/bufpool"
)

// TaskChunk is the unit pushed onto Q by the task producer and popped by a
// worker. It groups up to ChunkSize consecutive task slots so a single
// round-trip amortizes across many tasks when ChunkSize > 1.
type TaskChunk struct {
	Job string
	// Slots holds one 1-indexed output slot per task carried by this
	// chunk, in submission order: the task's own position under
	// single-level reduction, or the chunk's shared number under
	// two-level reduction.
	Slots []int
	// Args holds one pre-encoded argument tuple per entry in Slots.
	Args [][]byte
	// RNGSeeds holds one reserved RNG seed blob per entry in Slots, or is
	// nil when the job supplied no RNGStream.
	RNGSeeds [][]byte
}

// ResultChunk is the unit a worker pushes onto Q.out.J after executing the
// tasks in a TaskChunk. Token identifies the worker that produced it, the
// same token that ends its Q.start.J.* and Q.alive.J.* marker keys; the
// fault detector reads the marker keys, not this field.
type ResultChunk struct {
	Job   string
	Token string
	Slots []int
	// Values holds one gob-encoded result per entry in Slots.
	Values [][]byte
	// Errs holds one message per entry in Slots; an empty string means the
	// corresponding task raised no error.
	Errs []string
}

var bufPool bufpool.Pool = bufpool.NewDynamic()

func encodeGob(v any) ([]byte, error) {
	buf := bufPool.Get()
	defer bufPool.Put(buf)
	if err := gob.NewEncoder(buf).Encode(v); err != nil {
		return nil, fmt.Errorf("%s: gob encode: %w", Namespace, err)
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func decodeGob(b []byte, v any) error {
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(v); err != nil {
		return fmt.Errorf("%s: gob decode: %w", Namespace, err)
	}
	return nil
}

func encodeTaskChunk(c TaskChunk) ([]byte, error) { return encodeGob(c) }

func decodeTaskChunk(b []byte) (TaskChunk, error) {
	var c TaskChunk
	err := decodeGob(b, &c)
	return c, err
}

func decodeResultChunk(b []byte) (ResultChunk, error) {
	var c ResultChunk
	err := decodeGob(b, &c)
	return c, err
}

// decodeValue gob-decodes one result value of type R out of a ResultChunk
// slot, used by the collector once R is statically known inside Submit.
func decodeValue[R any](b []byte) (R, error) {
	var v R
	err := decodeGob(b, &v)
	return v, err
}

func encodeValue(v any) ([]byte, error) { return encodeGob(v) }
