package bufpool

import "bytes"

// fixed caps the number of concurrently outstanding buffers at capacity,
// bounding memory when encode/decode work fans out across goroutines.
type fixed struct {
	available chan *bytes.Buffer
	all       chan *bytes.Buffer
	buf       chan *bytes.Buffer
}

// NewFixed returns a bounded buffer pool with the given capacity.
func NewFixed(capacity uint) Pool {
	return &fixed{
		available: make(chan *bytes.Buffer, capacity),
		all:       make(chan *bytes.Buffer, capacity),
		buf:       make(chan *bytes.Buffer, 1024),
	}
}

func (p *fixed) Get() *bytes.Buffer {
	select {
	case el := <-p.available:
		el.Reset()
		return el

	case el := <-p.buf:
		el.Reset()
		return el

	default:
		var el *bytes.Buffer

		if len(p.all) < cap(p.all) {
			el = new(bytes.Buffer)
		} else {
			el = <-p.all
		}

		select {
		case p.all <- el:
		case p.buf <- el:
		default:
		}
		el.Reset()
		return el
	}
}

func (p *fixed) Put(el *bytes.Buffer) {
	select {
	case p.available <- el:
	case p.all <- el:
	case p.buf <- el:
	default:
	}
}
