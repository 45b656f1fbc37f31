package input

import (
	"context"

	"github.com/ab180/enrich/lrdd"
	"go.uber.org/atomic"
)

// Reader fans in row batches from upstream tasks into a task.
// C is closed after every registered upstream called Done.
type Reader struct {
	C chan []*lrdd.Row

	activeCnt atomic.Int64
	closed    atomic.Bool
}

func NewReader(queueLen int) *Reader {
	return &Reader{
		C: make(chan []*lrdd.Row, queueLen),
	}
}

// Add registers an upstream. Every upstream must be added before any of them calls Done.
func (p *Reader) Add() {
	p.activeCnt.Inc()
}

// Write sends a batch to the task. It gives up when ctx is done, as the
// task may have stopped reading.
func (p *Reader) Write(ctx context.Context, rows []*lrdd.Row) error {
	select {
	case p.C <- rows:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Reader) Done() {
	newActiveCnt := p.activeCnt.Dec()
	if newActiveCnt == 0 {
		p.Close()
	}
}

func (p *Reader) Close() {
	if swapped := p.closed.CAS(false, true); !swapped {
		// p.closed was true
		return
	}
	// with CAS, only a goroutine can enter here
	close(p.C)
}
