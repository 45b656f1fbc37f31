package output

import (
	"sync"

	"github.com/ab180/enrich/internal/pool"
	"github.com/ab180/enrich/lrdd"
	"github.com/pkg/errors"
)

// BufferedOutput wraps Output with buffering.
type BufferedOutput struct {
	buf    []*lrdd.Row
	size   int
	lock   sync.Mutex
	output Output
}

func NewBufferedOutput(output Output, size int) *BufferedOutput {
	if size == 0 {
		panic("buffer size cannot be 0.")
	}
	return &BufferedOutput{
		output: output,
		size:   size,
		buf:    pool.GetRowBatch(),
	}
}

func (b *BufferedOutput) Write(rows []*lrdd.Row) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	for len(rows) > 0 {
		writeLen := min(len(rows), b.size-len(b.buf))
		b.buf = append(b.buf, rows[:writeLen]...)
		if len(b.buf) == b.size {
			if err := b.flush(); err != nil {
				return err
			}
		}
		rows = rows[writeLen:]
	}
	return nil
}

// flush hands the buffered batch over to the output. The batch is owned by
// the output afterwards, so a new one is taken from the pool.
func (b *BufferedOutput) flush() error {
	if len(b.buf) == 0 {
		return nil
	}
	batch := b.buf
	b.buf = pool.GetRowBatch()
	return b.output.Write(batch)
}

func (b *BufferedOutput) Flush() error {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.flush()
}

// Close flushes the buffer and closes the output. The output is closed
// even if the flush fails.
func (b *BufferedOutput) Close() error {
	flushErr := b.Flush()
	if err := b.output.Close(); err != nil && flushErr == nil {
		return err
	}
	if flushErr != nil {
		return errors.Wrap(flushErr, "flush")
	}
	return nil
}
