package output

import "github.com/ab180/enrich/lrdd"

// Output is a destination of rows, such as a pipe to a task of the next stage
// or a collector. Write takes ownership of the given batch.
type Output interface {
	Write([]*lrdd.Row) error
	Close() error
}
