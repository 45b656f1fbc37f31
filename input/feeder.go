package input

import (
	"context"

	"github.com/ab180/enrich/output"
)

// Feeder provides the input rows of a job. FeedInput is called once for
// every partition of the first stage, concurrently; rows written to out
// are read by the task of the same partition in the order of writes.
type Feeder interface {
	FeedInput(ctx context.Context, partitionID string, out output.Output) error
}

// FeederFunc is an adapter to use a function as a Feeder.
type FeederFunc func(ctx context.Context, partitionID string, out output.Output) error

func (f FeederFunc) FeedInput(ctx context.Context, partitionID string, out output.Output) error {
	return f(ctx, partitionID, out)
}
