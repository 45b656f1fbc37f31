package transformation

import (
	"context"
)

// Context is given to a transformation running as a task.
type Context interface {
	context.Context

	// Broadcast returns the encoded elements of the broadcast attached to the
	// stage under given name, in the order they were produced. It blocks until
	// the broadcast dataset is fully evaluated.
	Broadcast(name string) ([][]byte, error)

	PartitionID() string
	JobID() string

	// Superstep returns the current iteration number (starting from 1) when
	// the stage is a part of an iterative computation, or 0 otherwise.
	// It must be read for every record since it changes between supersteps.
	Superstep() int

	AddMetric(name string, delta int)
	SetMetric(name string, val int)
}
