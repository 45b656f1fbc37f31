package executor

import (
	"context"

	"github.com/ab180/enrich/broadcast"
	"github.com/ab180/enrich/transformation"
)

type taskContext struct {
	context.Context
	executor *TaskExecutor
}

func newTaskContextWithCancel(ctx context.Context, executor *TaskExecutor) (*taskContext, context.CancelFunc) {
	c, cancel := context.WithCancel(ctx)
	return &taskContext{
		Context:  c,
		executor: executor,
	}, cancel
}

func (c taskContext) PartitionID() string {
	return c.executor.task.PartitionID
}

func (c taskContext) JobID() string {
	return c.executor.task.JobID
}

func (c taskContext) Superstep() int {
	if c.executor.stage.Iteration == nil {
		return 0
	}
	return c.executor.stage.Iteration.Superstep()
}

// Broadcast waits for the broadcast variable attached to the stage.
func (c taskContext) Broadcast(name string) ([][]byte, error) {
	store := c.executor.job.broadcasts
	if store == nil || !c.executor.stage.HasBroadcast(name) {
		return nil, broadcast.ErrMissing
	}
	return store.Await(c, broadcast.Key{
		JobID: c.executor.task.JobID,
		Stage: c.executor.task.StageName,
		Name:  name,
	})
}

func (c *taskContext) AddMetric(name string, delta int) {
	c.executor.metrics.AddMetric(name, int64(delta))
}

func (c *taskContext) SetMetric(name string, val int) {
	c.executor.metrics.SetMetric(name, int64(val))
}

// taskContext implements transformation.Context.
var _ transformation.Context = (*taskContext)(nil)
