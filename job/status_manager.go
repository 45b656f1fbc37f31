package job

import (
	"context"

	"github.com/ab180/enrich/metric"
)

type StatusManager interface {
	// MarkTaskAsSucceed marks a task as succeed.
	// If all tasks in its belonging stage are also completed, it marks the stage as completed.
	// If all stages in belonging job are also completed, it marks the job as completed.
	MarkTaskAsSucceed(context.Context, TaskID, metric.Metrics) error

	// MarkTaskAsFailed marks task and its belonging job as failed.
	MarkTaskAsFailed(context.Context, TaskID, error, metric.Metrics) error

	// OnJobCompletion registers callback for completion events of given job.
	OnJobCompletion(callback func(*Status))

	// OnStageCompletion registers callback for stage completion events in given job ID.
	OnStageCompletion(callback func(stageName string, stageStatus *StageStatus))

	// Status returns a snapshot of the job status.
	Status() Status

	// CollectMetrics collects task metrics in a job.
	CollectMetrics(ctx context.Context) (metric.Metrics, error)
}
