package executor

import (
	"context"

	"github.com/ab180/enrich/input"
	"github.com/ab180/enrich/internal/pool"
	"github.com/ab180/enrich/internal/util"
	"github.com/ab180/enrich/job"
	"github.com/ab180/enrich/lrdd"
	"github.com/ab180/enrich/metric"
	"github.com/ab180/enrich/output"
	"github.com/ab180/enrich/transformation"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/therne/errorist"
)

type TaskExecutor struct {
	task  job.TaskID
	stage *job.Stage
	job   *runningJob

	Input    *input.Reader
	function transformation.Transformation
	Output   *output.Writer

	metrics   metric.Repository
	taskError error
}

func NewTaskExecutor(runningJob *runningJob, stage *job.Stage, partitionID string, in *input.Reader) *TaskExecutor {
	return &TaskExecutor{
		task: job.TaskID{
			JobID:       runningJob.Job.ID,
			StageName:   stage.Name,
			PartitionID: partitionID,
		},
		stage:    stage,
		job:      runningJob,
		Input:    in,
		function: stage.Function.NewInstance(),
		metrics:  metric.NewRepository(),
	}
}

func (e *TaskExecutor) SetOutput(w *output.Writer) {
	e.Output = w
}

func (e *TaskExecutor) Run() {
	ctx, cancel := newTaskContextWithCancel(e.job.Context(), e)
	defer cancel()
	defer e.reportStatus(ctx)

	if initializer, ok := e.function.(transformation.Initializer); ok {
		if err := initializer.Setup(ctx); err != nil {
			if ctx.Err() == nil {
				e.taskError = errors.WithMessage(err, "setup")
			}
			return
		}
	}

	// pipe input.Reader.C to function input channel
	funcInputChan := make(chan *lrdd.Row, e.Output.NumOutputs())
	go pipeAndFlattenInputs(ctx, e.Input.C, funcInputChan, e.metrics)

	if err := e.function.Apply(ctx, funcInputChan, e.Output); err != nil {
		if ctx.Err() != nil {
			// ignore errors caused by task cancellation
			return
		}
		e.taskError = err
	}
}

// reportStatus closes the output and reports the result of the task.
// It must be deferred directly by Run to recover panics.
func (e *TaskExecutor) reportStatus(ctx context.Context) {
	taskErr := e.taskError
	if err := errorist.WrapPanic(recover()); err != nil {
		taskErr = err
	}

	// to flush outputs before the status report
	if err := e.Output.Close(); err != nil && taskErr == nil && ctx.Err() == nil {
		taskErr = errors.Wrap(err, "close output")
	}

	if taskErr != nil {
		e.job.ReportTaskFailure(e.task, toTaskError(e.task, taskErr), e.metrics.Collect())
	} else if ctx.Err() == nil {
		e.job.ReportTaskSuccess(e.task, e.metrics.Collect())
	}

	// to help GC
	e.function = nil
	e.Input = nil
}

func toTaskError(task job.TaskID, err error) *job.TaskError {
	var recordErr *transformation.RecordError
	if errors.As(err, &recordErr) {
		return &job.TaskError{Task: task, Record: recordErr.Ordinal, Cause: recordErr.Cause}
	}
	return &job.TaskError{Task: task, Record: job.NoRecord, Cause: err}
}

func pipeAndFlattenInputs(ctx context.Context, in chan []*lrdd.Row, out chan *lrdd.Row, metrics metric.Repository) {
	defer close(out)

	for {
		var rows []*lrdd.Row
		select {
		case batch, ok := <-in:
			if !ok {
				return
			}
			rows = batch
		case <-ctx.Done():
			return
		}

		metrics.AddMetric("input", int64(len(rows)))
		for _, r := range rows {
			select {
			case out <- r:
			case <-ctx.Done():
				return
			}
		}
		pool.PutRowBatch(rows)
	}
}

// countingOutput counts rows written by a task.
type countingOutput struct {
	output.Output
	metrics metric.Repository
}

func (c countingOutput) Write(rows []*lrdd.Row) error {
	c.metrics.AddMetric("output", int64(len(rows)))
	return c.Output.Write(rows)
}

func logTaskFailure(j *job.Job, task job.TaskID, err error) {
	e := log.Warn().Err(err).Str("task", task.String())
	if stage := j.GetStage(task.StageName); stage != nil && stage.Function != nil {
		e = e.Str("function", util.NameOfType(stage.Function))
	}
	e.Msg("task failed")
}
