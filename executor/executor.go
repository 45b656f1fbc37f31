// Package executor runs jobs in the current process. Every partition of a
// stage becomes a task running on its own goroutine; tasks of adjacent
// stages are connected with local pipes.
package executor

import (
	"context"
	"sync"
	"time"

	"github.com/ab180/enrich/broadcast"
	"github.com/ab180/enrich/input"
	"github.com/ab180/enrich/job"
	"github.com/ab180/enrich/lrdd"
	"github.com/ab180/enrich/metric"
	"github.com/ab180/enrich/output"
	"github.com/ab180/enrich/partitions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/therne/errorist"
)

// InputStageName is used as the stage name of the tasks feeding a job.
const InputStageName = "_input"

type Executor struct {
	broadcasts *broadcast.Store
	opt        Options
}

func New(broadcasts *broadcast.Store, options ...func(*Options)) *Executor {
	opt := DefaultOptions()
	for _, o := range options {
		o(&opt)
	}
	return &Executor{
		broadcasts: broadcasts,
		opt:        opt,
	}
}

// Concurrency returns the default number of partitions of a stage.
func (w *Executor) Concurrency() int {
	return w.opt.Concurrency
}

// Result is the output of a job.
type Result struct {
	// Partitions holds rows written by the last stage, per partition in partition order.
	Partitions [][]*lrdd.Row
	Status     job.Status
	Metrics    metric.Metrics
}

// Rows returns every collected row in partition order.
func (r *Result) Rows() (rows []*lrdd.Row) {
	for _, p := range r.Partitions {
		rows = append(rows, p...)
	}
	return
}

// Run executes the job with rows provided by the feeder, and blocks until
// every task finishes. When a task fails, the rest of the job is cancelled
// and every task error is returned.
func (w *Executor) Run(ctx context.Context, j *job.Job, in input.Feeder) (*Result, error) {
	if len(j.Stages) == 0 {
		return nil, errors.New("job has no stages")
	}
	runningJob := newRunningJob(ctx, j, w.broadcasts)
	defer runningJob.cancel()

	tasks, err := w.createTasks(runningJob)
	if err != nil {
		return nil, err
	}
	collector := NewCollector(j.Stages[len(j.Stages)-1].Partitions)
	if err := w.connectTasks(runningJob, tasks, collector); err != nil {
		return nil, err
	}

	metric.RunningJobsGauge.Inc()
	defer metric.RunningJobsGauge.Dec()
	runningJob.Status.OnJobCompletion(func(s *job.Status) {
		metric.JobDurationSummary.Observe(time.Since(j.SubmittedAt).Seconds())
		log.Debug().
			Str("job", j.ID).
			Str("name", j.Name).
			Str("status", string(s.Status)).
			Dur("elapsed", time.Since(j.SubmittedAt)).
			Msg("job finished")
	})
	log.Debug().Str("job", j.ID).Str("name", j.Name).Int("tasks", j.NumTasks()).Msg("job started")

	var wg sync.WaitGroup
	w.feedInput(runningJob, in, tasks[0], &wg)
	for _, stageTasks := range tasks {
		for _, t := range stageTasks {
			wg.Add(1)
			go func(t *TaskExecutor) {
				defer wg.Done()
				w.startTask(t)
			}(t)
		}
	}
	wg.Wait()

	if err := runningJob.Err(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	metrics, err := runningJob.Status.CollectMetrics(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "collect metrics")
	}
	return &Result{
		Partitions: collector.Rows(),
		Status:     runningJob.Status.Status(),
		Metrics:    metrics,
	}, nil
}

func (w *Executor) createTasks(runningJob *runningJob) ([][]*TaskExecutor, error) {
	tasks := make([][]*TaskExecutor, len(runningJob.Job.Stages))
	for i, stage := range runningJob.Job.Stages {
		if stage.Function == nil {
			return nil, errors.Errorf("stage %s has no function", stage.Name)
		}
		if len(stage.Partitions.Partitions) == 0 {
			return nil, errors.Errorf("stage %s has no partitions", stage.Name)
		}
		for _, p := range stage.Partitions.Partitions {
			in := input.NewReader(w.opt.Input.QueueLength)
			tasks[i] = append(tasks[i], NewTaskExecutor(runningJob, stage, p.ID, in))
		}
	}
	return tasks, nil
}

// connectTasks opens outputs of every task before any of them starts,
// so that readers know all of their upstreams.
func (w *Executor) connectTasks(runningJob *runningJob, tasks [][]*TaskExecutor, collector *Collector) error {
	stages := runningJob.Job.Stages
	for i, stage := range stages {
		for _, t := range tasks[i] {
			idToOutput := make(map[string]output.Output)
			if i == len(stages)-1 {
				// last stage (with collect)
				idToOutput[t.task.PartitionID] = collector.Output(t.task.PartitionID)
				t.SetOutput(output.NewWriter(t.task.PartitionID, partitions.NewPreservePartitioner(), w.counting(t, idToOutput)))
				continue
			}
			next := stages[i+1]
			partitioner := next.Partitions.Partitioner
			if partitions.IsPreserved(partitioner) {
				// only connect local
				if len(tasks[i+1]) != len(tasks[i]) {
					return errors.Errorf("stage %s preserves partitions, but has %d partitions while %s has %d",
						next.Name, len(tasks[i+1]), stage.Name, len(tasks[i]))
				}
				nextTask := findTask(tasks[i+1], t.task.PartitionID)
				if nextTask == nil {
					return errors.Errorf("partition %s not found in stage %s", t.task.PartitionID, next.Name)
				}
				idToOutput[t.task.PartitionID] = NewLocalPipe(runningJob.Context(), nextTask.Input)
			} else {
				for _, nextTask := range tasks[i+1] {
					pipe := NewLocalPipe(runningJob.Context(), nextTask.Input)
					idToOutput[nextTask.task.PartitionID] = output.NewBufferedOutput(pipe, w.opt.Output.BufferLength)
				}
			}
			t.SetOutput(output.NewWriter(t.task.PartitionID, partitioner, w.counting(t, idToOutput)))
		}
	}
	return nil
}

func (w *Executor) counting(t *TaskExecutor, outputs map[string]output.Output) map[string]output.Output {
	for id, out := range outputs {
		outputs[id] = countingOutput{Output: out, metrics: t.metrics}
	}
	return outputs
}

// feedInput starts a feeder goroutine for every task of the first stage.
func (w *Executor) feedInput(runningJob *runningJob, in input.Feeder, firstStageTasks []*TaskExecutor, wg *sync.WaitGroup) {
	for _, t := range firstStageTasks {
		t := t
		pipe := output.NewBufferedOutput(NewLocalPipe(runningJob.Context(), t.Input), w.opt.Output.BufferLength)
		wg.Add(1)
		go func() {
			defer wg.Done()
			taskID := job.TaskID{
				JobID:       runningJob.Job.ID,
				StageName:   InputStageName,
				PartitionID: t.task.PartitionID,
			}
			err := feedPartition(runningJob.Context(), in, t.task.PartitionID, pipe)
			if err != nil && runningJob.Context().Err() == nil {
				runningJob.ReportTaskFailure(taskID, toTaskError(taskID, err), nil)
			}
		}()
	}
}

func feedPartition(ctx context.Context, in input.Feeder, partitionID string, out output.Output) (err error) {
	defer func() {
		if perr := errorist.WrapPanic(recover()); perr != nil {
			err = perr
		}
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return in.FeedInput(ctx, partitionID, out)
}

func (w *Executor) startTask(taskExec *TaskExecutor) {
	metric.RunningTasksGauge.Inc()
	defer metric.RunningTasksGauge.Dec()

	taskExec.Run()
}

func findTask(tasks []*TaskExecutor, partitionID string) *TaskExecutor {
	for _, t := range tasks {
		if t.task.PartitionID == partitionID {
			return t
		}
	}
	return nil
}
