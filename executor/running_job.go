package executor

import (
	"context"
	"sync"

	"github.com/ab180/enrich/broadcast"
	"github.com/ab180/enrich/job"
	"github.com/ab180/enrich/metric"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
)

type runningJob struct {
	Job        *job.Job
	Tasks      []*TaskExecutor
	Status     job.StatusManager
	broadcasts *broadcast.Store

	errs    *multierror.Error
	errLock sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

func newRunningJob(ctx context.Context, j *job.Job, broadcasts *broadcast.Store) *runningJob {
	jctx, cancel := context.WithCancel(ctx)
	status := job.NewLocalStatusManager(j)
	status.OnStageCompletion(func(stageName string, s *job.StageStatus) {
		log.Debug().
			Str("job", j.ID).
			Str("stage", stageName).
			Int("tasks", s.DoneTasks).
			Msg("stage finished")
	})
	return &runningJob{
		Job:        j,
		Status:     status,
		broadcasts: broadcasts,
		ctx:        jctx,
		cancel:     cancel,
	}
}

// Context returns a Context which is cancelled after job completion or on the first failure.
func (rj *runningJob) Context() context.Context {
	return rj.ctx
}

func (rj *runningJob) ReportTaskSuccess(task job.TaskID, metrics metric.Metrics) {
	if err := rj.Status.MarkTaskAsSucceed(rj.ctx, task, metrics); err != nil {
		log.Error().Err(err).Str("task", task.String()).Msg("failed to report task success")
	}
}

// ReportTaskFailure records the error and cancels the rest of the job.
func (rj *runningJob) ReportTaskFailure(task job.TaskID, err error, metrics metric.Metrics) {
	logTaskFailure(rj.Job, task, err)
	metric.FailedTasksCounter.Inc()

	rj.errLock.Lock()
	rj.errs = multierror.Append(rj.errs, err)
	rj.errLock.Unlock()

	if serr := rj.Status.MarkTaskAsFailed(rj.ctx, task, err, metrics); serr != nil {
		log.Error().Err(serr).Str("task", task.String()).Msg("failed to report task failure")
	}
	rj.cancel()
}

// Err returns aggregated errors of failed tasks, or nil.
func (rj *runningJob) Err() error {
	rj.errLock.Lock()
	defer rj.errLock.Unlock()
	return rj.errs.ErrorOrNil()
}
