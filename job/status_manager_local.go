package job

import (
	"context"
	"fmt"
	"sync"

	"github.com/ab180/enrich/metric"
	"github.com/rs/zerolog/log"
)

// LocalStatusManager tracks a job running in the current process.
type LocalStatusManager struct {
	job            *Job
	jobStatus      *Status
	stageStatuses  map[string]*StageStatus
	stageMetrics   map[string]metric.Metrics
	doneStageCount int

	jobSubscriptions   []func(*Status)
	stageSubscriptions []func(stageName string, stageStatus *StageStatus)
	mu                 sync.RWMutex
}

func NewLocalStatusManager(j *Job) StatusManager {
	l := &LocalStatusManager{
		job:           j,
		jobStatus:     newStatus(),
		stageStatuses: make(map[string]*StageStatus),
		stageMetrics:  make(map[string]metric.Metrics),
	}
	for _, s := range j.Stages {
		l.stageStatuses[s.Name] = newStageStatus()
		l.stageMetrics[s.Name] = make(metric.Metrics)
	}
	l.jobStatus.Status = Running
	return l
}

func (l *LocalStatusManager) MarkTaskAsSucceed(_ context.Context, taskID TaskID, metrics metric.Metrics) error {
	l.mu.Lock()
	belongingStage, ok := l.stageStatuses[taskID.StageName]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("unknown stage %s", taskID.StageName)
	}
	l.stageMetrics[taskID.StageName].Add(metrics)
	belongingStage.DoneTasks++

	var (
		stageDone bool
		jobDone   bool
	)
	stage := l.job.GetStage(taskID.StageName)
	if belongingStage.DoneTasks == len(stage.Partitions.Partitions) && !belongingStage.IsCompleted() {
		belongingStage.Complete(Succeeded)
		stageDone = true

		l.doneStageCount++
		if l.doneStageCount == len(l.job.Stages) && !l.jobStatus.IsCompleted() {
			l.jobStatus.Complete(Succeeded)
			jobDone = true
		}
	}
	stageStatus := *belongingStage
	jobStatus := *l.jobStatus
	l.mu.Unlock()

	if stageDone {
		for _, callback := range l.stageSubscriptions {
			callback(taskID.StageName, &stageStatus)
		}
	}
	if jobDone {
		l.notifyJobCompletion(&jobStatus)
	}
	return nil
}

func (l *LocalStatusManager) MarkTaskAsFailed(_ context.Context, causedTask TaskID, err error, metrics metric.Metrics) error {
	l.mu.Lock()
	if m, ok := l.stageMetrics[causedTask.StageName]; ok {
		m.Add(metrics)
	}
	l.jobStatus.Errors = append(l.jobStatus.Errors, Error{
		Task:       causedTask.String(),
		Message:    err.Error(),
		Stacktrace: fmt.Sprintf("%+v", err),
	})
	if l.jobStatus.IsCompleted() {
		// only the first failure completes the job
		l.mu.Unlock()
		return nil
	}
	l.jobStatus.Complete(Failed)
	if s, ok := l.stageStatuses[causedTask.StageName]; ok {
		s.Complete(Failed)
	}
	jobStatus := *l.jobStatus
	l.mu.Unlock()

	log.Debug().Str("job", l.job.ID).Str("task", causedTask.String()).Msg("job failed")
	l.notifyJobCompletion(&jobStatus)
	return nil
}

func (l *LocalStatusManager) notifyJobCompletion(s *Status) {
	for _, callback := range l.jobSubscriptions {
		callback(s)
	}
}

// OnJobCompletion registers callback for completion events of given job.
// Callbacks must be registered before tasks start.
func (l *LocalStatusManager) OnJobCompletion(callback func(*Status)) {
	l.jobSubscriptions = append(l.jobSubscriptions, callback)
}

// OnStageCompletion registers callback for stage completion events in given job ID.
func (l *LocalStatusManager) OnStageCompletion(callback func(stageName string, stageStatus *StageStatus)) {
	l.stageSubscriptions = append(l.stageSubscriptions, callback)
}

func (l *LocalStatusManager) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := *l.jobStatus
	s.Errors = append([]Error(nil), l.jobStatus.Errors...)
	return s
}

func (l *LocalStatusManager) CollectMetrics(context.Context) (metric.Metrics, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := make(metric.Metrics)
	for _, stage := range l.job.Stages {
		total = total.Assign(l.stageMetrics[stage.Name].AddPrefix(stage.Name + "/"))
	}
	return total, nil
}
