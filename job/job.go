package job

import (
	"time"

	"github.com/ab180/enrich/internal/util"
)

type Job struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	Stages []*Stage `json:"stages"`

	SubmittedAt time.Time `json:"submittedAt"`
}

func New(name string, stages ...*Stage) *Job {
	return &Job{
		ID:          util.GenerateID("J"),
		Name:        name,
		Stages:      stages,
		SubmittedAt: time.Now(),
	}
}

func (j *Job) GetStage(name string) *Stage {
	for _, stage := range j.Stages {
		if stage.Name == name {
			return stage
		}
	}
	return nil
}

// NumTasks returns the total number of tasks in the job.
func (j *Job) NumTasks() (n int) {
	for _, stage := range j.Stages {
		n += len(stage.Partitions.Partitions)
	}
	return
}
