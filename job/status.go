package job

import "time"

type RunningState string

const (
	Starting  RunningState = "starting"
	Running   RunningState = "running"
	Failed    RunningState = "failed"
	Succeeded RunningState = "succeeded"
)

type baseStatus struct {
	Status      RunningState `json:"status"`
	SubmittedAt time.Time    `json:"submittedAt"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}

func newBaseStatus() baseStatus {
	return baseStatus{
		Status:      Starting,
		SubmittedAt: time.Now(),
	}
}

func (s *baseStatus) Complete(rs RunningState) {
	now := time.Now()
	s.Status = rs
	s.CompletedAt = &now
}

// IsCompleted returns true if the status is final.
func (s baseStatus) IsCompleted() bool {
	return s.Status == Failed || s.Status == Succeeded
}

// Status is a status of the job.
type Status struct {
	baseStatus
	Errors []Error `json:"errors,omitempty"`
}

func newStatus() *Status {
	return &Status{baseStatus: newBaseStatus()}
}

type StageStatus struct {
	baseStatus
	DoneTasks int `json:"doneTasks"`
}

func newStageStatus() *StageStatus {
	return &StageStatus{baseStatus: newBaseStatus()}
}

// Error is a task failure recorded in the job status.
type Error struct {
	Task       string `json:"task"`
	Message    string `json:"message"`
	Stacktrace string `json:"stacktrace"`
}
