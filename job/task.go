package job

import (
	"fmt"
	"path"
)

type TaskID struct {
	JobID       string `json:"jobId"`
	StageName   string `json:"stageName"`
	PartitionID string `json:"partitionId"`
}

func (t TaskID) String() string {
	return path.Join(t.JobID, t.StageName, t.PartitionID)
}

// NoRecord is used as TaskError.Record when the failure is not related to a record.
const NoRecord = -1

// TaskError is a fatal failure of a task.
type TaskError struct {
	Task TaskID

	// Record is the ordinal of the input record being processed, or NoRecord.
	Record int64
	Cause  error
}

func (e *TaskError) Error() string {
	if e.Record == NoRecord {
		return fmt.Sprintf("task %s failed: %v", e.Task, e.Cause)
	}
	return fmt.Sprintf("task %s failed on record #%d: %v", e.Task, e.Record, e.Cause)
}

func (e *TaskError) Unwrap() error {
	return e.Cause
}
