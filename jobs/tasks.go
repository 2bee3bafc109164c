package jobs

import (
	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDepartmentWarmup rebuilds cached department reports.
	TaskDepartmentWarmup = "attendance:dept_warmup"
	// DepartmentWarmupCron runs the warmup every night at 03:00 UTC.
	DepartmentWarmupCron = "0 3 * * *"
)

// DepartmentWarmupPayload selects the period to warm. Empty means the
// current month.
type DepartmentWarmupPayload struct {
	Period string `json:"period,omitempty"`
}

// NewDepartmentWarmupTask constructs an Asynq task.
func NewDepartmentWarmupTask(payload DepartmentWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDepartmentWarmup, data, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}
