package models

import "time"

type TaskStatus string

const (
	PendingTaskStatus TaskStatus = "pending"
	SuccessTaskStatus TaskStatus = "success"
	FailedTaskStatus  TaskStatus = "failed"
)

// TaskRecord is one row of the task creation history: a single instantiation
// attempt and its outcome. Records are append-only; a retry is a new record,
// never an update of an old one. workflow_id is deliberately not unique so
// the attempt trail survives retries.
type TaskRecord struct {
	ID           int64        `json:"id" db:"id"`
	WorkflowID   string       `json:"workflow_id" db:"workflow_id"`
	WorkflowType WorkflowType `json:"workflow_type" db:"workflow_type"`
	WorkflowSpec Document     `json:"workflow_spec" db:"workflow_spec"`
	PhaseDurations
	CreatedBy          string     `json:"created_by" db:"created_by"`
	Status             TaskStatus `json:"status" db:"status"`
	DownstreamResponse Document   `json:"downstream_response,omitempty" db:"downstream_response"`
	IsSuccess          bool       `json:"is_success" db:"is_success"`
	ErrorMessage       string     `json:"error_message,omitempty" db:"error_message"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
}

// TaskRecordFilter narrows history queries. Zero-valued fields are ignored.
type TaskRecordFilter struct {
	WorkflowID    string
	WorkflowType  WorkflowType
	Status        TaskStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Page          int
	PageSize      int
}
