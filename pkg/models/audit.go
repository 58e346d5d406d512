package models

import "time"

type AuditStatus string

const (
	SuccessAuditStatus AuditStatus = "success"
	FailedAuditStatus  AuditStatus = "failed"
)

// Operation types recorded in the audit log.
const (
	OpTemplateCreate     = "template_create"
	OpTemplateUpdate     = "template_update"
	OpTemplateDeactivate = "template_deactivate"
	OpTaskPublish        = "task_publish"
)

// AuditEntry is one append-only row of the administrative audit log.
type AuditEntry struct {
	ID              int64       `json:"id" db:"id"`
	OperationType   string      `json:"operation_type" db:"operation_type"`
	OperationTarget string      `json:"operation_target" db:"operation_target"`
	Operator        string      `json:"operator" db:"operator"`
	RequestData     Document    `json:"request_data,omitempty" db:"request_data"`
	ResponseData    Document    `json:"response_data,omitempty" db:"response_data"`
	Status          AuditStatus `json:"status" db:"status"`
	ErrorMessage    string      `json:"error_message,omitempty" db:"error_message"`
	IPAddress       string      `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent       string      `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
}

// AuditFilter narrows audit queries. Zero-valued fields are ignored.
type AuditFilter struct {
	OperationType string
	Status        AuditStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Page          int
	PageSize      int
}
