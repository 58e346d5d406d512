package models

import "time"

type WorkflowType string

const (
	TextLoraCreation  WorkflowType = "text_lora_creation"
	ImageLoraCreation WorkflowType = "image_lora_creation"
)

// Valid reports whether the workflow type is one of the recognized values.
func (t WorkflowType) Valid() bool {
	switch t {
	case TextLoraCreation, ImageLoraCreation:
		return true
	}
	return false
}

// TaskTemplate is a named, reusable default workflow configuration. Templates
// are never hard-deleted; deactivation flips is_active and the name stays
// reserved forever.
type TaskTemplate struct {
	ID             int64        `json:"id" db:"id"`
	Name           string       `json:"name" db:"name"`
	Description    string       `json:"description" db:"description"`
	WorkflowType   WorkflowType `json:"workflow_type" db:"workflow_type"`
	WorkflowSpec   Document     `json:"workflow_spec" db:"workflow_spec"`
	PhaseDurations
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TemplateFilter narrows template listings. The zero value lists active
// templates of every workflow type.
type TemplateFilter struct {
	WorkflowType    WorkflowType
	IncludeInactive bool
}

// TemplateUpdate is a partial template mutation; nil fields are left as-is.
type TemplateUpdate struct {
	Name         *string
	Description  *string
	WorkflowSpec Document
	Announcement *string
	Execution    *string
	Review       *string
	Reward       *string
	IsActive     *bool
}
