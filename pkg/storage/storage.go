package storage

import (
	"github.com/kokoro-ai/taskadmin/pkg/models"
	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when a template or record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateName is returned when a template create or rename collides
	// with an existing name, active or inactive. The check is enforced by the
	// storage layer's unique constraint, not an in-process lock, so it holds
	// across service instances.
	ErrDuplicateName = errors.New("template name already exists")
)

// Store defines the persistence operations for the task admin core.
// Templates are the only mutable rows; history and audit are append-only.
type Store interface {
	Begin() (Store, error)
	Commit() error
	Rollback() error
	Close() error

	// Template operations
	SaveTemplate(t models.TaskTemplate) (int64, error)
	GetTemplate(name string) (models.TaskTemplate, error)
	ListTemplates(f models.TemplateFilter) ([]models.TaskTemplate, error)
	UpdateTemplate(t models.TaskTemplate) error
	DeactivateTemplate(name string) error

	// Task creation history operations (append-only)
	SaveTaskRecord(r models.TaskRecord) (int64, error)
	GetTaskRecord(id int64) (models.TaskRecord, error)
	ListTaskRecords(f models.TaskRecordFilter) ([]models.TaskRecord, error)

	// Audit log operations (append-only)
	SaveAuditEntry(e models.AuditEntry) (int64, error)
	ListAuditEntries(f models.AuditFilter) ([]models.AuditEntry, error)
}
