package service

import (
	"github.com/kokoro-ai/taskadmin/pkg/models"
	"github.com/kokoro-ai/taskadmin/pkg/storage"
)

// AuditRecorder is the passive sink for administrative operation records.
// Writes are best-effort: a failed audit insert is logged to the operational
// channel and never unwinds the primary operation it describes.
type AuditRecorder struct {
	store  storage.Store
	logger Logger
}

func NewAuditRecorder(store storage.Store, logger Logger) *AuditRecorder {
	return &AuditRecorder{store: store, logger: logger}
}

// Record appends one audit entry. It never fails the caller.
func (a *AuditRecorder) Record(entry models.AuditEntry) {
	if a == nil {
		return
	}
	if _, err := a.store.SaveAuditEntry(entry); err != nil {
		a.logger.Errorf("Failed to record audit entry %s/%s: %v",
			entry.OperationType, entry.OperationTarget, err)
	}
}

// Query returns audit entries newest first, paginated.
func (a *AuditRecorder) Query(f models.AuditFilter) ([]models.AuditEntry, error) {
	return a.store.ListAuditEntries(f)
}
