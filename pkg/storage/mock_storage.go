package storage

import (
	"sync"
	"time"

	"github.com/kokoro-ai/taskadmin/pkg/models"
)

// mockStore implements Store with in-memory storage. It is safe for
// concurrent use so tests can exercise the duplicate-name race.
type mockStore struct {
	mu        sync.Mutex
	templates []models.TaskTemplate
	records   []models.TaskRecord
	audit     []models.AuditEntry
	nextID    int64
}

// NewMockStore returns an empty in-memory store for tests.
func NewMockStore() Store {
	return &mockStore{}
}

func (m *mockStore) Begin() (Store, error) { return m, nil }
func (m *mockStore) Commit() error         { return nil }
func (m *mockStore) Rollback() error       { return nil }
func (m *mockStore) Close() error          { return nil }

func (m *mockStore) SaveTemplate(t models.TaskTemplate) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.templates {
		if existing.Name == t.Name {
			return 0, ErrDuplicateName
		}
	}
	m.nextID++
	t.ID = m.nextID
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	t.UpdatedAt = t.CreatedAt
	m.templates = append(m.templates, t)
	return t.ID, nil
}

func (m *mockStore) GetTemplate(name string) (models.TaskTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.templates {
		if t.Name == name {
			return t, nil
		}
	}
	return models.TaskTemplate{}, ErrNotFound
}

func (m *mockStore) ListTemplates(f models.TemplateFilter) ([]models.TaskTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.TaskTemplate{}
	// newest first
	for i := len(m.templates) - 1; i >= 0; i-- {
		t := m.templates[i]
		if !f.IncludeInactive && !t.IsActive {
			continue
		}
		if f.WorkflowType != "" && t.WorkflowType != f.WorkflowType {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *mockStore) UpdateTemplate(t models.TaskTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.templates {
		if existing.Name == t.Name && existing.ID != t.ID {
			return ErrDuplicateName
		}
	}
	for i, existing := range m.templates {
		if existing.ID == t.ID {
			t.CreatedAt = existing.CreatedAt
			t.UpdatedAt = time.Now()
			m.templates[i] = t
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockStore) DeactivateTemplate(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.templates {
		if t.Name == name {
			m.templates[i].IsActive = false
			m.templates[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockStore) SaveTaskRecord(r models.TaskRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	r.ID = m.nextID
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	m.records = append(m.records, r)
	return r.ID, nil
}

func (m *mockStore) GetTaskRecord(id int64) (models.TaskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return models.TaskRecord{}, ErrNotFound
}

func (m *mockStore) ListTaskRecords(f models.TaskRecordFilter) ([]models.TaskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := []models.TaskRecord{}
	for i := len(m.records) - 1; i >= 0; i-- {
		r := m.records[i]
		if f.WorkflowID != "" && r.WorkflowID != f.WorkflowID {
			continue
		}
		if f.WorkflowType != "" && r.WorkflowType != f.WorkflowType {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.CreatedAfter != nil && !r.CreatedAt.After(*f.CreatedAfter) {
			continue
		}
		if f.CreatedBefore != nil && !r.CreatedAt.Before(*f.CreatedBefore) {
			continue
		}
		matched = append(matched, r)
	}
	return pageSlice(matched, f.Page, f.PageSize), nil
}

func (m *mockStore) SaveAuditEntry(e models.AuditEntry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e.ID = m.nextID
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	m.audit = append(m.audit, e)
	return e.ID, nil
}

func (m *mockStore) ListAuditEntries(f models.AuditFilter) ([]models.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := []models.AuditEntry{}
	for i := len(m.audit) - 1; i >= 0; i-- {
		e := m.audit[i]
		if f.OperationType != "" && e.OperationType != f.OperationType {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if f.CreatedAfter != nil && !e.CreatedAt.After(*f.CreatedAfter) {
			continue
		}
		if f.CreatedBefore != nil && !e.CreatedAt.Before(*f.CreatedBefore) {
			continue
		}
		matched = append(matched, e)
	}
	return pageSlice(matched, f.Page, f.PageSize), nil
}

func pageSlice[T any](items []T, page, pageSize int) []T {
	if pageSize <= 0 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []T{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
