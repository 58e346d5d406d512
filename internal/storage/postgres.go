package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/kokoro-ai/taskadmin/pkg/models"
	"github.com/kokoro-ai/taskadmin/pkg/storage"
)

type DBInterface interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	QueryRowx(query string, args ...interface{}) *sqlx.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}

type PostgresStore struct {
	db DBInterface
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Begin() (storage.Store, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.Beginx()
		if err != nil {
			return nil, err
		}
		return &PostgresStore{db: tx}, nil
	}
	return nil, fmt.Errorf("cannot begin transaction on unknown type")
}

func (s *PostgresStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return fmt.Errorf("cannot commit: not a transaction")
}

func (s *PostgresStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return fmt.Errorf("cannot rollback: not a transaction")
}

func (s *PostgresStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil // No-op for *sqlx.Tx
}

// SaveTemplate inserts a new template and returns its ID. The unique index on
// name makes the create-if-absent atomic; a collision with any existing name,
// active or inactive, surfaces as storage.ErrDuplicateName.
func (s *PostgresStore) SaveTemplate(t models.TaskTemplate) (int64, error) {
	var id int64
	err := s.db.QueryRowx(`
		INSERT INTO task_templates
			(name, description, workflow_type, workflow_spec,
			 announcement_duration, execution_duration, review_duration, reward_duration,
			 is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		t.Name, t.Description, t.WorkflowType, t.WorkflowSpec,
		t.Announcement, t.Execution, t.Review, t.Reward,
		t.IsActive, t.CreatedAt, t.UpdatedAt).Scan(&id)
	if isUniqueViolation(err) {
		return 0, storage.ErrDuplicateName
	}
	if err != nil {
		return 0, fmt.Errorf("save template: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetTemplate(name string) (models.TaskTemplate, error) {
	var t models.TaskTemplate
	err := s.db.Get(&t, "SELECT * FROM task_templates WHERE name = $1", name)
	if err == sql.ErrNoRows {
		return models.TaskTemplate{}, storage.ErrNotFound
	}
	if err != nil {
		return models.TaskTemplate{}, fmt.Errorf("get template %q: %w", name, err)
	}
	return t, nil
}

func (s *PostgresStore) ListTemplates(f models.TemplateFilter) ([]models.TaskTemplate, error) {
	templates := []models.TaskTemplate{}
	query := "SELECT * FROM task_templates"
	var conds []string
	var args []interface{}
	if !f.IncludeInactive {
		conds = append(conds, "is_active = true")
	}
	if f.WorkflowType != "" {
		args = append(args, f.WorkflowType)
		conds = append(conds, fmt.Sprintf("workflow_type = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if err := s.db.Select(&templates, query, args...); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

func (s *PostgresStore) UpdateTemplate(t models.TaskTemplate) error {
	res, err := s.db.Exec(`
		UPDATE task_templates
		SET name = $1, description = $2, workflow_spec = $3,
		    announcement_duration = $4, execution_duration = $5,
		    review_duration = $6, reward_duration = $7,
		    is_active = $8, updated_at = CURRENT_TIMESTAMP
		WHERE id = $9`,
		t.Name, t.Description, t.WorkflowSpec,
		t.Announcement, t.Execution, t.Review, t.Reward,
		t.IsActive, t.ID)
	if isUniqueViolation(err) {
		return storage.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("update template %d: %w", t.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeactivateTemplate is idempotent: deactivating an already-inactive template
// touches the row again and reports success.
func (s *PostgresStore) DeactivateTemplate(name string) error {
	res, err := s.db.Exec(
		"UPDATE task_templates SET is_active = false, updated_at = CURRENT_TIMESTAMP WHERE name = $1",
		name)
	if err != nil {
		return fmt.Errorf("deactivate template %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SaveTaskRecord appends one instantiation attempt to the history ledger.
func (s *PostgresStore) SaveTaskRecord(r models.TaskRecord) (int64, error) {
	var id int64
	err := s.db.QueryRowx(`
		INSERT INTO task_creation_history
			(workflow_id, workflow_type, workflow_spec,
			 announcement_duration, execution_duration, review_duration, reward_duration,
			 created_by, status, downstream_response, is_success, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`,
		r.WorkflowID, r.WorkflowType, r.WorkflowSpec,
		r.Announcement, r.Execution, r.Review, r.Reward,
		r.CreatedBy, r.Status, r.DownstreamResponse, r.IsSuccess, r.ErrorMessage, r.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save task record: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetTaskRecord(id int64) (models.TaskRecord, error) {
	var r models.TaskRecord
	err := s.db.Get(&r, "SELECT * FROM task_creation_history WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.TaskRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return models.TaskRecord{}, fmt.Errorf("get task record %d: %w", id, err)
	}
	return r, nil
}

func (s *PostgresStore) ListTaskRecords(f models.TaskRecordFilter) ([]models.TaskRecord, error) {
	records := []models.TaskRecord{}
	query := "SELECT * FROM task_creation_history"
	var conds []string
	var args []interface{}
	if f.WorkflowID != "" {
		args = append(args, f.WorkflowID)
		conds = append(conds, fmt.Sprintf("workflow_id = $%d", len(args)))
	}
	if f.WorkflowType != "" {
		args = append(args, f.WorkflowType)
		conds = append(conds, fmt.Sprintf("workflow_type = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.CreatedAfter != nil {
		args = append(args, *f.CreatedAfter)
		conds = append(conds, fmt.Sprintf("created_at > $%d", len(args)))
	}
	if f.CreatedBefore != nil {
		args = append(args, *f.CreatedBefore)
		conds = append(conds, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	query += limitOffset(f.Page, f.PageSize)
	if err := s.db.Select(&records, query, args...); err != nil {
		return nil, fmt.Errorf("list task records: %w", err)
	}
	return records, nil
}

// SaveAuditEntry appends one row to the audit log.
func (s *PostgresStore) SaveAuditEntry(e models.AuditEntry) (int64, error) {
	var id int64
	err := s.db.QueryRowx(`
		INSERT INTO operation_audit_log
			(operation_type, operation_target, operator, request_data, response_data,
			 status, error_message, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		e.OperationType, e.OperationTarget, e.Operator, e.RequestData, e.ResponseData,
		e.Status, e.ErrorMessage, e.IPAddress, e.UserAgent, e.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save audit entry: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) ListAuditEntries(f models.AuditFilter) ([]models.AuditEntry, error) {
	entries := []models.AuditEntry{}
	query := "SELECT * FROM operation_audit_log"
	var conds []string
	var args []interface{}
	if f.OperationType != "" {
		args = append(args, f.OperationType)
		conds = append(conds, fmt.Sprintf("operation_type = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.CreatedAfter != nil {
		args = append(args, *f.CreatedAfter)
		conds = append(conds, fmt.Sprintf("created_at > $%d", len(args)))
	}
	if f.CreatedBefore != nil {
		args = append(args, *f.CreatedBefore)
		conds = append(conds, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	query += limitOffset(f.Page, f.PageSize)
	if err := s.db.Select(&entries, query, args...); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

func limitOffset(page, pageSize int) string {
	if pageSize <= 0 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
