package service

import (
	"time"

	"github.com/pkg/errors"

	"github.com/kokoro-ai/taskadmin/internal/metrics"
	"github.com/kokoro-ai/taskadmin/pkg/models"
	"github.com/kokoro-ai/taskadmin/pkg/storage"
)

// TemplateService owns the template rows: named, versioned-by-convention
// workflow defaults. Templates are soft-deleted only, so a name is reserved
// for the lifetime of the system.
type TemplateService struct {
	store  storage.Store
	audit  *AuditRecorder
	logger Logger
}

func NewTemplateService(store storage.Store, audit *AuditRecorder, logger Logger) *TemplateService {
	return &TemplateService{store: store, audit: audit, logger: logger}
}

// CreateTemplateRequest carries the fields of a new template. Omitted
// durations fall back to the platform defaults.
type CreateTemplateRequest struct {
	Name         string
	Description  string
	WorkflowType models.WorkflowType
	WorkflowSpec models.Document
	Durations    models.PhaseDurations
	Operator     string
}

// Create inserts a new template. The name must be unique across every
// template ever created, active or inactive; a collision yields
// storage.ErrDuplicateName and never overwrites.
func (s *TemplateService) Create(req CreateTemplateRequest) (t models.TaskTemplate, err error) {
	defer func() { metrics.CountTemplateOp("create", err) }()
	defer func() {
		s.audit.Record(auditFor(models.OpTemplateCreate, req.Name, req.Operator,
			models.Document{"workflow_type": string(req.WorkflowType)}, err))
	}()

	if req.Name == "" {
		return models.TaskTemplate{}, invalidSpec("name", "required")
	}
	if len(req.Name) > 100 {
		return models.TaskTemplate{}, invalidSpec("name", "too long (max 100 characters)")
	}
	if !req.WorkflowType.Valid() {
		return models.TaskTemplate{}, invalidSpec("workflow_type", "unrecognized value")
	}
	durations := mergeDurations(models.DefaultPhaseDurations(), req.Durations)
	if err := validateDurations(durations); err != nil {
		return models.TaskTemplate{}, err
	}
	spec := req.WorkflowSpec
	if spec == nil {
		spec = models.Document{}
	}

	txStore, err := s.store.Begin()
	if err != nil {
		return models.TaskTemplate{}, errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				s.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			s.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()

	now := time.Now()
	t = models.TaskTemplate{
		Name:           req.Name,
		Description:    req.Description,
		WorkflowType:   req.WorkflowType,
		WorkflowSpec:   spec,
		PhaseDurations: durations,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	id, err := txStore.SaveTemplate(t)
	if err != nil {
		return models.TaskTemplate{}, err
	}
	t.ID = id
	s.logger.Infof("Created template '%s' with ID %d", t.Name, id)
	return t, nil
}

// Get fetches a template by name, active or not.
func (s *TemplateService) Get(name string) (models.TaskTemplate, error) {
	return s.store.GetTemplate(name)
}

// List returns templates newest first. The zero filter lists active
// templates of every workflow type.
func (s *TemplateService) List(f models.TemplateFilter) ([]models.TaskTemplate, error) {
	return s.store.ListTemplates(f)
}

// Update applies a partial mutation to an existing template. Mutating
// workflow_spec after tasks have been instantiated from the template does not
// touch those tasks (resolution snapshots the spec), but it does change what
// future instantiations get; prefer creating a new template over editing one
// that has been used.
func (s *TemplateService) Update(name string, upd models.TemplateUpdate, operator string) (t models.TaskTemplate, err error) {
	defer func() { metrics.CountTemplateOp("update", err) }()
	defer func() {
		s.audit.Record(auditFor(models.OpTemplateUpdate, name, operator, nil, err))
	}()

	t, err = s.store.GetTemplate(name)
	if err != nil {
		return models.TaskTemplate{}, err
	}

	if upd.Name != nil {
		if *upd.Name == "" {
			return models.TaskTemplate{}, invalidSpec("name", "cannot be empty")
		}
		t.Name = *upd.Name
	}
	if upd.Description != nil {
		t.Description = *upd.Description
	}
	if upd.WorkflowSpec != nil {
		t.WorkflowSpec = upd.WorkflowSpec
	}
	if upd.Announcement != nil {
		t.Announcement = *upd.Announcement
	}
	if upd.Execution != nil {
		t.Execution = *upd.Execution
	}
	if upd.Review != nil {
		t.Review = *upd.Review
	}
	if upd.Reward != nil {
		t.Reward = *upd.Reward
	}
	if upd.IsActive != nil {
		t.IsActive = *upd.IsActive
	}
	if err := validateDurations(t.PhaseDurations); err != nil {
		return models.TaskTemplate{}, err
	}

	txStore, err := s.store.Begin()
	if err != nil {
		return models.TaskTemplate{}, errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				s.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			s.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()

	if err = txStore.UpdateTemplate(t); err != nil {
		return models.TaskTemplate{}, err
	}
	s.logger.Infof("Updated template '%s' (ID %d)", t.Name, t.ID)
	return t, nil
}

// Deactivate soft-deletes a template. Deactivating an already-inactive
// template is a no-op, not an error; the name stays reserved either way.
func (s *TemplateService) Deactivate(name, operator string) (err error) {
	defer func() { metrics.CountTemplateOp("deactivate", err) }()
	defer func() {
		s.audit.Record(auditFor(models.OpTemplateDeactivate, name, operator, nil, err))
	}()

	if err = s.store.DeactivateTemplate(name); err != nil {
		return err
	}
	s.logger.Infof("Deactivated template '%s'", name)
	return nil
}

func auditFor(opType, target, operator string, requestData models.Document, err error) models.AuditEntry {
	entry := models.AuditEntry{
		OperationType:   opType,
		OperationTarget: target,
		Operator:        operator,
		RequestData:     requestData,
		Status:          models.SuccessAuditStatus,
		CreatedAt:       time.Now(),
	}
	if err != nil {
		entry.Status = models.FailedAuditStatus
		entry.ErrorMessage = err.Error()
	}
	return entry
}
