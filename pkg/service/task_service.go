package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kokoro-ai/taskadmin/internal/metrics"
	"github.com/kokoro-ai/taskadmin/pkg/dispatch"
	"github.com/kokoro-ai/taskadmin/pkg/models"
	"github.com/kokoro-ai/taskadmin/pkg/schedule"
	"github.com/kokoro-ai/taskadmin/pkg/storage"
)

// DefaultDispatchTimeout bounds the task center call when the caller does
// not configure one.
const DefaultDispatchTimeout = 30 * time.Second

// TaskService instantiates tasks: it dispatches a resolved workflow to the
// task center and guarantees the attempt lands in the history ledger exactly
// once, whatever the dispatch outcome. It never retries on its own; a retry
// is a caller-initiated new instantiation producing a new record, which keeps
// the ledger a 1:1 map of attempts.
type TaskService struct {
	store      storage.Store
	dispatcher dispatch.Dispatcher
	audit      *AuditRecorder
	logger     Logger
	timeout    time.Duration
}

func NewTaskService(store storage.Store, dispatcher dispatch.Dispatcher, audit *AuditRecorder, logger Logger, timeout time.Duration) *TaskService {
	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}
	return &TaskService{
		store:      store,
		dispatcher: dispatcher,
		audit:      audit,
		logger:     logger,
		timeout:    timeout,
	}
}

// Instantiate publishes a resolved workflow and records the attempt.
//
// The returned error covers only the recording itself (persistence failure);
// dispatch failures are not errors of this call. They are captured in the
// record's status, is_success and error_message fields so the caller can
// correlate and decide whether to retry. Even a cancelled context still gets
// its failed record before the call returns.
func (s *TaskService) Instantiate(ctx context.Context, resolved ResolvedWorkflow, workflowID, createdBy string) (models.TaskRecord, error) {
	if workflowID == "" {
		workflowID = uuid.NewString()
	}

	req := dispatch.Request{
		WorkflowID:     workflowID,
		WorkflowType:   resolved.WorkflowType,
		WorkflowSpec:   resolved.WorkflowSpec,
		PhaseDurations: resolved.Durations,
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	ack, dispatchErr := s.dispatcher.Publish(dispatchCtx, req)
	metrics.ObserveDispatch(time.Since(started), dispatchErr)

	rec := models.TaskRecord{
		WorkflowID:     workflowID,
		WorkflowType:   resolved.WorkflowType,
		WorkflowSpec:   resolved.WorkflowSpec,
		PhaseDurations: resolved.Durations,
		CreatedBy:      createdBy,
		CreatedAt:      time.Now(),
	}
	if dispatchErr != nil {
		rec.Status = models.FailedTaskStatus
		rec.IsSuccess = false
		rec.ErrorMessage = dispatchErr.Error()
		s.logger.Errorf("Dispatch failed for workflow %s: %v", workflowID, dispatchErr)
	} else {
		rec.Status = models.SuccessTaskStatus
		rec.IsSuccess = true
		rec.DownstreamResponse = ack
	}

	id, err := s.appendRecord(rec)
	if err != nil {
		// The primary write failed; this is the one case where the caller
		// gets an error instead of a record.
		return models.TaskRecord{}, errors.Wrapf(err, "record instantiation attempt for workflow %s", workflowID)
	}
	rec.ID = id
	metrics.CountInstantiation(string(rec.Status))

	s.audit.Record(auditFor(models.OpTaskPublish, workflowID, createdBy,
		models.Document{"workflow_type": string(resolved.WorkflowType)}, dispatchErr))

	s.logger.Infof("Recorded instantiation attempt %d for workflow %s (status %s)", id, workflowID, rec.Status)
	return rec, nil
}

func (s *TaskService) appendRecord(rec models.TaskRecord) (id int64, err error) {
	txStore, err := s.store.Begin()
	if err != nil {
		return 0, errors.Wrap(err, "begin transaction")
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

	id, err = txStore.SaveTaskRecord(rec)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Get fetches a single attempt record by ID.
func (s *TaskService) Get(id int64) (models.TaskRecord, error) {
	return s.store.GetTaskRecord(id)
}

// History returns attempt records newest first, paginated.
func (s *TaskService) History(f models.TaskRecordFilter) ([]models.TaskRecord, error) {
	return s.store.ListTaskRecords(f)
}

// Phase computes which phase a recorded task is in at the given instant,
// derived from its creation time and stored durations. Phase membership is
// always computed on demand; no timer drives transitions.
func (s *TaskService) Phase(rec models.TaskRecord, now time.Time) (schedule.Phase, error) {
	days, err := rec.PhaseDurations.Days()
	if err != nil {
		return "", errors.Wrapf(err, "durations of record %d", rec.ID)
	}
	return schedule.CurrentPhase(now, schedule.PhaseBoundaries(rec.CreatedAt, days)), nil
}
