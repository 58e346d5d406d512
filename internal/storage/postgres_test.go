package storage_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	internal_storage "github.com/kokoro-ai/taskadmin/internal/storage"
	"github.com/kokoro-ai/taskadmin/internal/testutil"
	"github.com/kokoro-ai/taskadmin/pkg/models"
	"github.com/kokoro-ai/taskadmin/pkg/storage"
)

func TestPostgresStore(t *testing.T) {
	testDB := testutil.SetupTestDB(t)
	defer testDB.Teardown(t)

	// Helper to create a transactional store
	newTxStore := func(t *testing.T) storage.Store {
		store, err := internal_storage.NewPostgresStore(testDB.ConnStr)
		assert.NoError(t, err)
		txStore, err := store.Begin()
		assert.NoError(t, err)
		t.Cleanup(func() { _ = txStore.Rollback() })
		return txStore
	}

	newTemplate := func(name string) models.TaskTemplate {
		now := time.Now()
		return models.TaskTemplate{
			Name:         name,
			Description:  "test template",
			WorkflowType: models.TextLoraCreation,
			WorkflowSpec: models.Document{
				"theme": "japanese_culture_chat",
				"training_spec": map[string]interface{}{
					"base_model": "Qwen/Qwen3-0.6B",
				},
			},
			PhaseDurations: models.DefaultPhaseDurations(),
			IsActive:       true,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	}

	t.Run("SaveTemplate and GetTemplate", func(t *testing.T) {
		store := newTxStore(t)
		id, err := store.SaveTemplate(newTemplate("save_get"))
		assert.NoError(t, err)
		assert.Greater(t, id, int64(0))

		saved, err := store.GetTemplate("save_get")
		assert.NoError(t, err)
		assert.Equal(t, id, saved.ID)
		assert.Equal(t, "japanese_culture_chat", saved.WorkflowSpec["theme"])
		assert.Equal(t, "0.25", saved.Announcement)
		assert.True(t, saved.IsActive)
	})

	t.Run("SaveTemplate rejects duplicate names", func(t *testing.T) {
		store := newTxStore(t)
		_, err := store.SaveTemplate(newTemplate("dup"))
		assert.NoError(t, err)
		_, err = store.SaveTemplate(newTemplate("dup"))
		assert.ErrorIs(t, err, storage.ErrDuplicateName)
	})

	t.Run("GetTemplate returns ErrNotFound", func(t *testing.T) {
		store := newTxStore(t)
		_, err := store.GetTemplate("missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("ListTemplates filters by type and activity", func(t *testing.T) {
		store := newTxStore(t)
		text := newTemplate("list_text")
		_, err := store.SaveTemplate(text)
		assert.NoError(t, err)
		image := newTemplate("list_image")
		image.WorkflowType = models.ImageLoraCreation
		_, err = store.SaveTemplate(image)
		assert.NoError(t, err)
		assert.NoError(t, store.DeactivateTemplate("list_text"))

		active, err := store.ListTemplates(models.TemplateFilter{})
		assert.NoError(t, err)
		assert.Len(t, active, 1)
		assert.Equal(t, "list_image", active[0].Name)

		all, err := store.ListTemplates(models.TemplateFilter{IncludeInactive: true})
		assert.NoError(t, err)
		assert.Len(t, all, 2)

		images, err := store.ListTemplates(models.TemplateFilter{WorkflowType: models.ImageLoraCreation})
		assert.NoError(t, err)
		assert.Len(t, images, 1)
	})

	t.Run("UpdateTemplate", func(t *testing.T) {
		store := newTxStore(t)
		id, err := store.SaveTemplate(newTemplate("upd"))
		assert.NoError(t, err)

		tpl, err := store.GetTemplate("upd")
		assert.NoError(t, err)
		tpl.Description = "changed"
		tpl.Execution = "6.0"
		assert.NoError(t, store.UpdateTemplate(tpl))

		saved, err := store.GetTemplate("upd")
		assert.NoError(t, err)
		assert.Equal(t, id, saved.ID)
		assert.Equal(t, "changed", saved.Description)
		assert.Equal(t, "6.0", saved.Execution)

		tpl.ID = 999999
		assert.ErrorIs(t, store.UpdateTemplate(tpl), storage.ErrNotFound)
	})

	t.Run("DeactivateTemplate is idempotent", func(t *testing.T) {
		store := newTxStore(t)
		_, err := store.SaveTemplate(newTemplate("deact"))
		assert.NoError(t, err)

		assert.NoError(t, store.DeactivateTemplate("deact"))
		assert.NoError(t, store.DeactivateTemplate("deact"))
		tpl, err := store.GetTemplate("deact")
		assert.NoError(t, err)
		assert.False(t, tpl.IsActive)

		assert.ErrorIs(t, store.DeactivateTemplate("missing"), storage.ErrNotFound)
	})

	newRecord := func(workflowID string, status models.TaskStatus, createdAt time.Time) models.TaskRecord {
		return models.TaskRecord{
			WorkflowID:     workflowID,
			WorkflowType:   models.TextLoraCreation,
			WorkflowSpec:   models.Document{"theme": "japanese_culture_chat"},
			PhaseDurations: models.DefaultPhaseDurations(),
			CreatedBy:      "tester",
			Status:         status,
			IsSuccess:      status == models.SuccessTaskStatus,
			CreatedAt:      createdAt,
		}
	}

	t.Run("SaveTaskRecord allows repeated workflow IDs", func(t *testing.T) {
		store := newTxStore(t)
		now := time.Now()
		id1, err := store.SaveTaskRecord(newRecord("wf-retry", models.FailedTaskStatus, now))
		assert.NoError(t, err)
		id2, err := store.SaveTaskRecord(newRecord("wf-retry", models.SuccessTaskStatus, now.Add(time.Second)))
		assert.NoError(t, err)
		assert.NotEqual(t, id1, id2)

		records, err := store.ListTaskRecords(models.TaskRecordFilter{WorkflowID: "wf-retry"})
		assert.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("GetTaskRecord", func(t *testing.T) {
		store := newTxStore(t)
		rec := newRecord("wf-get", models.FailedTaskStatus, time.Now())
		rec.ErrorMessage = "task center unavailable"
		id, err := store.SaveTaskRecord(rec)
		assert.NoError(t, err)

		saved, err := store.GetTaskRecord(id)
		assert.NoError(t, err)
		assert.Equal(t, "wf-get", saved.WorkflowID)
		assert.Equal(t, "task center unavailable", saved.ErrorMessage)
		assert.False(t, saved.IsSuccess)

		_, err = store.GetTaskRecord(999999)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("ListTaskRecords orders newest first and paginates", func(t *testing.T) {
		store := newTxStore(t)
		base := time.Now().Add(-time.Hour)
		for i := 0; i < 5; i++ {
			_, err := store.SaveTaskRecord(newRecord("wf-page", models.SuccessTaskStatus, base.Add(time.Duration(i)*time.Minute)))
			assert.NoError(t, err)
		}

		records, err := store.ListTaskRecords(models.TaskRecordFilter{WorkflowID: "wf-page"})
		assert.NoError(t, err)
		assert.Len(t, records, 5)
		assert.True(t, records[0].CreatedAt.After(records[4].CreatedAt))

		page2, err := store.ListTaskRecords(models.TaskRecordFilter{WorkflowID: "wf-page", Page: 2, PageSize: 3})
		assert.NoError(t, err)
		assert.Len(t, page2, 2)
	})

	t.Run("ListTaskRecords filters by status and time window", func(t *testing.T) {
		store := newTxStore(t)
		base := time.Now().Add(-time.Hour)
		_, err := store.SaveTaskRecord(newRecord("wf-filter", models.SuccessTaskStatus, base))
		assert.NoError(t, err)
		_, err = store.SaveTaskRecord(newRecord("wf-filter", models.FailedTaskStatus, base.Add(10*time.Minute)))
		assert.NoError(t, err)

		failed, err := store.ListTaskRecords(models.TaskRecordFilter{WorkflowID: "wf-filter", Status: models.FailedTaskStatus})
		assert.NoError(t, err)
		assert.Len(t, failed, 1)

		cutoff := base.Add(5 * time.Minute)
		recent, err := store.ListTaskRecords(models.TaskRecordFilter{WorkflowID: "wf-filter", CreatedAfter: &cutoff})
		assert.NoError(t, err)
		assert.Len(t, recent, 1)
		assert.Equal(t, models.FailedTaskStatus, recent[0].Status)
	})

	t.Run("SaveAuditEntry and ListAuditEntries", func(t *testing.T) {
		store := newTxStore(t)
		now := time.Now()
		_, err := store.SaveAuditEntry(models.AuditEntry{
			OperationType:   models.OpTemplateCreate,
			OperationTarget: "text_basic",
			Operator:        "tester",
			RequestData:     models.Document{"workflow_type": "text_lora_creation"},
			Status:          models.SuccessAuditStatus,
			CreatedAt:       now,
		})
		assert.NoError(t, err)
		_, err = store.SaveAuditEntry(models.AuditEntry{
			OperationType:   models.OpTaskPublish,
			OperationTarget: "wf-1",
			Operator:        "tester",
			Status:          models.FailedAuditStatus,
			ErrorMessage:    "task center unavailable",
			CreatedAt:       now.Add(time.Second),
		})
		assert.NoError(t, err)

		all, err := store.ListAuditEntries(models.AuditFilter{})
		assert.NoError(t, err)
		assert.Len(t, all, 2)
		assert.Equal(t, models.OpTaskPublish, all[0].OperationType)

		failed, err := store.ListAuditEntries(models.AuditFilter{Status: models.FailedAuditStatus})
		assert.NoError(t, err)
		assert.Len(t, failed, 1)
		assert.Equal(t, "task center unavailable", failed[0].ErrorMessage)
	})
}
