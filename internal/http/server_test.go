package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	internal_http "github.com/kokoro-ai/taskadmin/internal/http"
	"github.com/kokoro-ai/taskadmin/internal/log"
	"github.com/kokoro-ai/taskadmin/pkg/dispatch"
	"github.com/kokoro-ai/taskadmin/pkg/models"
	"github.com/kokoro-ai/taskadmin/pkg/service"
	"github.com/kokoro-ai/taskadmin/pkg/storage"
)

type testEnv struct {
	server     *httptest.Server
	store      storage.Store
	dispatcher *dispatch.MockDispatcher
}

func newTestEnv() *testEnv {
	logger := log.GetLogger()
	store := storage.NewMockStore()
	dispatcher := dispatch.NewMockDispatcher()
	audit := service.NewAuditRecorder(store, logger)
	templates := service.NewTemplateService(store, audit, logger)
	resolver := service.NewResolver(store, logger)
	tasks := service.NewTaskService(store, dispatcher, audit, logger, 0)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", internal_http.HealthHandler)
	mux.HandleFunc("/templates", internal_http.TemplatesHandler(templates))
	mux.HandleFunc("/templates/", internal_http.TemplateByNameHandler(templates))
	mux.HandleFunc("/tasks/publish", internal_http.PublishHandler(resolver, tasks))
	mux.HandleFunc("/tasks/history", internal_http.HistoryHandler(tasks))
	mux.HandleFunc("/audit", internal_http.AuditHandler(audit))
	return &testEnv{
		server:     httptest.NewServer(mux),
		store:      store,
		dispatcher: dispatcher,
	}
}

func (e *testEnv) close() { e.server.Close() }

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		assert.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	assert.NoError(t, err)
	req.Header.Set("X-Operator", "tester")
	resp, err := http.DefaultClient.Do(req)
	assert.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	if len(raw) > 0 && json.Unmarshal(raw, &decoded) != nil {
		decoded = map[string]interface{}{"raw": string(raw)}
	}
	return resp, decoded
}

func createTemplateBody(name string) map[string]interface{} {
	return map[string]interface{}{
		"name":          name,
		"workflow_type": "text_lora_creation",
		"workflow_spec": map[string]interface{}{
			"theme": "japanese_culture_chat",
		},
		"execution_duration": "2.0",
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv()
	defer env.close()

	resp, err := http.Get(env.server.URL + "/health")
	assert.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "taskadmin server is running", string(body))
}

func TestTemplateEndpoints(t *testing.T) {
	env := newTestEnv()
	defer env.close()

	t.Run("create", func(t *testing.T) {
		resp, body := env.do(t, http.MethodPost, "/templates", createTemplateBody("text_basic"))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text_basic", body["name"])
		// Omitted durations fall back to defaults; the override sticks.
		assert.Equal(t, "2.0", body["execution_duration"])
		assert.Equal(t, "0.25", body["announcement_duration"])
		assert.Equal(t, true, body["is_active"])
	})

	t.Run("duplicate name conflicts", func(t *testing.T) {
		resp, body := env.do(t, http.MethodPost, "/templates", createTemplateBody("text_basic"))
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Contains(t, body["error"], "name already exists")
	})

	t.Run("invalid workflow type is a bad request", func(t *testing.T) {
		req := createTemplateBody("bad_type")
		req["workflow_type"] = "video_lora_creation"
		resp, _ := env.do(t, http.MethodPost, "/templates", req)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("get by name", func(t *testing.T) {
		resp, body := env.do(t, http.MethodGet, "/templates/text_basic", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text_basic", body["name"])
	})

	t.Run("get unknown is 404", func(t *testing.T) {
		resp, _ := env.do(t, http.MethodGet, "/templates/missing", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("update", func(t *testing.T) {
		resp, body := env.do(t, http.MethodPut, "/templates/text_basic", map[string]interface{}{
			"description":     "tuned",
			"review_duration": "2.0",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "tuned", body["description"])
		assert.Equal(t, "2.0", body["review_duration"])
	})

	t.Run("list", func(t *testing.T) {
		resp, body := env.do(t, http.MethodGet, "/templates", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(1), body["total"])
	})

	t.Run("deactivate then list excludes it", func(t *testing.T) {
		resp, _ := env.do(t, http.MethodDelete, "/templates/text_basic", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		_, body := env.do(t, http.MethodGet, "/templates", nil)
		assert.Equal(t, float64(0), body["total"])
		_, body = env.do(t, http.MethodGet, "/templates?include_inactive=true", nil)
		assert.Equal(t, float64(1), body["total"])
	})
}

func TestPublishEndpoint(t *testing.T) {
	env := newTestEnv()
	defer env.close()
	resp, _ := env.do(t, http.MethodPost, "/templates", createTemplateBody("text_basic"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	t.Run("publish from template", func(t *testing.T) {
		resp, body := env.do(t, http.MethodPost, "/tasks/publish", map[string]interface{}{
			"template_name": "text_basic",
			"workflow_id":   "wf-1",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		rec := body["record"].(map[string]interface{})
		assert.Equal(t, "wf-1", rec["workflow_id"])
		assert.Equal(t, "success", rec["status"])
		assert.Equal(t, "tester", rec["created_by"])
		boundaries := body["phase_boundaries"].(map[string]interface{})
		assert.NotEmpty(t, boundaries["announcement_end"])
		assert.Len(t, env.dispatcher.Requests(), 1)
	})

	t.Run("dispatch failure still returns the record", func(t *testing.T) {
		env.dispatcher.PublishFunc = func(ctx context.Context, req dispatch.Request) (models.Document, error) {
			return nil, dispatch.ErrUnavailable
		}
		defer func() { env.dispatcher.PublishFunc = nil }()

		resp, body := env.do(t, http.MethodPost, "/tasks/publish", map[string]interface{}{
			"template_name": "text_basic",
			"workflow_id":   "wf-down",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		rec := body["record"].(map[string]interface{})
		assert.Equal(t, "failed", rec["status"])
		assert.NotEmpty(t, rec["error_message"])
	})

	t.Run("unknown template is 404 and records nothing", func(t *testing.T) {
		before := len(env.dispatcher.Requests())
		resp, _ := env.do(t, http.MethodPost, "/tasks/publish", map[string]interface{}{
			"template_name": "missing",
		})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Len(t, env.dispatcher.Requests(), before)
	})

	t.Run("invalid durations are a bad request", func(t *testing.T) {
		resp, _ := env.do(t, http.MethodPost, "/tasks/publish", map[string]interface{}{
			"template_name":   "text_basic",
			"review_duration": "-1",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestHistoryEndpoint(t *testing.T) {
	env := newTestEnv()
	defer env.close()
	resp, _ := env.do(t, http.MethodPost, "/templates", createTemplateBody("text_basic"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	for i := 0; i < 3; i++ {
		resp, _ := env.do(t, http.MethodPost, "/tasks/publish", map[string]interface{}{
			"template_name": "text_basic",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	t.Run("lists attempts with current phase", func(t *testing.T) {
		resp, body := env.do(t, http.MethodGet, "/tasks/history", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		history := body["history"].([]interface{})
		assert.Len(t, history, 3)
		first := history[0].(map[string]interface{})
		assert.Equal(t, "announcement", first["current_phase"])
	})

	t.Run("pagination metadata", func(t *testing.T) {
		_, body := env.do(t, http.MethodGet, "/tasks/history?page=2&page_size=2", nil)
		history := body["history"].([]interface{})
		assert.Len(t, history, 1)
		pagination := body["pagination"].(map[string]interface{})
		assert.Equal(t, float64(2), pagination["page"])
	})

	t.Run("invalid time filter is a bad request", func(t *testing.T) {
		resp, _ := env.do(t, http.MethodGet, "/tasks/history?created_after=yesterday", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAuditEndpoint(t *testing.T) {
	env := newTestEnv()
	defer env.close()
	resp, _ := env.do(t, http.MethodPost, "/templates", createTemplateBody("text_basic"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/tasks/publish", map[string]interface{}{
		"template_name": "text_basic",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	t.Run("lists operations newest first", func(t *testing.T) {
		resp, body := env.do(t, http.MethodGet, "/audit", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		entries := body["entries"].([]interface{})
		assert.Len(t, entries, 2)
		first := entries[0].(map[string]interface{})
		assert.Equal(t, "task_publish", first["operation_type"])
		assert.Equal(t, "tester", first["operator"])
	})

	t.Run("filter by operation type", func(t *testing.T) {
		_, body := env.do(t, http.MethodGet, "/audit?operation_type=template_create", nil)
		entries := body["entries"].([]interface{})
		assert.Len(t, entries, 1)
	})
}
