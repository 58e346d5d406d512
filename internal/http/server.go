package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/kokoro-ai/taskadmin/internal/log"
	"github.com/kokoro-ai/taskadmin/internal/metrics"
	"github.com/kokoro-ai/taskadmin/pkg/dispatch"
	"github.com/kokoro-ai/taskadmin/pkg/models"
	"github.com/kokoro-ai/taskadmin/pkg/service"
	"github.com/kokoro-ai/taskadmin/pkg/storage"
)

// StartServer wires the admin API over the given store and dispatcher and
// blocks serving it.
func StartServer(port string, store storage.Store, dispatcher dispatch.Dispatcher, dispatchTimeout time.Duration) error {
	logger := log.GetLogger()
	audit := service.NewAuditRecorder(store, logger)
	templates := service.NewTemplateService(store, audit, logger)
	resolver := service.NewResolver(store, logger)
	tasks := service.NewTaskService(store, dispatcher, audit, logger, dispatchTimeout)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", HealthHandler)
	mux.HandleFunc("/templates", TemplatesHandler(templates))
	mux.HandleFunc("/templates/", TemplateByNameHandler(templates))
	mux.HandleFunc("/tasks/publish", PublishHandler(resolver, tasks))
	mux.HandleFunc("/tasks/history", HistoryHandler(tasks))
	mux.HandleFunc("/audit", AuditHandler(audit))
	mux.Handle("/metrics", metrics.Handler())

	logger.Infof("Starting taskadmin server on :%s", port)
	return http.ListenAndServe(":"+port, mux)
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("taskadmin server is running"))
}

type templateRequest struct {
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	WorkflowType models.WorkflowType `json:"workflow_type"`
	WorkflowSpec models.Document     `json:"workflow_spec"`
	models.PhaseDurations
}

// TemplatesHandler serves GET /templates (list) and POST /templates (create).
func TemplatesHandler(svc *service.TemplateService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			listTemplatesHTTP(w, r, svc)
		case http.MethodPost:
			createTemplateHTTP(w, r, svc)
		default:
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

func createTemplateHTTP(w http.ResponseWriter, r *http.Request, svc *service.TemplateService) {
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Missing 'name' parameter")
		return
	}
	t, err := svc.Create(service.CreateTemplateRequest{
		Name:         req.Name,
		Description:  req.Description,
		WorkflowType: req.WorkflowType,
		WorkflowSpec: req.WorkflowSpec,
		Durations:    req.PhaseDurations,
		Operator:     operator(r),
	})
	if err != nil {
		log.GetLogger().Errorf("Failed to create template: %v", err)
		writeError(w, statusFor(err), "Failed to create template: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func listTemplatesHTTP(w http.ResponseWriter, r *http.Request, svc *service.TemplateService) {
	f := models.TemplateFilter{
		WorkflowType:    models.WorkflowType(r.URL.Query().Get("workflow_type")),
		IncludeInactive: r.URL.Query().Get("include_inactive") == "true",
	}
	templates, err := svc.List(f)
	if err != nil {
		log.GetLogger().Errorf("Failed to list templates: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list templates: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"templates": templates,
		"total":     len(templates),
	})
}

type templateUpdateRequest struct {
	Name         *string         `json:"name"`
	Description  *string         `json:"description"`
	WorkflowSpec models.Document `json:"workflow_spec"`
	Announcement *string         `json:"announcement_duration"`
	Execution    *string         `json:"execution_duration"`
	Review       *string         `json:"review_duration"`
	Reward       *string         `json:"reward_duration"`
	IsActive     *bool           `json:"is_active"`
}

// TemplateByNameHandler serves GET/PUT/DELETE /templates/{name}.
func TemplateByNameHandler(svc *service.TemplateService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Path[len("/templates/"):]
		if name == "" {
			writeError(w, http.StatusBadRequest, "Missing template name in path")
			return
		}
		switch r.Method {
		case http.MethodGet:
			t, err := svc.Get(name)
			if err != nil {
				writeError(w, statusFor(err), "Failed to get template: "+err.Error())
				return
			}
			writeJSON(w, http.StatusOK, t)
		case http.MethodPut:
			var req templateUpdateRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "Invalid JSON body")
				return
			}
			t, err := svc.Update(name, models.TemplateUpdate{
				Name:         req.Name,
				Description:  req.Description,
				WorkflowSpec: req.WorkflowSpec,
				Announcement: req.Announcement,
				Execution:    req.Execution,
				Review:       req.Review,
				Reward:       req.Reward,
				IsActive:     req.IsActive,
			}, operator(r))
			if err != nil {
				log.GetLogger().Errorf("Failed to update template '%s': %v", name, err)
				writeError(w, statusFor(err), "Failed to update template: "+err.Error())
				return
			}
			writeJSON(w, http.StatusOK, t)
		case http.MethodDelete:
			if err := svc.Deactivate(name, operator(r)); err != nil {
				writeError(w, statusFor(err), "Failed to deactivate template: "+err.Error())
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{
				"message": "Template '" + name + "' deactivated",
			})
		default:
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

type publishRequest struct {
	TemplateName string              `json:"template_name"`
	WorkflowID   string              `json:"workflow_id"`
	WorkflowType models.WorkflowType `json:"workflow_type"`
	WorkflowSpec models.Document     `json:"workflow_spec"`
	models.PhaseDurations
}

// PublishHandler serves POST /tasks/publish: resolve, dispatch, record.
func PublishHandler(resolver *service.Resolver, tasks *service.TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		var req publishRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		resolved, err := resolver.Resolve(service.ResolveRequest{
			TemplateName: req.TemplateName,
			WorkflowType: req.WorkflowType,
			WorkflowSpec: req.WorkflowSpec,
			Durations:    req.PhaseDurations,
		})
		if err != nil {
			log.GetLogger().Errorf("Failed to resolve workflow: %v", err)
			writeError(w, statusFor(err), "Failed to resolve workflow: "+err.Error())
			return
		}
		rec, err := tasks.Instantiate(r.Context(), resolved, req.WorkflowID, operator(r))
		if err != nil {
			log.GetLogger().Errorf("Failed to record instantiation: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to record instantiation: "+err.Error())
			return
		}
		boundaries, err := resolved.Boundaries(rec.CreatedAt)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to compute phase timeline: "+err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"record":           rec,
			"phase_boundaries": boundaries,
		})
	}
}

// HistoryHandler serves GET /tasks/history with status/type/time filters.
func HistoryHandler(tasks *service.TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		q := r.URL.Query()
		f := models.TaskRecordFilter{
			WorkflowID:   q.Get("workflow_id"),
			WorkflowType: models.WorkflowType(q.Get("workflow_type")),
			Status:       models.TaskStatus(q.Get("status")),
			Page:         intParam(q.Get("page"), 1),
			PageSize:     intParam(q.Get("page_size"), 20),
		}
		var err error
		if f.CreatedAfter, err = timeParam(q.Get("created_after")); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'created_after' parameter")
			return
		}
		if f.CreatedBefore, err = timeParam(q.Get("created_before")); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'created_before' parameter")
			return
		}
		records, err := tasks.History(f)
		if err != nil {
			log.GetLogger().Errorf("Failed to list history: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to list history: "+err.Error())
			return
		}
		now := time.Now()
		items := make([]map[string]interface{}, 0, len(records))
		for _, rec := range records {
			item := map[string]interface{}{"record": rec}
			if phase, perr := tasks.Phase(rec, now); perr == nil {
				item["current_phase"] = phase
			}
			items = append(items, item)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"history": items,
			"pagination": map[string]int{
				"page":      f.Page,
				"page_size": f.PageSize,
			},
		})
	}
}

// AuditHandler serves GET /audit.
func AuditHandler(audit *service.AuditRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		q := r.URL.Query()
		f := models.AuditFilter{
			OperationType: q.Get("operation_type"),
			Status:        models.AuditStatus(q.Get("status")),
			Page:          intParam(q.Get("page"), 1),
			PageSize:      intParam(q.Get("page_size"), 20),
		}
		var err error
		if f.CreatedAfter, err = timeParam(q.Get("created_after")); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'created_after' parameter")
			return
		}
		if f.CreatedBefore, err = timeParam(q.Get("created_before")); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'created_before' parameter")
			return
		}
		entries, err := audit.Query(f)
		if err != nil {
			log.GetLogger().Errorf("Failed to list audit entries: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to list audit entries: "+err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"entries": entries,
			"pagination": map[string]int{
				"page":      f.Page,
				"page_size": f.PageSize,
			},
		})
	}
}

func operator(r *http.Request) string {
	if op := r.Header.Get("X-Operator"); op != "" {
		return op
	}
	return "admin"
}

func statusFor(err error) int {
	var invalid *service.InvalidSpecError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrDuplicateName):
		return http.StatusConflict
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func intParam(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func timeParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.GetLogger().Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
