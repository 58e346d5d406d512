package service

import (
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/kokoro-ai/taskadmin/pkg/models"
	"github.com/kokoro-ai/taskadmin/pkg/schedule"
	"github.com/kokoro-ai/taskadmin/pkg/storage"
)

// ResolvedWorkflow is a fully concrete, template-independent workflow ready
// for dispatch. It holds no template reference: once resolved, later template
// mutation cannot retroactively alter an in-flight task.
type ResolvedWorkflow struct {
	WorkflowType models.WorkflowType
	WorkflowSpec models.Document
	Durations    models.PhaseDurations
}

// Boundaries computes the phase timeline of a task started at start.
func (rw ResolvedWorkflow) Boundaries(start time.Time) (schedule.Boundaries, error) {
	days, err := rw.Durations.Days()
	if err != nil {
		return schedule.Boundaries{}, err
	}
	return schedule.PhaseBoundaries(start, days), nil
}

// ResolveRequest describes what the caller wants instantiated: either a
// template name with optional overrides, or a fully inline spec.
type ResolveRequest struct {
	TemplateName string
	WorkflowType models.WorkflowType
	WorkflowSpec models.Document
	// Overrides; empty duration fields fall back to the template's defaults.
	Durations models.PhaseDurations
}

// Resolver reconciles caller overrides against template defaults.
type Resolver struct {
	store  storage.Store
	logger Logger
}

func NewResolver(store storage.Store, logger Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// Resolve produces a fully specified workflow. With a template name, the
// override spec is deep-merged onto the template's spec (override keys win at
// the leaf level) and duration overrides apply per field. Without one, the
// request must stand on its own: a recognized workflow type and four
// non-negative durations.
func (r *Resolver) Resolve(req ResolveRequest) (ResolvedWorkflow, error) {
	if req.TemplateName == "" {
		return r.resolveInline(req)
	}

	t, err := r.store.GetTemplate(req.TemplateName)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ResolvedWorkflow{}, errors.Wrapf(storage.ErrNotFound, "template %q", req.TemplateName)
		}
		return ResolvedWorkflow{}, errors.Wrapf(err, "load template %q", req.TemplateName)
	}
	if !t.IsActive {
		return ResolvedWorkflow{}, invalidSpec("template_name", "template is deactivated")
	}
	if req.WorkflowType != "" && req.WorkflowType != t.WorkflowType {
		return ResolvedWorkflow{}, invalidSpec("workflow_type", "does not match template workflow type")
	}

	resolved := ResolvedWorkflow{
		WorkflowType: t.WorkflowType,
		WorkflowSpec: t.WorkflowSpec.Merge(req.WorkflowSpec),
		Durations:    mergeDurations(t.PhaseDurations, req.Durations),
	}
	if err := validateDurations(resolved.Durations); err != nil {
		return ResolvedWorkflow{}, err
	}
	r.logger.Infof("Resolved workflow from template '%s' (type %s)", t.Name, t.WorkflowType)
	return resolved, nil
}

func (r *Resolver) resolveInline(req ResolveRequest) (ResolvedWorkflow, error) {
	if req.WorkflowType == "" {
		return ResolvedWorkflow{}, invalidSpec("workflow_type", "required when no template is given")
	}
	if !req.WorkflowType.Valid() {
		return ResolvedWorkflow{}, invalidSpec("workflow_type", "unrecognized value "+strconv.Quote(string(req.WorkflowType)))
	}
	if err := validateDurations(req.Durations); err != nil {
		return ResolvedWorkflow{}, err
	}
	spec := req.WorkflowSpec
	if spec == nil {
		spec = models.Document{}
	}
	return ResolvedWorkflow{
		WorkflowType: req.WorkflowType,
		WorkflowSpec: spec,
		Durations:    req.Durations,
	}, nil
}

func mergeDurations(base, override models.PhaseDurations) models.PhaseDurations {
	out := base
	if override.Announcement != "" {
		out.Announcement = override.Announcement
	}
	if override.Execution != "" {
		out.Execution = override.Execution
	}
	if override.Review != "" {
		out.Review = override.Review
	}
	if override.Reward != "" {
		out.Reward = override.Reward
	}
	return out
}

func validateDurations(d models.PhaseDurations) error {
	fields := []struct{ name, raw string }{
		{"announcement_duration", d.Announcement},
		{"execution_duration", d.Execution},
		{"review_duration", d.Review},
		{"reward_duration", d.Reward},
	}
	for _, f := range fields {
		if f.raw == "" {
			return invalidSpec(f.name, "required")
		}
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return invalidSpec(f.name, "not a decimal day-count: "+strconv.Quote(f.raw))
		}
		if v < 0 {
			return invalidSpec(f.name, "must be non-negative")
		}
	}
	return nil
}
