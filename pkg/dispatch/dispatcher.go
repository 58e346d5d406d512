// Package dispatch talks to the downstream task center, the service that
// actually executes published tasks. The task center is a remote, fallible
// collaborator: every call is bounded by the caller's context and failures
// are classified so the instantiation layer can record them.
package dispatch

import (
	"context"

	"github.com/pkg/errors"

	"github.com/kokoro-ai/taskadmin/pkg/models"
)

var (
	// ErrUnavailable marks transport-level failures: connection refused,
	// timeout, cancelled context. The task center may never have seen the
	// request. Retry is a new instantiation, never automatic.
	ErrUnavailable = errors.New("task center unavailable")
	// ErrRejected marks requests the task center received and refused.
	ErrRejected = errors.New("task center rejected the task")
)

// Request is a fully resolved workflow ready for publication. The embedded
// durations serialize flat, matching the task center's publish contract.
type Request struct {
	WorkflowID   string              `json:"workflow_id"`
	WorkflowType models.WorkflowType `json:"workflow_type"`
	WorkflowSpec models.Document     `json:"workflow_spec"`
	models.PhaseDurations
}

// Dispatcher publishes a resolved workflow downstream and returns the
// acknowledgement payload.
type Dispatcher interface {
	Publish(ctx context.Context, req Request) (models.Document, error)
}
