package dispatch

import (
	"context"
	"sync"

	"github.com/kokoro-ai/taskadmin/pkg/models"
)

// MockDispatcher is a configurable in-memory Dispatcher for tests. It records
// every request it sees.
type MockDispatcher struct {
	mu       sync.Mutex
	requests []Request

	// PublishFunc, when set, decides the outcome of each Publish call.
	PublishFunc func(ctx context.Context, req Request) (models.Document, error)
}

func NewMockDispatcher() *MockDispatcher {
	return &MockDispatcher{}
}

func (m *MockDispatcher) Publish(ctx context.Context, req Request) (models.Document, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, req)
	}
	return models.Document{"status": "announcement", "workflow_id": req.WorkflowID}, nil
}

// Requests returns a copy of every request published so far.
func (m *MockDispatcher) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}
