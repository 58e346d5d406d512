package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/kokoro-ai/taskadmin/pkg/models"
)

const publishPath = "/v1/tasks/publish"

// Logger is the minimal logging surface the client needs.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// HTTPDispatcher publishes tasks to the task center over HTTP. Timeouts are
// owned by the caller's context; the embedded http.Client carries no timeout
// of its own so a single bound applies.
type HTTPDispatcher struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  Logger
}

func NewHTTPDispatcher(baseURL, apiKey string, logger Logger) *HTTPDispatcher {
	return &HTTPDispatcher{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{},
		logger:  logger,
	}
}

// Publish POSTs the resolved workflow to the task center. Transport errors
// and timeouts wrap ErrUnavailable; non-2xx responses wrap ErrRejected with
// the response body as context.
func (d *HTTPDispatcher) Publish(ctx context.Context, req Request) (models.Document, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "encode publish request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+publishPath, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build publish request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		httpReq.Header.Set("X-API-Key", d.apiKey)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		d.logger.Errorf("Task center call failed for workflow %s: %v", req.WorkflowID, err)
		return nil, errors.Wrapf(ErrUnavailable, "publish workflow %s: %v", req.WorkflowID, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "read task center response for workflow %s: %v", req.WorkflowID, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.logger.Errorf("Task center rejected workflow %s: %d - %s", req.WorkflowID, resp.StatusCode, respBody)
		return nil, errors.Wrapf(ErrRejected, "status %d: %s", resp.StatusCode, respBody)
	}

	var ack models.Document
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &ack); err != nil {
			// A 2xx with an unparseable body still counts as acknowledged;
			// keep the raw payload for the audit trail.
			ack = models.Document{"raw": string(respBody)}
		}
	}
	d.logger.Infof("Workflow %s published to task center", req.WorkflowID)
	return ack, nil
}
