package execute

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Invoker performs the real-world effect of an action (signaling a load
// balancer, triggering a restart, ...). It is the one true I/O boundary of
// the system and the only operation that may fail for external reasons.
type Invoker interface {
	// Invoke applies the action. It must respect context cancellation and
	// return nil only if the effect was applied.
	Invoke(ctx context.Context, action Action) error

	// Name returns a short identifier for the invoker, e.g. "http", "log".
	Name() string
}

// LogInvoker records actions in the log without applying them. It is the
// dry-run invoker for deployments that want the full detection pipeline with
// human-applied remediation.
type LogInvoker struct {
	Logger *slog.Logger
}

func (l *LogInvoker) Name() string { return "log" }

func (l *LogInvoker) Invoke(ctx context.Context, action Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("dry-run remediation",
		"kind", action.Kind,
		"subsystem", action.SubsystemID,
		"key", action.IdempotenceKey,
	)
	return nil
}

// HTTPInvoker delegates remediation to an external HTTP service. The action
// is POSTed as a JSON envelope and any 2xx response counts as success:
//
//	POST {endpoint}
//	{"kind":"SCALE_DOWN_LOAD","subsystemId":"api","idempotenceKey":"...","params":{...}}
//
// The receiving service is expected to use the idempotence key to deduplicate
// redelivered actions on its side as well.
type HTTPInvoker struct {
	endpoint string
	client   *http.Client
}

// NewHTTPInvoker creates an invoker that POSTs actions to endpoint.
func NewHTTPInvoker(endpoint string) *HTTPInvoker {
	return &HTTPInvoker{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 2,
			},
		},
	}
}

func (h *HTTPInvoker) Name() string { return "http" }

func (h *HTTPInvoker) Invoke(ctx context.Context, action Action) error {
	payload, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("invoke %s: %w", action.Kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("invoke %s: status %d: %s", action.Kind, resp.StatusCode, string(body))
	}

	return nil
}
