// Package sink delivers change event batches to an external collector.
//
// The monitor loop only advances its baseline after the sink accepts a
// batch, so delivery is at-least-once: a failed delivery is re-derived and
// retried on the next cycle, and the collector may see the same change
// twice but never misses one.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Sashwatreded/integrity-check/pkg/fim/types"
)

// Sink accepts ordered event batches for a monitored root.
type Sink interface {
	// Deliver reports the batch to the collector. A nil return means the
	// batch was durably accepted.
	Deliver(ctx context.Context, batch types.EventBatch) error
}

// DefaultTimeout bounds one delivery attempt.
const DefaultTimeout = 10 * time.Second

// HTTP posts event batches as JSON to a collector endpoint.
type HTTP struct {
	endpoint string
	client   *http.Client
}

// NewHTTP creates an HTTP sink for the given collector base URL
// (e.g. "http://127.0.0.1:8440"). A zero timeout uses DefaultTimeout.
func NewHTTP(endpoint string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTP{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
	}
}

// Deliver posts the batch to POST <endpoint>/api/v1/events. Any transport
// failure or non-2xx status wraps types.ErrSink.
func (s *HTTP) Deliver(ctx context.Context, batch types.EventBatch) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("%w: encode batch: %v", types.ErrSink, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/api/v1/events", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrSink, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrSink, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Include a short body excerpt for diagnosis.
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%w: collector returned %d: %s", types.ErrSink, resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}
	return nil
}

// Discard is a sink that accepts and drops every batch. It is used when no
// collector endpoint is configured.
type Discard struct{}

// Deliver always succeeds.
func (Discard) Deliver(context.Context, types.EventBatch) error { return nil }
