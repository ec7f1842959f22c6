package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"condogate/internal/adapters/persistence/models"
)

// HTTPDocumentReplica mirrors gate-relevant records to the document store
// consumed by the guard booth tablets. Deliveries are best-effort; the
// relational database stays the source of truth.
type HTTPDocumentReplica struct {
	url    string
	client *http.Client
}

// NewHTTPDocumentReplica creates a replica client. Returns nil when no
// URL is configured, which disables replication.
func NewHTTPDocumentReplica(url string) *HTTPDocumentReplica {
	if url == "" {
		return nil
	}
	return &HTTPDocumentReplica{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *HTTPDocumentReplica) put(ctx context.Context, path string, doc interface{}) error {
	buf, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.url+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("replica returned %s", resp.Status)
	}
	return nil
}

// SaveToken mirrors an access token.
func (r *HTTPDocumentReplica) SaveToken(ctx context.Context, token *models.AccessToken) error {
	return r.put(ctx, fmt.Sprintf("/tokens/%d", token.ID), token)
}

// SaveAccessEvent mirrors an access event.
func (r *HTTPDocumentReplica) SaveAccessEvent(ctx context.Context, event *models.AccessEvent) error {
	return r.put(ctx, fmt.Sprintf("/access-events/%d", event.ID), event)
}
