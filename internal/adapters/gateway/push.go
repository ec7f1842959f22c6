package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPPushGateway delivers push messages through an FCM-style HTTP
// endpoint keyed by the recipient's external UID.
type HTTPPushGateway struct {
	url    string
	key    string
	client *http.Client
}

// NewHTTPPushGateway creates a push gateway client. Returns nil when no
// URL is configured, which disables push delivery.
func NewHTTPPushGateway(url, key string) *HTTPPushGateway {
	if url == "" {
		return nil
	}
	return &HTTPPushGateway{
		url:    url,
		key:    key,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type pushPayload struct {
	To           string `json:"to"`
	Notification struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	} `json:"notification"`
}

// Push sends one message to the device registered under externalUID.
func (g *HTTPPushGateway) Push(ctx context.Context, externalUID, title, body string) error {
	payload := pushPayload{To: externalUID}
	payload.Notification.Title = title
	payload.Notification.Body = body

	buf, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.key != "" {
		req.Header.Set("Authorization", "key="+g.key)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("push gateway returned %s", resp.Status)
	}
	return nil
}
