package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fieldledger/fieldledger/internal/models"
)

// HTTPBackend talks to the sync API over JSON. The bearer token comes from a
// callback so the surrounding app can refresh it without rebuilding the
// backend.
type HTTPBackend struct {
	baseURL string
	token   func(ctx context.Context) (string, error)
	client  *http.Client
}

func NewHTTPBackend(baseURL string, token func(ctx context.Context) (string, error), client *http.Client) *HTTPBackend {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPBackend{
		baseURL: baseURL,
		token:   token,
		client:  client,
	}
}

func (b *HTTPBackend) Push(ctx context.Context, deviceID string, changes []models.ChangeEvent) (*models.PushResponse, error) {
	body, err := json.Marshal(models.PushRequest{DeviceID: deviceID, Changes: changes})
	if err != nil {
		return nil, fmt.Errorf("failed to encode push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/sync/push", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp models.PushResponse
	if err := b.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (b *HTTPBackend) Pull(ctx context.Context, since *time.Time) (*models.PullResponse, error) {
	endpoint := b.baseURL + "/v1/sync/pull"
	if since != nil {
		endpoint += "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339Nano))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var resp models.PullResponse
	if err := b.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (b *HTTPBackend) do(req *http.Request, out interface{}) error {
	token, err := b.token(req.Context())
	if err != nil {
		return fmt.Errorf("failed to resolve token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("backend returned %d: %s", resp.StatusCode, snippet)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode backend response: %w", err)
	}
	return nil
}
