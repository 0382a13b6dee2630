// Package syncclient is the HTTP transport for the sync engine: it
// speaks the wire protocol of spec.md §6.1 and knows nothing about
// merge policy, storage, or frecency. internal/sync wraps Client in
// its ClientAdapter to satisfy its Requester interface.
package syncclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/autonome/peek/internal/version"
)

// Sentinel errors for common HTTP error classes (mirrors the
// teacher's syncclient sentinel set).
var (
	ErrUnauthorized = errors.New("peek sync: unauthorized")
	ErrForbidden    = errors.New("peek sync: forbidden")
	ErrNotFound     = errors.New("peek sync: not found")
)

// ServerItem is the wire shape returned by GET /items and
// GET /items/since/{ts} (spec.md §6.1).
type ServerItem struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	Content   *string  `json:"content,omitempty"`
	Metadata  *string  `json:"metadata,omitempty"`
	Tags      []string `json:"tags"`
	CreatedAt string   `json:"created_at"` // ISO 8601
	UpdatedAt string   `json:"updated_at"` // ISO 8601
}

// ClientItem is the wire shape sent to POST /items (spec.md §6.1).
type ClientItem struct {
	Type     string   `json:"type"`
	Content  string   `json:"content"`
	Tags     []string `json:"tags"`
	Metadata *string  `json:"metadata,omitempty"`
	SyncID   string   `json:"sync_id"`
}

// PushResponse is the response body from POST /items.
type PushResponse struct {
	ID      string `json:"id"`
	Created bool   `json:"created"`
}

type itemsResponse struct {
	Items []ServerItem `json:"items"`
}

// Client is an HTTP client for the peek sync server.
type Client struct {
	BaseURL  string
	APIKey   string
	ClientID string
	HTTP     *http.Client
}

// New creates a Client with a sane request timeout.
func New(baseURL, apiKey, clientID string) *Client {
	return &Client{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		ClientID: clientID,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

// GetItems fetches every live item for profile (the server's default
// profile if profile is empty) via GET /items.
func (c *Client) GetItems(profile string) ([]ServerItem, error) {
	path := "/items"
	if profile != "" {
		path += "?profile=" + url.QueryEscape(profile)
	}
	var resp itemsResponse
	if err := c.do(http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// GetItemsSince fetches items updated after since via
// GET /items/since/{isoTimestamp}.
func (c *Client) GetItemsSince(since time.Time, profile string) ([]ServerItem, error) {
	path := "/items/since/" + url.PathEscape(since.UTC().Format(time.RFC3339))
	if profile != "" {
		path += "?profile=" + url.QueryEscape(profile)
	}
	var resp itemsResponse
	if err := c.do(http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// PushItem sends item to POST /items, returning the server-assigned id.
func (c *Client) PushItem(item ClientItem, profile string) (*PushResponse, error) {
	path := "/items"
	if profile != "" {
		path += "?profile=" + url.QueryEscape(profile)
	}
	var resp PushResponse
	if err := c.do(http.MethodPost, path, item, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("peek sync: marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("peek sync: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	for h, v := range version.Headers(c.ClientID) {
		req.Header.Set(h, v[0])
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("peek sync: http request: %w", err)
	}
	defer resp.Body.Close()

	if err := version.Check(resp.Header); err != nil {
		return err
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("peek sync: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrUnauthorized, string(respBody))
		case http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrForbidden, string(respBody))
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, string(respBody))
		default:
			return fmt.Errorf("peek sync: server error %d: %s", resp.StatusCode, string(respBody))
		}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("peek sync: unmarshal response: %w", err)
		}
	}
	return nil
}
