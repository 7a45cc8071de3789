// Package remote is the HTTP client for the authoritative CRUD API. The sync
// engine is its only caller for queued mutations; the read merge layer uses
// List for live refreshes.
package remote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/renaud/comptoir/internal/models"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

// Client is an HTTP client for the comptoir server.
type Client struct {
	BaseURL  string
	APIKey   string
	DeviceID string
	HTTP     *http.Client
}

// New creates a new remote client. Every call is bounded by the HTTP client
// timeout; a timeout classifies as a transient failure.
func New(baseURL, apiKey, deviceID string) *Client {
	return &Client{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		DeviceID: deviceID,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Entity is a remote record as returned by the server.
type Entity struct {
	ID   string
	Data json.RawMessage
}

// CreateResult is the server's answer to a create call.
type CreateResult struct {
	ID   string
	Data json.RawMessage
}

// envelope is the standard response wrapper: { success, data | error }.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *APIError       `json:"error,omitempty"`
}

// APIError is the structured error body from the server, annotated with the
// HTTP status so failures can be classified transient vs permanent.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

// HealthCheck hits /healthz to verify server reachability. Used by the
// connectivity monitor as its online probe.
func (c *Client) HealthCheck() error {
	req, err := http.NewRequest("GET", c.BaseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &APIError{Code: "unhealthy", Message: fmt.Sprintf("HTTP %d", resp.StatusCode), Status: resp.StatusCode}
	}
	return nil
}

// Create creates an entity. clientRef carries the client-minted temporary
// identity as an idempotency correlation token: re-sending the same create
// after a crash returns the previously assigned server id instead of a
// duplicate. The response always contains the server-assigned identity.
func (c *Client) Create(kind models.EntityKind, clientRef string, payload json.RawMessage) (*CreateResult, error) {
	body := map[string]any{
		"client_ref": clientRef,
		"device_id":  c.DeviceID,
		"data":       payload,
	}
	var data json.RawMessage
	if err := c.do("POST", "/v1/"+string(kind), body, &data); err != nil {
		return nil, err
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("create %s: unmarshal response: %w", kind, err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("create %s: server response missing id", kind)
	}
	return &CreateResult{ID: out.ID, Data: data}, nil
}

// Update replaces an entity's fields. The target must be a server identity.
func (c *Client) Update(kind models.EntityKind, id string, payload json.RawMessage) error {
	body := map[string]any{
		"device_id": c.DeviceID,
		"data":      payload,
	}
	return c.do("PATCH", fmt.Sprintf("/v1/%s/%s", kind, url.PathEscape(id)), body, nil)
}

// Delete removes an entity. The target must be a server identity.
func (c *Client) Delete(kind models.EntityKind, id string) error {
	return c.do("DELETE", fmt.Sprintf("/v1/%s/%s", kind, url.PathEscape(id)), nil, nil)
}

// List fetches all entities of a kind.
func (c *Client) List(kind models.EntityKind) ([]Entity, error) {
	var data json.RawMessage
	if err := c.do("GET", "/v1/"+string(kind), nil, &data); err != nil {
		return nil, err
	}
	return decodeEntities(kind, data)
}

// LookupByRef checks whether a create with the given correlation token was
// already accepted. Returns nil when the server has no such entity. This is
// the idempotent-existence check the drain runs for in_flight creates found
// after a crash, before falling back to resend.
func (c *Client) LookupByRef(kind models.EntityKind, clientRef string) (*Entity, error) {
	params := url.Values{}
	params.Set("client_ref", clientRef)

	var data json.RawMessage
	err := c.do("GET", fmt.Sprintf("/v1/%s?%s", kind, params.Encode()), nil, &data)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	entities, err := decodeEntities(kind, data)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return &entities[0], nil
}

func decodeEntities(kind models.EntityKind, data json.RawMessage) ([]Entity, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("list %s: unmarshal response: %w", kind, err)
	}

	entities := make([]Entity, 0, len(items))
	for i, item := range items {
		var out struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(item, &out); err != nil {
			return nil, fmt.Errorf("list %s: item %d: %w", kind, i, err)
		}
		if out.ID == "" {
			return nil, fmt.Errorf("list %s: item %d missing id", kind, i)
		}
		entities = append(entities, Entity{ID: out.ID, Data: item})
	}
	return entities, nil
}

// do executes an authenticated request and unwraps the response envelope.
func (c *Client) do(method, path string, body any, data *json.RawMessage) error {
	var bodyReader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if unmarshalErr := json.Unmarshal(respBody, &env); unmarshalErr != nil || (!env.Success && env.Error == nil) {
		// No parseable envelope — fall back to status-based errors
		if resp.StatusCode >= 400 {
			return statusError(resp.StatusCode, string(respBody))
		}
		if unmarshalErr != nil {
			return fmt.Errorf("unmarshal response: %w", unmarshalErr)
		}
	}

	if !env.Success {
		if env.Error == nil {
			// Out-of-contract: success=false with no error body. Synthesize so
			// the failure classifies instead of crashing the drain.
			return &APIError{
				Code:    "malformed_envelope",
				Message: fmt.Sprintf("HTTP %d: success=false without error body", resp.StatusCode),
				Status:  resp.StatusCode,
			}
		}
		env.Error.Status = resp.StatusCode
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrUnauthorized, env.Error.Message)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrForbidden, env.Error.Message)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, env.Error.Message)
		}
		return env.Error
	}

	if data != nil {
		*data = env.Data
	}
	return nil
}

func statusError(status int, body string) error {
	switch status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	}
	return &APIError{Code: "http_error", Message: fmt.Sprintf("HTTP %d: %s", status, body), Status: status}
}
