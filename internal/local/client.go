// Package local implements the LocalReminderStore interface over the
// reminders bridge, a small companion agent that fronts the platform
// reminders store with a REST API.
//
// Wire shape:
//
//	GET    {base}/health
//	GET    {base}/lists/{list}/reminders
//	POST   {base}/lists/{list}/reminders
//	PATCH  {base}/reminders/{id}
//
// Reminders are addressable by ID alone once created, so updates don't
// carry a list.
package local

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"taskmirror/internal/item"
)

// Client talks to the reminders bridge. It implements
// bridge.LocalReminderStore.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for the bridge at baseURL. token may be empty when
// the bridge runs unauthenticated on localhost.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// reminder is the wire representation of one reminder.
type reminder struct {
	ID        string `json:"id,omitempty"`
	Title     string `json:"title"`
	Notes     string `json:"notes,omitempty"`
	Due       string `json:"due,omitempty"`
	Completed bool   `json:"completed"`
}

// IsConnected reports whether the bridge answers its health probe.
func (c *Client) IsConnected(ctx context.Context) bool {
	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// ListItems returns every reminder in the list.
func (c *Client) ListItems(ctx context.Context, listID string) ([]item.Snapshot, error) {
	path := fmt.Sprintf("/lists/%s/reminders", url.PathEscape(listID))

	var reminders []reminder
	if err := c.do(ctx, http.MethodGet, path, nil, &reminders); err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}

	items := make([]item.Snapshot, 0, len(reminders))
	for _, r := range reminders {
		items = append(items, snapshotFromReminder(r))
	}
	return items, nil
}

// CreateItem creates a reminder and returns its local ID.
func (c *Client) CreateItem(ctx context.Context, listID string, it item.Snapshot) (string, error) {
	body := reminder{
		Title:     it.Title,
		Notes:     it.Notes,
		Completed: it.Completed,
	}
	if it.Due != nil {
		body.Due = it.Due.UTC().Format(time.RFC3339)
	}

	path := fmt.Sprintf("/lists/%s/reminders", url.PathEscape(listID))

	var created reminder
	if err := c.do(ctx, http.MethodPost, path, body, &created); err != nil {
		return "", fmt.Errorf("failed to create reminder: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("create reminder: bridge returned no id")
	}
	return created.ID, nil
}

// UpdateItem applies the non-nil fields of patch to an existing reminder.
func (c *Client) UpdateItem(ctx context.Context, reminderID string, patch item.Patch) error {
	if patch.IsEmpty() {
		return nil
	}

	body := make(map[string]interface{}, 4)
	if patch.Title != nil {
		body["title"] = *patch.Title
	}
	if patch.Notes != nil {
		body["notes"] = *patch.Notes
	}
	if patch.Due != nil {
		body["due"] = patch.Due.UTC().Format(time.RFC3339)
	}
	if patch.Completed != nil {
		body["completed"] = *patch.Completed
	}

	path := fmt.Sprintf("/reminders/%s", url.PathEscape(reminderID))
	if err := c.do(ctx, http.MethodPatch, path, body, nil); err != nil {
		return fmt.Errorf("failed to update reminder %s: %w", reminderID, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload interface{}) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func snapshotFromReminder(r reminder) item.Snapshot {
	s := item.Snapshot{
		ID:        r.ID,
		Title:     r.Title,
		Notes:     r.Notes,
		Completed: r.Completed,
	}
	if r.Due != "" {
		if parsed, err := time.Parse(time.RFC3339, r.Due); err == nil {
			s.Due = &parsed
		}
	}
	return s
}
