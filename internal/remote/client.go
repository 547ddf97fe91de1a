// Package remote implements the RemoteTaskStore interface over a
// Google-Tasks-style REST API.
//
// Wire shape:
//
//	GET    {base}/lists                 (connectivity probe)
//	GET    {base}/lists/{list}/tasks?maxResults=100&pageToken=...
//	POST   {base}/lists/{list}/tasks
//	PATCH  {base}/lists/{list}/tasks/{id}
//
// Task completion travels as a status string, "needsAction" or "completed".
// Listings are paged; ListItems follows nextPageToken until exhausted.
package remote

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

// Task status strings on the wire.
const (
	StatusNeedsAction = "needsAction"
	StatusCompleted   = "completed"
)

const pageSize = 100

// Client talks to the remote task service. It implements
// bridge.RemoteTaskStore.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for the service at baseURL, authenticating with the
// given bearer token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// task is the wire representation of a remote task.
type task struct {
	ID     string `json:"id,omitempty"`
	Title  string `json:"title"`
	Notes  string `json:"notes,omitempty"`
	Due    string `json:"due,omitempty"`
	Status string `json:"status,omitempty"`
}

type taskPage struct {
	Items         []task `json:"items"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

// IsConnected reports whether the service answers an authenticated listing
// probe.
func (c *Client) IsConnected(ctx context.Context) bool {
	if c.token == "" {
		return false
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/lists", nil)
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

// ListItems returns every task in the list, following pagination until the
// listing is exhausted.
func (c *Client) ListItems(ctx context.Context, listID string) ([]item.Snapshot, error) {
	var all []item.Snapshot
	pageToken := ""

	for {
		q := url.Values{}
		q.Set("maxResults", fmt.Sprint(pageSize))
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		path := fmt.Sprintf("/lists/%s/tasks?%s", url.PathEscape(listID), q.Encode())

		var page taskPage
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, fmt.Errorf("failed to list tasks: %w", err)
		}

		for _, t := range page.Items {
			all = append(all, snapshotFromTask(t))
		}

		if page.NextPageToken == "" {
			return all, nil
		}
		pageToken = page.NextPageToken
	}
}

// CreateItem creates a task and returns its remote ID.
func (c *Client) CreateItem(ctx context.Context, listID string, it item.Snapshot) (string, error) {
	body := task{
		Title:  it.Title,
		Notes:  it.Notes,
		Status: statusFromBool(it.Completed),
	}
	if it.Due != nil {
		body.Due = it.Due.UTC().Format(time.RFC3339)
	}

	path := fmt.Sprintf("/lists/%s/tasks", url.PathEscape(listID))

	var created task
	if err := c.do(ctx, http.MethodPost, path, body, &created); err != nil {
		return "", fmt.Errorf("failed to create task: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("create task: service returned no id")
	}
	return created.ID, nil
}

// UpdateItem applies the non-nil fields of patch to an existing task.
func (c *Client) UpdateItem(ctx context.Context, listID, taskID string, patch item.Patch) error {
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
		body["status"] = statusFromBool(*patch.Completed)
	}

	path := fmt.Sprintf("/lists/%s/tasks/%s", url.PathEscape(listID), url.PathEscape(taskID))
	if err := c.do(ctx, http.MethodPatch, path, body, nil); err != nil {
		return fmt.Errorf("failed to update task %s: %w", taskID, err)
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

func snapshotFromTask(t task) item.Snapshot {
	s := item.Snapshot{
		ID:        t.ID,
		Title:     t.Title,
		Notes:     t.Notes,
		Completed: t.Status == StatusCompleted,
	}
	if t.Due != "" {
		if parsed, err := time.Parse(time.RFC3339, t.Due); err == nil {
			s.Due = &parsed
		}
	}
	return s
}

func statusFromBool(completed bool) string {
	if completed {
		return StatusCompleted
	}
	return StatusNeedsAction
}
