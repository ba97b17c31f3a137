package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	appLog "repaircal/internal/log"
	"repaircal/internal/model"
)

const (
	DefaultTimeout = 15 * time.Second

	// RequestIDHeader carries a per-call id so that client and service logs
	// can be correlated.
	RequestIDHeader = "X-Request-Id"

	maxBodyBytes = 4 << 20
)

// Client talks to the appointment persistence service over HTTP/JSON.
//
// There is no version token on updates: two concurrent edits of the same
// appointment are last-write-wins.
type Client struct {
	baseURL string
	client  *http.Client
	loc     *time.Location
}

// NewClient creates a Client for the service rooted at baseURL
// (e.g. "https://repair-api.example.net"). loc is the wall-clock zone in
// which appointment dates are interpreted; nil means time.Local.
func NewClient(baseURL string, timeout time.Duration, loc *time.Location) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if loc == nil {
		loc = time.Local
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
		loc: loc,
	}
}

// WithHTTPClient replaces the underlying HTTP client (tests, custom
// transports). It returns c for chaining.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	if h != nil {
		c.client = h
	}
	return c
}

// Location is the zone appointment dates are interpreted in.
func (c *Client) Location() *time.Location { return c.loc }

// List fetches every appointment. There is no server-side filtering; callers
// filter by date key themselves.
func (c *Client) List(ctx context.Context) ([]model.Appointment, error) {
	var dtos []appointmentDTO
	if err := c.do(ctx, "list", http.MethodGet, "/appointments", "", nil, &dtos); err != nil {
		return nil, err
	}

	out := make([]model.Appointment, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toModel(c.loc))
	}
	return out, nil
}

// Create registers a new appointment and returns it with its assigned id.
func (c *Client) Create(ctx context.Context, in model.AppointmentInput) (model.Appointment, error) {
	var dto appointmentDTO
	if err := c.do(ctx, "create", http.MethodPost, "/appointments", "", newCreateBody(in), &dto); err != nil {
		return model.Appointment{}, err
	}
	if dto.ID == "" {
		return model.Appointment{}, &ServerError{Op: "create", Status: http.StatusOK, Body: "response has no id"}
	}
	return dto.toModel(c.loc), nil
}

// Update replaces every field of the appointment with in.
func (c *Client) Update(ctx context.Context, id model.ID, in model.AppointmentInput) (model.Appointment, error) {
	if id == "" {
		return model.Appointment{}, errors.New("backend: update: empty id")
	}
	var dto appointmentDTO
	path := "/appointments/" + url.PathEscape(string(id))
	if err := c.do(ctx, "update", http.MethodPatch, path, string(id), newUpdateBody(in), &dto); err != nil {
		return model.Appointment{}, err
	}
	if dto.ID == "" {
		dto.ID = id
	}
	return dto.toModel(c.loc), nil
}

// Delete removes the appointment.
func (c *Client) Delete(ctx context.Context, id model.ID) error {
	if id == "" {
		return errors.New("backend: delete: empty id")
	}
	path := "/appointments/" + url.PathEscape(string(id))
	return c.do(ctx, "delete", http.MethodDelete, path, string(id), nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path, id string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: %s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("backend: %s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)

	start := time.Now()
	appLog.Debug("backend request start", "op", op, "method", method, "path", path, "request_id", reqID)

	resp, err := c.client.Do(req)
	if err != nil {
		appLog.Error("backend request failed", err, "op", op, "request_id", reqID)
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}

	appLog.Info("backend request done",
		"op", op,
		"status", resp.StatusCode,
		"request_id", reqID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromResponse(op, id, resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		if out != nil {
			return &ServerError{Op: op, Status: resp.StatusCode, Body: "empty response body"}
		}
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ServerError{Op: op, Status: resp.StatusCode, Body: "malformed response body: " + err.Error()}
	}
	return nil
}

// errorFromResponse classifies a non-2xx response.
func errorFromResponse(op, id string, status int, data []byte) error {
	if status == http.StatusNotFound {
		return &NotFoundError{Op: op, ID: id}
	}
	if detail := parseDetail(data); detail != "" {
		return &ValidationError{Op: op, Status: status, Detail: detail}
	}
	return &ServerError{Op: op, Status: status, Body: truncate(strings.TrimSpace(string(data)), 200)}
}

// parseDetail extracts {"detail": "..."} or the FastAPI list form
// {"detail": [{"msg": "...", "loc": [...]}]}.
func parseDetail(data []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var items []struct {
		Msg string `json:"msg"`
		Loc []any  `json:"loc"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err != nil {
		return ""
	}
	msgs := make([]string, 0, len(items))
	for _, it := range items {
		if it.Msg == "" {
			continue
		}
		if n := len(it.Loc); n > 0 {
			msgs = append(msgs, fmt.Sprint(it.Loc[n-1])+": "+it.Msg)
			continue
		}
		msgs = append(msgs, it.Msg)
	}
	return strings.Join(msgs, "; ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
