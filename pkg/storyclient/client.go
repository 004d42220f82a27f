// Package storyclient drives the illustration API from outside the service:
// a typed HTTP client plus the poll loop that advances a task to the end.
package storyclient

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
)

// PageImage mirrors one entry of a task's pages list.
type PageImage struct {
	PageNumber int    `json:"pageNumber"`
	ImageURL   string `json:"imageUrl"`
}

type StartResult struct {
	TaskID     string `json:"task_id"`
	TotalPages int    `json:"total_pages"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

type TaskResult struct {
	StoryboardID    string      `json:"storyboardId"`
	Style           string      `json:"style"`
	ForceRegenerate bool        `json:"forceRegenerate"`
	Pages           []PageImage `json:"pages"`
	GeneratedPages  []PageImage `json:"generatedPages"`
}

type TaskView struct {
	TaskID         string     `json:"task_id"`
	Status         string     `json:"status"`
	Progress       int        `json:"progress"`
	CompletedItems int        `json:"completed_items"`
	TotalItems     int        `json:"total_items"`
	Result         TaskResult `json:"result"`
	Error          string     `json:"error,omitempty"`
}

type StepResult struct {
	TaskID         string      `json:"task_id"`
	Status         string      `json:"status"`
	PageNumber     int         `json:"page_number"`
	ImageURL       string      `json:"image_url"`
	Skipped        bool        `json:"skipped"`
	Progress       int         `json:"progress"`
	CompletedItems int         `json:"completed_items"`
	TotalItems     int         `json:"total_items"`
	Pages          []PageImage `json:"pages"`
	GeneratedPages []PageImage `json:"generated_pages"`
	Error          string      `json:"error,omitempty"`
}

// Terminal reports whether the task reached completed or failed.
func (s *StepResult) Terminal() bool {
	return s.Status == "completed" || s.Status == "failed"
}

// APIError is a non-2xx answer from the service.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	PageNumber int
	Retryable  bool
}

func (e *APIError) Error() string {
	if e.PageNumber > 0 {
		return fmt.Sprintf("storyclient: %d %s (page %d): %s", e.StatusCode, e.Code, e.PageNumber, e.Message)
	}
	return fmt.Sprintf("storyclient: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Transient reports whether the poll loop may try again.
func (e *APIError) Transient() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client calls the illustration API with a bearer token.
type Client struct {
	baseURL string
	token   string
	locale  string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLocale sets Accept-Language so error messages come back localized.
func WithLocale(locale string) Option {
	return func(c *Client) { c.locale = locale }
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start asks the service to illustrate every page of a storyboard. A nil
// force leaves the decision to the service.
func (c *Client) Start(ctx context.Context, storyboardID, style string, force *bool) (*StartResult, error) {
	body := map[string]any{"style": style}
	if force != nil {
		body["force_regenerate"] = *force
	}
	var out StartResult
	path := "/v1/storyboards/" + url.PathEscape(storyboardID) + "/illustrations"
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Status(ctx context.Context, taskID string) (*TaskView, error) {
	var out TaskView
	if err := c.do(ctx, http.MethodGet, "/v1/tasks/"+url.PathEscape(taskID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Advance(ctx context.Context, taskID string) (*StepResult, error) {
	var out StepResult
	if err := c.do(ctx, http.MethodPost, "/v1/tasks/"+url.PathEscape(taskID)+"/advance", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.locale != "" {
		req.Header.Set("Accept-Language", c.locale)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("storyclient: decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(status int, raw []byte) error {
	var payload struct {
		Error struct {
			Code       string `json:"code"`
			Message    string `json:"message"`
			PageNumber int    `json:"page_number"`
			Retryable  bool   `json:"retryable"`
		} `json:"error"`
	}
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error.Code != "" {
		apiErr.Code = payload.Error.Code
		apiErr.Message = payload.Error.Message
		apiErr.PageNumber = payload.Error.PageNumber
		apiErr.Retryable = payload.Error.Retryable
	} else {
		apiErr.Code = http.StatusText(status)
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}

// isTransient classifies an error from the client: network failures and
// 5xx answers are worth another attempt, 4xx answers are not.
func isTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	return !errors.Is(err, context.Canceled)
}
