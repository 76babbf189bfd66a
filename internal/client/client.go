package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Client talks to the job API. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http = &http.Client{Timeout: d} }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken sets the bearer token sent with every request. Empty clears it.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Count   *int   `json:"count,omitempty"`
	Data    T      `json:"data"`
	Message string `json:"message"`
}

// Jobs

func (c *Client) GetAllJobs(ctx context.Context, sortBy, sortOrder string) ([]Job, error) {
	if sortBy == "" {
		sortBy = "postedDate"
	}
	if sortOrder == "" {
		sortOrder = "desc"
	}
	q := url.Values{"sortBy": {sortBy}, "sortOrder": {sortOrder}}
	return list[Job](ctx, c, "/api/jobs?"+q.Encode())
}

func (c *Client) GetLatestJobs(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 6
	}
	return list[Job](ctx, c, "/api/jobs/latest?limit="+strconv.Itoa(limit))
}

func (c *Client) GetJobsByCategory(ctx context.Context, category string) ([]Job, error) {
	return list[Job](ctx, c, "/api/jobs/category/"+url.PathEscape(category))
}

func (c *Client) GetJobByID(ctx context.Context, id string) (Job, error) {
	return one[Job](ctx, c, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil)
}

func (c *Client) GetMyJobs(ctx context.Context, email string) ([]Job, error) {
	return list[Job](ctx, c, "/api/jobs/my-jobs/"+url.PathEscape(email))
}

func (c *Client) AddJob(ctx context.Context, in JobInput) (Job, error) {
	return one[Job](ctx, c, http.MethodPost, "/api/jobs", in)
}

func (c *Client) UpdateJob(ctx context.Context, id string, in JobInput) (Job, error) {
	return one[Job](ctx, c, http.MethodPut, "/api/jobs/"+url.PathEscape(id), in)
}

func (c *Client) DeleteJob(ctx context.Context, id, userEmail string) error {
	body := map[string]string{"userEmail": userEmail}
	return c.do(ctx, http.MethodDelete, "/api/jobs/"+url.PathEscape(id), body, nil)
}

func (c *Client) GetStats(ctx context.Context) (Stats, error) {
	return one[Stats](ctx, c, http.MethodGet, "/api/jobs/stats/all", nil)
}

// Acceptances

func (c *Client) AcceptJob(ctx context.Context, req AcceptRequest) (Acceptance, error) {
	return one[Acceptance](ctx, c, http.MethodPost, "/api/jobs/accept", req)
}

func (c *Client) GetMyAcceptedTasks(ctx context.Context, email string) ([]Acceptance, error) {
	return list[Acceptance](ctx, c, "/api/jobs/accepted/"+url.PathEscape(email))
}

// RemoveAcceptedJob deletes an acceptance. resolution is "done" or
// "cancelled" and only feeds the server-side history.
func (c *Client) RemoveAcceptedJob(ctx context.Context, id, userEmail, resolution string) error {
	body := map[string]string{"userEmail": userEmail, "resolution": resolution}
	return c.do(ctx, http.MethodDelete, "/api/jobs/accepted/"+url.PathEscape(id), body, nil)
}

func (c *Client) GetHistory(ctx context.Context, email string) ([]HistoryEvent, error) {
	return list[HistoryEvent](ctx, c, "/api/jobs/history/"+url.PathEscape(email))
}

// Identity

func (c *Client) Register(ctx context.Context, email, password, displayName, photoURL string) (AuthResult, error) {
	var out AuthResult
	err := c.do(ctx, http.MethodPost, "/auth/register", map[string]string{
		"email": email, "password": password, "displayName": displayName, "photoURL": photoURL,
	}, &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, email, password string) (AuthResult, error) {
	var out AuthResult
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, &out)
	return out, err
}

func (c *Client) LoginFederated(ctx context.Context, provider, idToken string) (AuthResult, error) {
	var out AuthResult
	err := c.do(ctx, http.MethodPost, "/auth/federated", map[string]string{"provider": provider, "idToken": idToken}, &out)
	return out, err
}

func (c *Client) Me(ctx context.Context) (User, error) {
	return one[User](ctx, c, http.MethodGet, "/me", nil)
}

func (c *Client) UpdateProfile(ctx context.Context, upd ProfileUpdate) (User, error) {
	return one[User](ctx, c, http.MethodPatch, "/me", upd)
}

func list[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var env envelope[[]T]
	if err := c.do(ctx, http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		env.Data = []T{}
	}
	return env.Data, nil
}

func one[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	var env envelope[T]
	err := c.do(ctx, method, path, body, &env)
	return env.Data, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.bearer(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var env struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &env) == nil {
			apiErr.Message = env.Message
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
