package postcache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultBaseURL is the public JSONPlaceholder service.
const DefaultBaseURL = "https://jsonplaceholder.typicode.com"

const requestIDHeader = "X-Request-ID"

// API is the remote collection the store reads from and writes to.
type API interface {
	ListPosts(ctx context.Context) ([]Post, error)
	ListUsers(ctx context.Context) ([]User, error)
	ListComments(ctx context.Context, postID int) ([]Comment, error)
	CreatePost(ctx context.Context, in PostInput) (Post, error)
	DeletePost(ctx context.Context, postID int) error
}

// HTTPClient talks JSON to a JSONPlaceholder-shaped endpoint.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	log     *slog.Logger
	newID   func() string
}

// HTTPOption customizes an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPLogger sets the logger used for request tracing.
func WithHTTPLogger(logger *slog.Logger) HTTPOption {
	return func(c *HTTPClient) {
		if logger != nil {
			c.log = logger
		}
	}
}

// WithRequestIDFunc overrides how X-Request-ID values are generated.
func WithRequestIDFunc(fn func() string) HTTPOption {
	return func(c *HTTPClient) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// NewHTTPClient builds a client for baseURL. An empty baseURL selects
// DefaultBaseURL and a nil client selects http.DefaultClient.
func NewHTTPClient(baseURL string, client *http.Client, opts ...HTTPOption) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		log:     slog.Default(),
		newID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListPosts issues GET /posts.
func (c *HTTPClient) ListPosts(ctx context.Context) ([]Post, error) {
	var out []Post
	if err := c.do(ctx, "list posts", http.MethodGet, "/posts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListUsers issues GET /users.
func (c *HTTPClient) ListUsers(ctx context.Context) ([]User, error) {
	var out []User
	if err := c.do(ctx, "list users", http.MethodGet, "/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListComments issues GET /posts/{id}/comments.
func (c *HTTPClient) ListComments(ctx context.Context, postID int) ([]Comment, error) {
	var out []Comment
	path := "/posts/" + strconv.Itoa(postID) + "/comments"
	if err := c.do(ctx, "list comments", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreatePost issues POST /posts and returns the stored record.
func (c *HTTPClient) CreatePost(ctx context.Context, in PostInput) (Post, error) {
	var out Post
	if err := c.do(ctx, "create post", http.MethodPost, "/posts", in, &out); err != nil {
		return Post{}, err
	}
	out.Optimistic = false
	return out, nil
}

// DeletePost issues DELETE /posts/{id}.
func (c *HTTPClient) DeletePost(ctx context.Context, postID int) error {
	return c.do(ctx, "delete post", http.MethodDelete, "/posts/"+strconv.Itoa(postID), nil, nil)
}

func (c *HTTPClient) do(ctx context.Context, op, method, path string, body, out any) error {
	url := c.baseURL + path

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}
	requestID := c.newID()
	req.Header.Set(requestIDHeader, requestID)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Debug("request failed", "op", op, "request_id", requestID, "error", err)
		return &NetworkError{Op: op, Method: method, URL: url, Err: err}
	}
	defer resp.Body.Close()

	c.log.Debug("request done",
		"op", op,
		"request_id", requestID,
		"status", resp.StatusCode,
		"dur", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &NetworkError{Op: op, Method: method, URL: url, StatusCode: resp.StatusCode}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Op: op, Method: method, URL: url, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
