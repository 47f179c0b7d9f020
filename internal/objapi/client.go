// Package objapi is the HTTP client for the object-management API served by
// internal/web. It implements mutate.API and cache.Fetcher.
package objapi

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

	"go.uber.org/zap"

	"rankboard/internal/model"
	"rankboard/internal/mutate"
)

var (
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid request")
	ErrNotFound = errors.New("not found")
)

// APIError is a non-2xx response. It unwraps to ErrConflict, ErrInvalid or
// ErrNotFound according to the server's error code.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("object api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("object api: %s", e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Code {
	case "conflict":
		return ErrConflict
	case "invalid":
		return ErrInvalid
	case "not_found":
		return ErrNotFound
	}
	switch e.Status {
	case http.StatusConflict:
		return ErrConflict
	case http.StatusBadRequest:
		return ErrInvalid
	case http.StatusNotFound:
		return ErrNotFound
	}
	return nil
}

type Client struct {
	base *url.URL
	http *http.Client
	log  *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New returns a client for the server at baseURL (e.g. http://127.0.0.1:7410).
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("objapi: missing server url")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("objapi: parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("objapi: unsupported scheme %q", u.Scheme)
	}
	c := &Client{base: u, http: &http.Client{Timeout: 30 * time.Second}, log: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// FeedURL is the websocket address of the server's invalidation feed.
func (c *Client) FeedURL() string {
	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/feed"
	return u.String()
}

func (c *Client) Board(ctx context.Context) (model.Board, error) {
	var b model.Board
	err := c.do(ctx, http.MethodGet, "/api/board", nil, &b)
	return b, err
}

func (c *Client) ListObjects(ctx context.Context) ([]model.Item, error) {
	var items []model.Item
	if err := c.do(ctx, http.MethodGet, "/api/objects", nil, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Item{}
	}
	return items, nil
}

func (c *Client) GetObject(ctx context.Context, id string) (model.Item, error) {
	var it model.Item
	err := c.do(ctx, http.MethodGet, "/api/objects/"+url.PathEscape(id), nil, &it)
	return it, err
}

func (c *Client) MoveObject(ctx context.Context, req mutate.MoveRequest) error {
	return c.do(ctx, http.MethodPost, "/api/objects/"+url.PathEscape(req.ItemID)+"/move", req, nil)
}

func (c *Client) UpdateObject(ctx context.Context, itemID string, upd mutate.ObjectUpdate) error {
	return c.do(ctx, http.MethodPost, "/api/objects/"+url.PathEscape(itemID)+"/update", upd, nil)
}

func (c *Client) ReorderOptions(ctx context.Context, classID, fieldID string, order []string) error {
	if classID == "" {
		classID = "-"
	}
	path := "/api/classes/" + url.PathEscape(classID) + "/fields/" + url.PathEscape(fieldID) + "/options/reorder"
	return c.do(ctx, http.MethodPost, path, map[string][]string{"order": order}, nil)
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
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.log.Debug("object api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		apiErr := &APIError{Status: resp.StatusCode}
		var eb struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(raw, &eb) == nil {
			apiErr.Code, apiErr.Message = eb.Code, eb.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}
