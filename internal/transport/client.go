package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Error is the typed failure for any non-2xx response or network fault.
// Status is zero when the request never reached the server.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("transport: %s", e.Message)
	}
	return fmt.Sprintf("transport: status %d: %s", e.Status, e.Message)
}

// File is an attachment payload for multipart posts.
type File struct {
	FieldName string
	Name      string
	Data      []byte
}

// Client is a thin wrapper over the console backend's REST surface.
// It carries no retry policy: callers decide whether a failed call is
// retried, so polling traffic is never silently amplified.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client

	logger *zap.SugaredLogger
}

func NewClient(baseURL, token string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.Sugar(),
	}
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, "", nil, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, "", nil, out)
}

// PostMultipart sends fields plus an optional file as multipart/form-data.
func (c *Client) PostMultipart(ctx context.Context, path string, fields map[string]string, file *File, out any) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return &Error{Message: fmt.Sprintf("write field %s: %v", k, err)}
		}
	}
	if file != nil {
		field := file.FieldName
		if field == "" {
			field = "file"
		}
		fw, err := w.CreateFormFile(field, file.Name)
		if err != nil {
			return &Error{Message: fmt.Sprintf("create form file: %v", err)}
		}
		if _, err := fw.Write(file.Data); err != nil {
			return &Error{Message: fmt.Sprintf("write form file: %v", err)}
		}
	}
	if err := w.Close(); err != nil {
		return &Error{Message: fmt.Sprintf("close multipart writer: %v", err)}
	}
	return c.do(ctx, http.MethodPost, path, w.FormDataContentType(), body.Bytes(), out)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte, out any) error {
	if c.HTTPClient == nil {
		return &Error{Message: "http client is nil"}
	}

	url := c.BaseURL + "/" + strings.TrimLeft(path, "/")
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return &Error{Message: err.Error()}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.logger.Warnw("request failed", "method", method, "path", path, "request_id", reqID, "error", err)
		return &Error{Message: err.Error()}
	}
	defer resp.Body.Close()

	c.logger.Debugw("request done",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", reqID,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &Error{Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Status: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}
