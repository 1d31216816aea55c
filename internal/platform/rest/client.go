package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TokenSource supplies bearer tokens for backend calls. Invalidate drops any
// cached token so the next call re-acquires one; it is called after a 401/403.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// Client is the single HTTP client shared by all backend gateways. It owns
// authentication headers, request IDs, timeouts, and the error taxonomy; the
// gateways own paths and payload shapes.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	logger  zerolog.Logger
}

func NewClient(baseURL string, timeout time.Duration, tokens TokenSource, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		logger:  logger,
	}
}

// Get issues a GET request and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, "", nil, out)
}

// PostJSON issues a POST request with a JSON body.
func (c *Client) PostJSON(ctx context.Context, path string, body, out interface{}) error {
	return c.doJSON(ctx, http.MethodPost, path, body, out)
}

// PatchJSON issues a PATCH request with a JSON body.
func (c *Client) PatchJSON(ctx context.Context, path string, body, out interface{}) error {
	return c.doJSON(ctx, http.MethodPatch, path, body, out)
}

// PutJSON issues a PUT request with a JSON body.
func (c *Client) PutJSON(ctx context.Context, path string, body, out interface{}) error {
	return c.doJSON(ctx, http.MethodPut, path, body, out)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodDelete, path, nil, "", nil, out)
}

// Upload issues a multipart/form-data POST with a single file part named
// fieldName, matching the browser FormData uploads the backend expects.
func (c *Client) Upload(ctx context.Context, path, fieldName, filename string, content io.Reader, out interface{}) error {
	return c.UploadForm(ctx, path, fieldName, filename, content, nil, out)
}

// UploadForm is Upload plus extra plain form fields alongside the file part.
func (c *Client) UploadForm(ctx context.Context, path, fieldName, filename string, content io.Reader, fields map[string]string, out interface{}) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(fieldName, filepath.Base(filename))
	if err != nil {
		return &Error{Kind: KindNetwork, Err: fmt.Errorf("building multipart body: %w", err)}
	}
	if _, err := io.Copy(part, content); err != nil {
		return &Error{Kind: KindNetwork, Err: fmt.Errorf("reading upload content: %w", err)}
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return &Error{Kind: KindNetwork, Err: err}
		}
	}
	if err := mw.Close(); err != nil {
		return &Error{Kind: KindNetwork, Err: err}
	}
	return c.do(ctx, http.MethodPost, path, nil, mw.FormDataContentType(), &buf, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var rd io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindDecode, Err: fmt.Errorf("encoding request body: %w", err)}
		}
		rd = bytes.NewReader(encoded)
	}
	return c.do(ctx, method, path, nil, "application/json", rd, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, contentType string, body io.Reader, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return &Error{Kind: KindNetwork, Err: err}
	}

	rid := uuid.NewString()
	req.Header.Set("X-Request-ID", rid)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return &Error{Kind: KindAuth, RequestID: rid, Message: "could not acquire access token", Err: err}
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("request_id", rid).Str("method", method).Str("path", path).Msg("request failed")
		return &Error{Kind: KindNetwork, RequestID: rid, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindNetwork, Status: resp.StatusCode, RequestID: rid, Err: err}
	}

	c.logger.Debug().
		Str("request_id", rid).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("request")

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		if c.tokens != nil {
			c.tokens.Invalidate()
		}
		return &Error{Kind: KindAuth, Status: resp.StatusCode, RequestID: rid, Message: serverMessage(raw)}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &Error{Kind: KindValidation, Status: resp.StatusCode, RequestID: rid, Message: serverMessage(raw)}
	case resp.StatusCode >= 500:
		return &Error{Kind: KindServer, Status: resp.StatusCode, RequestID: rid, Message: serverMessage(raw)}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Kind: KindDecode, Status: resp.StatusCode, RequestID: rid, Err: err}
	}
	return nil
}

// serverMessage extracts a human-readable message from an error body. The
// backend responds with {success:false, message:...} or {error:...}; anything
// else is surfaced as raw text, truncated to keep terminal output sane.
func serverMessage(raw []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error != "" {
			return envelope.Error
		}
	}
	text := strings.TrimSpace(string(raw))
	if len(text) > 512 {
		text = text[:512] + "…"
	}
	return text
}
