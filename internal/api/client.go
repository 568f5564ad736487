// Package api provides the authenticated REST client for the Boardsync
// backend. Every request carries the auth token and the realtime client
// identity so the server can tag broadcasts with their origin.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"
)

// ClientIDHeader carries the per-session realtime identity on every
// mutation, so echoed broadcasts can be recognized as self-events.
const ClientIDHeader = "x-client-id"

// Client is the REST transport shared by all endpoint groups.
type Client struct {
	baseURL        string
	token          string
	clientID       string
	httpClient     *http.Client
	logger         *slog.Logger
	onUnauthorized func()
}

// Options configures a Client.
type Options struct {
	// BaseURL is the endpoint root including any path prefix.
	BaseURL string
	// Token is sent as a bearer credential. Empty disables the header.
	Token string
	// ClientID is the realtime identity attached to every request.
	ClientID string
	// Timeout is the fixed deadline for every call. Zero means 15s.
	Timeout time.Duration
	Logger  *slog.Logger
	// OnUnauthorized fires once per 401 response, before the error is
	// returned. Session teardown hangs off this hook.
	OnUnauthorized func()
}

// New creates a REST client.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		baseURL:        opts.BaseURL,
		token:          opts.Token,
		clientID:       opts.ClientID,
		httpClient:     &http.Client{Timeout: timeout},
		logger:         logger,
		onUnauthorized: opts.OnUnauthorized,
	}
}

// ClientID returns the realtime identity this client stamps on requests.
func (c *Client) ClientID() string { return c.clientID }

// Do executes a JSON request against endpoint and decodes the response into
// target when it is non-nil. Any failure leaves target untouched.
func (c *Client) Do(ctx context.Context, method, endpoint string, body, target any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setCommonHeaders(req)

	return c.send(req, target)
}

// DoMultipart executes a multipart/form-data request, used for comment
// attachments where a JSON content type would break the boundary encoding.
func (c *Client) DoMultipart(ctx context.Context, endpoint string, fields map[string]string, fileField, filename string, file io.Reader, target any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("write form field: %w", err)
		}
	}
	part, err := writer.CreateFormFile(fileField, filename)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy attachment: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.setCommonHeaders(req)

	return c.send(req, target)
}

func (c *Client) setCommonHeaders(req *http.Request) {
	if c.clientID != "" {
		req.Header.Set(ClientIDHeader, c.clientID)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) send(req *http.Request, target any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.classifyTransportError(req, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		statusErr := &StatusError{Status: resp.StatusCode}
		var payload struct {
			Message string `json:"message"`
		}
		if decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload); decodeErr == nil {
			statusErr.Message = payload.Message
		}
		if resp.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		c.logger.Debug("request failed", "method", req.Method, "url", req.URL.Path, "status", resp.StatusCode)
		return statusErr
	}

	if target == nil {
		_, err := io.Copy(io.Discard, io.LimitReader(resp.Body, 8<<20))
		return err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) classifyTransportError(req *http.Request, err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() || errors.Is(err, context.DeadlineExceeded) {
		c.logger.Debug("request timed out", "method", req.Method, "url", req.URL.Path)
		return fmt.Errorf("%w: %s %s", ErrTimeout, req.Method, req.URL.Path)
	}
	c.logger.Debug("request unreachable", "method", req.Method, "url", req.URL.Path, "error", err)
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
