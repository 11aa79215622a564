// Package notion is a minimal client for the pieces of the Notion API
// the bridge needs: database/data-source schema retrieval, page queries
// and creation, block children appends, and the File Upload API. Built
// directly on net/http because no published SDK covers the 2025-09-03
// data-source indirection or file uploads.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.notion.com"

// ErrSchemaUnavailable marks a database whose data source returned no
// usable property map. Distinct from "no matching property found", which
// is tolerated.
var ErrSchemaUnavailable = errors.New("notion returned no usable property map")

// HTTPClient interface for testability
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is an authenticated Notion API client pinned to one API
// version. Requests are rate limited to Notion's documented average of
// three per second.
type Client struct {
	httpClient HTTPClient
	baseURL    string
	token      string
	version    string
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient creates a Notion client. No explicit request timeout is set:
// multi-part sends of large attachments can legitimately run long, and
// all blocking here is on outbound calls bounded by transport defaults.
func NewClient(token, version string, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{},
		baseURL:    defaultBaseURL,
		token:      token,
		version:    version,
		limiter:    rate.NewLimiter(rate.Limit(3), 3),
		logger:     logger,
	}
}

// NewClientWithHTTP creates a client over an injected transport and base
// URL. Used by tests.
func NewClientWithHTTP(httpClient HTTPClient, baseURL, token, version string, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		version:    version,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		logger:     logger,
	}
}

// APIError is a non-2xx Notion response. Message is the parsed error
// body's message field when the body is JSON, else the raw body text.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// ClassifyFailure maps an error from any client call to a stable failure
// class for operator triage.
func ClassifyFailure(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrSchemaUnavailable) {
		return "schema_unavailable"
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return "unknown"
	}
	switch apiErr.Code {
	case "object_not_found", "unauthorized", "rate_limited",
		"validation_error", "conflict_error", "request_timeout":
		return apiErr.Code
	}
	switch apiErr.StatusCode {
	case http.StatusNotFound:
		return "object_not_found"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusBadRequest:
		return "validation_error"
	case http.StatusConflict:
		return "conflict_error"
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return "request_timeout"
	}
	return "api_response_error"
}

// doJSON sends a JSON request and returns the raw response body.
func (c *Client) doJSON(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, method, path)
}

// doMultipart sends a multipart/form-data request carrying one file part
// plus optional extra fields. Used only by the file-upload send call.
func (c *Client) doMultipart(ctx context.Context, path string, fields map[string]string, fileName, contentType string, data []byte) (json.RawMessage, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write form field: %w", err)
		}
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write form part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize form body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.send(req, http.MethodPost, path)
}

func (c *Client) send(req *http.Request, method, path string) (json.RawMessage, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter interrupted: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.version)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: failed to read response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(respBody)),
		}
		var parsed struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &parsed) == nil {
			apiErr.Code = parsed.Code
			if parsed.Message != "" {
				apiErr.Message = parsed.Message
			}
		}
		c.logger.Warn("Notion API call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("code", apiErr.Code))
		return nil, apiErr
	}

	return respBody, nil
}
