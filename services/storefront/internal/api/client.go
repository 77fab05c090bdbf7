package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aquamarinepk/aqm"
)

const defaultTimeout = 30 * time.Second

// Credentials supplies the bearer token and is told when the server rejects it.
type Credentials interface {
	Token() string
	Expire(ctx context.Context)
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	creds      Credentials
	logger     aqm.Logger
}

// NewClient builds a client for services.api.url.
func NewClient(config *aqm.Config, logger aqm.Logger) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	baseURL, _ := config.GetString("services.api.url")
	if baseURL == "" {
		return nil, fmt.Errorf("services.api.url not configured")
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}, nil
}

// SetCredentials attaches the token source. Session and client reference each
// other, so this happens after both exist.
func (c *Client) SetCredentials(creds Credentials) {
	c.creds = creds
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Errors  []FieldError    `json:"errors"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.creds != nil {
		if token := c.creds.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindTransport, Status: resp.StatusCode, Message: "read response", Err: err}
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 400 {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	if resp.StatusCode >= 400 {
		apiErr := &Error{
			Kind:    kindFor(resp.StatusCode),
			Status:  resp.StatusCode,
			Message: env.Message,
			Fields:  env.Errors,
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		c.logger.Debug("api request failed", "method", method, "path", path, "status", resp.StatusCode)
		if apiErr.Kind == KindAuthExpired && c.creds != nil {
			c.creds.Expire(ctx)
		}
		return apiErr
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
