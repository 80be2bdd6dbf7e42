package accountsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// Client talks to the account API without credentials.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	// Retries is how many times an idempotent GET is retried after a network
	// error or a 5xx answer. Zero disables retries.
	Retries uint64
}

// NewClient talks to the account service at baseURL, for example
// "https://api.bloodsync.example". It times out requests after ten seconds and
// retries idempotent reads twice.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Retries:    2,
	}
}

// envelope is the success body every endpoint answers with.
type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
}

type request struct {
	method      string
	path        string
	token       string
	body        io.Reader
	contentType string
}

func (c *Client) url(path string) string {
	return c.BaseURL + path
}

// do sends req and decodes the envelope's data into out, which may be nil.
// It returns the envelope message.
func (c *Client) do(ctx context.Context, req request, out any) (string, error) {
	if req.method != http.MethodGet || c.Retries == 0 {
		return c.once(ctx, req, out)
	}

	var msg string
	backoff := retry.WithMaxRetries(c.Retries, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		msg, err = c.once(ctx, req, out)
		if retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	return msg, err
}

func (c *Client) once(ctx context.Context, req request, out any) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.url(req.path), req.body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", parseErrorResponse(resp, body)
	}
	if resp.StatusCode == http.StatusNoContent || len(body) == 0 {
		return "", nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return "", fmt.Errorf("failed to decode response data: %w", err)
		}
	}

	return env.Message, nil
}

func jsonRequest(method, path, token string, payload any) (request, error) {
	req := request{method: method, path: path, token: token}
	if payload == nil {
		return req, nil
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return req, fmt.Errorf("failed to encode request: %w", err)
	}
	req.body = bytes.NewReader(b)
	req.contentType = "application/json"
	return req, nil
}

func retryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}
