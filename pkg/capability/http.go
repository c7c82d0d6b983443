package capability

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// CredentialSource looks up secrets by key.
type CredentialSource interface {
	Get(key string) (string, error)
}

// HTTPConfig configures an HTTPClient.
type HTTPConfig struct {
	Timeout time.Duration
	// Credentials and CredentialKey, when both set, add a bearer token to every request.
	Credentials   CredentialSource
	CredentialKey string
	// MaxBody bounds the bytes read from a response; 0 means 10 MiB.
	MaxBody int64
}

// HTTPClient performs node requests with net/http.
type HTTPClient struct {
	config     HTTPConfig
	httpClient *http.Client
}

// NewHTTPClient creates a client, defaulting the timeout to 30s.
func NewHTTPClient(config HTTPConfig) *HTTPClient {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxBody == 0 {
		config.MaxBody = 10 << 20
	}
	return &HTTPClient{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// Do sends req. Responses with status 400 and above are returned together with an error.
func (c *HTTPClient) Do(ctx context.Context, req Request) (Response, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	if req.Body != "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for key, v := range req.Headers {
		httpReq.Header.Set(key, v)
	}
	if c.config.Credentials != nil && c.config.CredentialKey != "" {
		token, err := c.config.Credentials.Get(c.config.CredentialKey)
		if err != nil {
			return Response{}, fmt.Errorf("failed to load credential %s: %w", c.config.CredentialKey, err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBody))
	if err != nil {
		return Response{Status: resp.StatusCode}, fmt.Errorf("failed to read response: %w", err)
	}
	out := Response{Status: resp.StatusCode, Body: string(data)}
	if resp.StatusCode >= 400 {
		return out, fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return out, nil
}
