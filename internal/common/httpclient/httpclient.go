package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// Configurator provides server location and the current bearer token.
type Configurator interface {
	GetServerURL() string
	GetToken() string
}

// HTTPError represents an error response from the server.
type HTTPError struct {
	StatusCode int    // HTTP status code of the error
	Message    string // message from the error body, or the raw body
}

// Error implements the error interface for HTTPError.
func (e *HTTPError) Error() string {
	return e.Message
}

// HTTPClient makes requests to a REST API server.
type HTTPClient struct {
	config       Configurator
	httpClient   *http.Client
	readAttempts uint
	retryDelay   time.Duration
}

// ClientOptions contains options for configuring the HTTP client.
type ClientOptions struct {
	Timeout               time.Duration // per-request timeout; zero means none
	ReadAttempts          uint          // attempts for GET requests; zero means one
	RetryDelay            time.Duration // base delay between GET attempts
	DisableCertValidation bool          // skips TLS certificate validation
}

// NewClient creates a new HTTP client using the provided configuration.
func NewClient(config Configurator, opts ...ClientOptions) *HTTPClient {
	clientOpts := ClientOptions{}
	if len(opts) > 0 {
		clientOpts = opts[0]
	}
	return NewClientWithOptions(config, clientOpts)
}

// NewClientWithOptions creates a new HTTP client using the provided configuration and options.
func NewClientWithOptions(config Configurator, opts ClientOptions) *HTTPClient {
	httpClient := &http.Client{Timeout: opts.Timeout}

	if opts.DisableCertValidation {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		}
	}

	attempts := opts.ReadAttempts
	if attempts == 0 {
		attempts = 1
	}
	delay := opts.RetryDelay
	if delay == 0 {
		delay = 200 * time.Millisecond
	}

	return &HTTPClient{
		config:       config,
		httpClient:   httpClient,
		readAttempts: attempts,
		retryDelay:   delay,
	}
}

// RequestOptions contains options for making HTTP requests.
type RequestOptions struct {
	Method      string            // HTTP method
	Path        string            // API endpoint path
	QueryParams map[string]string // optional query parameters
	Body        []byte            // optional request body
}

// DoRequest makes an HTTP request with the given options. GET requests are retried on
// transport errors and 5xx responses up to the configured attempts; other methods are
// sent exactly once.
func (c *HTTPClient) DoRequest(ctx context.Context, opts RequestOptions) ([]byte, error) {
	if opts.Method != http.MethodGet {
		return c.do(ctx, opts)
	}

	var body []byte
	err := retry.Do(func() error {
		var err error
		body, err = c.do(ctx, opts)
		return err
	},
		retry.Context(ctx),
		retry.Attempts(c.readAttempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			log.Debug().Err(err).Uint("attempt", n+1).Str("path", opts.Path).Msg("retrying request")
		}),
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *HTTPClient) do(ctx context.Context, opts RequestOptions) ([]byte, error) {
	u, err := url.Parse(c.config.GetServerURL())
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %v", err)
	}
	u.Path = path.Join("/", u.Path, opts.Path)

	q := u.Query()
	for k, v := range opts.QueryParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, opts.Method, u.String(), bytes.NewReader(opts.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := c.config.GetToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, newHTTPError(resp.StatusCode, body)
	}
	return body, nil
}

func newHTTPError(status int, body []byte) *HTTPError {
	if gjson.ValidBytes(body) {
		if msg := gjson.GetBytes(body, "error"); msg.Exists() && msg.String() != "" {
			return &HTTPError{StatusCode: status, Message: msg.String()}
		}
		if msg := gjson.GetBytes(body, "message"); msg.Exists() && msg.String() != "" {
			return &HTTPError{StatusCode: status, Message: msg.String()}
		}
	}
	if status == http.StatusNotFound && len(body) == 0 {
		return &HTTPError{StatusCode: status, Message: "server doesn't implement this endpoint"}
	}
	if len(body) == 0 {
		return &HTTPError{StatusCode: status, Message: http.StatusText(status)}
	}
	return &HTTPError{StatusCode: status, Message: string(body)}
}

// isRetryable reports whether a failed GET may be attempted again. Client errors are final.
func isRetryable(err error) bool {
	if httpErr, ok := err.(*HTTPError); ok {
		return httpErr.StatusCode >= 500
	}
	return true
}

// PostJSON posts body to path and returns the response body.
func (c *HTTPClient) PostJSON(ctx context.Context, path string, body []byte) ([]byte, error) {
	return c.DoRequest(ctx, RequestOptions{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
	})
}

// GetJSON fetches path with the given query parameters.
func (c *HTTPClient) GetJSON(ctx context.Context, path string, queryParams map[string]string) ([]byte, error) {
	return c.DoRequest(ctx, RequestOptions{
		Method:      http.MethodGet,
		Path:        path,
		QueryParams: queryParams,
	})
}
