// Package httpclient provides a configurable HTTP client for making requests to the
// messaging backend's REST API. It adds bearer authentication from a Configurator, maps
// error bodies onto HTTPError, and retries idempotent requests on transport failure.
package httpclient

import (
	"context"
)

// HTTPClientInterface defines the interface for HTTP client implementations.
type HTTPClientInterface interface {
	// DoRequest makes an HTTP request with the given options and returns the response body.
	DoRequest(ctx context.Context, opts RequestOptions) ([]byte, error)

	// PostJSON posts body to path and returns the response body.
	PostJSON(ctx context.Context, path string, body []byte) ([]byte, error)

	// GetJSON fetches path with the given query parameters.
	GetJSON(ctx context.Context, path string, queryParams map[string]string) ([]byte, error)
}

var _ HTTPClientInterface = &HTTPClient{}
