package circuitbreaker

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPWrapper wraps an HTTP client with a circuit breaker. Server errors
// (5xx) count as breaker failures even though the response is still
// returned to the caller.
type HTTPWrapper struct {
	breaker *Breaker
	client  *http.Client
}

// NewHTTPWrapper creates a breaker-guarded HTTP client.
func NewHTTPWrapper(name string, config Config, client *http.Client, logger *zap.Logger) *HTTPWrapper {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPWrapper{
		breaker: New(name, config, logger),
		client:  client,
	}
}

// Do executes the request through the circuit breaker.
func (w *HTTPWrapper) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response

	err := w.breaker.Execute(req.Context(), func() error {
		var doErr error
		resp, doErr = w.client.Do(req)
		if doErr != nil {
			return doErr
		}
		if resp.StatusCode >= 500 {
			return &httpStatusError{status: resp.StatusCode}
		}
		return nil
	})

	// A 5xx trips the breaker but the response still belongs to the caller.
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// State exposes the underlying breaker state.
func (w *HTTPWrapper) State() State {
	return w.breaker.State()
}

type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("server error: status %d", e.status)
}
