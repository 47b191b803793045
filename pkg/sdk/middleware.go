package sdk

import (
	"log/slog"
	"net/http"
	"time"
)

// WithRequestLogging wraps an *http.Client so every request made through
// it (including the ones Client issues) is logged with its method,
// path, status code, and latency. Pass the result in as Config.HTTPClient.
func WithRequestLogging(wrapped *http.Client, log *slog.Logger) *http.Client {
	if wrapped == nil {
		wrapped = http.DefaultClient
	}
	if log == nil {
		log = slog.Default()
	}
	transport := wrapped.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &http.Client{
		Timeout: wrapped.Timeout,
		Transport: &loggingTransport{
			wrapped: transport,
			log:     log,
		},
	}
}

type loggingTransport struct {
	wrapped http.RoundTripper
	log     *slog.Logger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.wrapped.RoundTrip(req)
	if err != nil {
		t.log.Warn("sdk: request failed", "method", req.Method, "path", req.URL.Path, "error", err, "elapsed", time.Since(start))
		return resp, err
	}
	t.log.Info("sdk: request", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode, "elapsed", time.Since(start))
	return resp, err
}
