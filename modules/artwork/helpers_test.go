package artwork

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingTransport answers requests by host and counts every round trip.
type countingTransport struct {
	mu       sync.Mutex
	calls    atomic.Int32
	byHost   map[string]int
	handlers map[string]func(*http.Request) *http.Response
}

func newCountingTransport() *countingTransport {
	return &countingTransport{
		byHost:   map[string]int{},
		handlers: map[string]func(*http.Request) *http.Response{},
	}
}

func (c *countingTransport) handle(host string, fn func(*http.Request) *http.Response) {
	c.handlers[host] = fn
}

func (c *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.byHost[req.URL.Host]++
	c.mu.Unlock()

	fn, ok := c.handlers[req.URL.Host]
	if !ok {
		return respond(req, http.StatusNotFound, "text/plain", "no route"), nil
	}
	return fn(req), nil
}

func (c *countingTransport) count(host string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.byHost[host]
}

func respond(req *http.Request, code int, contentType, body string) *http.Response {
	return &http.Response{
		StatusCode: code,
		Header:     http.Header{"Content-Type": {contentType}},
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Request:    req,
	}
}
