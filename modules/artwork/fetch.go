package artwork

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/zachfi/streamkeeper/pkg/failure"
)

// Fetcher downloads image bytes.
type Fetcher struct {
	client    *http.Client
	maxBytes  int64
	userAgent string
}

func NewFetcher(client *http.Client, maxBytes int64) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxImageBytes
	}
	return &Fetcher{client: client, maxBytes: maxBytes, userAgent: "streamkeeper/1.0"}
}

// Fetch requires a 200 response with an image content type no larger than
// the configured limit.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	const op = "fetch image"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, failure.New(failure.ParseFailure, op, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, failure.New(failure.TransientNetworkFailure, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, failure.Newf(failure.TransientNetworkFailure, op, "unexpected status code: %d", resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return nil, failure.Newf(failure.ParseFailure, op, "url is not an image: %s", ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, failure.New(failure.TransientNetworkFailure, op, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, failure.Newf(failure.ParseFailure, op, "image exceeds %d bytes", f.maxBytes)
	}
	if len(data) == 0 {
		return nil, failure.Newf(failure.ParseFailure, op, "empty image body")
	}

	return data, nil
}
