package shoutcast

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// maxPlaylistBytes bounds how much of a playlist body is read.
const maxPlaylistBytes = 64 * 1024

// IsPlaylistURL reports whether u names a .pls, .m3u or .m3u8 playlist.
func IsPlaylistURL(u string) bool {
	p := u
	if parsed, err := url.Parse(u); err == nil {
		p = parsed.Path
	}

	switch strings.ToLower(path.Ext(p)) {
	case ".pls", ".m3u", ".m3u8":
		return true
	}
	return false
}

// ResolvePlaylist fetches the playlist at u and returns the first stream URL
// it lists.
func ResolvePlaylist(ctx context.Context, client *http.Client, u, userAgent string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{URL: u, Code: resp.StatusCode}
	}

	// A server may answer a playlist URL with the stream itself.
	if resp.Header.Get("icy-metaint") != "" {
		return u, nil
	}

	body := io.LimitReader(resp.Body, maxPlaylistBytes)
	contentType := resp.Header.Get("Content-Type")

	isPLS := strings.Contains(contentType, "audio/x-scpls") ||
		strings.Contains(contentType, "application/pls+xml") ||
		strings.HasSuffix(strings.ToLower(u), ".pls")
	if isPLS {
		return ParsePLS(body)
	}

	return ParseM3U(body)
}

// ParsePLS returns the first FileN= entry of a PLS playlist.
func ParsePLS(body io.Reader) (string, error) {
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(strings.ToLower(line), "file") {
			continue
		}

		_, value, ok := strings.Cut(line, "=")
		if value = strings.TrimSpace(value); ok && value != "" {
			return value, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", errors.Wrap(err, "failed to read playlist")
	}

	return "", errors.New("no stream URL found in PLS playlist")
}

// ParseM3U returns the first http(s) entry of an M3U playlist, skipping
// comments and blank lines.
func ParseM3U(body io.Reader) (string, error) {
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			return line, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", errors.Wrap(err, "failed to read playlist")
	}

	return "", errors.New("no stream URL found in M3U playlist")
}
