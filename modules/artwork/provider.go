package artwork

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/zachfi/streamkeeper/pkg/failure"
)

const (
	ProviderYouTube = "youtube"
	ProviderITunes  = "itunes"
)

// Provider maps a title to a remote image URL. An empty URL with a nil error
// means the provider has nothing for the title.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, title string) (string, error)
}

// YouTube searches videos and uses the best available thumbnail.
type YouTube struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewYouTube(cfg YouTubeConfig, client *http.Client) *YouTube {
	return &YouTube{apiKey: cfg.APIKey, baseURL: strings.TrimRight(cfg.BaseURL, "/"), client: client}
}

func (y *YouTube) Name() string { return ProviderYouTube }

type youtubeThumb struct {
	URL string `json:"url"`
}

type youtubeSearch struct {
	Items []struct {
		Snippet struct {
			Thumbnails map[string]youtubeThumb `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

func (y *YouTube) Lookup(ctx context.Context, title string) (string, error) {
	q := url.Values{
		"part":       {"snippet"},
		"type":       {"video"},
		"maxResults": {"1"},
		"q":          {title},
		"key":        {y.apiKey},
	}

	var res youtubeSearch
	if err := getJSON(ctx, y.client, y.baseURL+"/search?"+q.Encode(), &res); err != nil {
		return "", err
	}
	if len(res.Items) == 0 {
		return "", nil
	}

	thumbs := res.Items[0].Snippet.Thumbnails
	for _, size := range []string{"maxres", "high", "default"} {
		if t, ok := thumbs[size]; ok && t.URL != "" {
			return t.URL, nil
		}
	}
	return "", nil
}

// ITunes searches the music catalog and upsizes the 100px artwork.
type ITunes struct {
	baseURL string
	country string
	client  *http.Client
}

func NewITunes(cfg ITunesConfig, client *http.Client) *ITunes {
	return &ITunes{baseURL: strings.TrimRight(cfg.BaseURL, "/"), country: cfg.Country, client: client}
}

func (i *ITunes) Name() string { return ProviderITunes }

type itunesSearch struct {
	Results []struct {
		ArtworkURL100 string `json:"artworkUrl100"`
	} `json:"results"`
}

func (i *ITunes) Lookup(ctx context.Context, title string) (string, error) {
	q := url.Values{
		"term":  {title},
		"media": {"music"},
		"limit": {"1"},
	}
	if i.country != "" {
		q.Set("country", i.country)
	}

	var res itunesSearch
	if err := getJSON(ctx, i.client, i.baseURL+"/search?"+q.Encode(), &res); err != nil {
		return "", err
	}
	if len(res.Results) == 0 || res.Results[0].ArtworkURL100 == "" {
		return "", nil
	}

	return strings.Replace(res.Results[0].ArtworkURL100, "100x100", "600x600", 1), nil
}

// limited throttles lookups of the wrapped provider.
type limited struct {
	Provider
	limiter *rate.Limiter
}

// RateLimited wraps p so that at most perMinute lookups run each minute.
func RateLimited(p Provider, perMinute int) Provider {
	if perMinute <= 0 {
		return p
	}
	return &limited{Provider: p, limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)}
}

func (l *limited) Lookup(ctx context.Context, title string) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", failure.New(failure.TransientNetworkFailure, l.Name()+" rate limit", err)
	}
	return l.Provider.Lookup(ctx, title)
}

func getJSON(ctx context.Context, client *http.Client, uri string, v interface{}) error {
	const op = "provider lookup"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return failure.New(failure.ParseFailure, op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return failure.New(failure.TransientNetworkFailure, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failure.Newf(failure.TransientNetworkFailure, op, "unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(v); err != nil {
		return failure.New(failure.ParseFailure, op, err)
	}
	return nil
}
