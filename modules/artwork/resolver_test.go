package artwork

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestResolverEndToEnd(t *testing.T) {
	rt := newCountingTransport()
	rt.handle("yt.test", func(r *http.Request) *http.Response {
		if r.URL.Query().Get("q") != "Song (Live)!" {
			t.Errorf("youtube query = %q", r.URL.Query().Get("q"))
		}
		return respond(r, http.StatusOK, "application/json", `{"items":[]}`)
	})
	rt.handle("itunes.test", func(r *http.Request) *http.Response {
		return respond(r, http.StatusOK, "application/json", `{"results":[{"artworkUrl100":"https://example/art.jpg"}]}`)
	})
	rt.handle("example", func(r *http.Request) *http.Response {
		return respond(r, http.StatusOK, "image/jpeg", "art")
	})

	client := &http.Client{Transport: rt}
	m := newMetrics(prometheus.NewRegistry())
	cache := NewFileCache(t.TempDir(), "/artworks", NewFetcher(client, 0), time.Second, discardLogger(), m)
	providers := []Provider{
		NewYouTube(YouTubeConfig{APIKey: "k", BaseURL: "https://yt.test/youtube/v3"}, client),
		NewITunes(ITunesConfig{BaseURL: "https://itunes.test"}, client),
	}
	r := NewResolver(cache, providers, "/images/default.png", discardLogger(), m)

	first := r.Resolve(context.Background(), "Song (Live)!")
	if first.CacheKey != "song-live" || first.ResolvedURI != "/artworks/song-live.jpg" || first.SourceProvider != ProviderITunes {
		t.Fatalf("first resolution = %+v", first)
	}
	if rt.count("yt.test") != 1 || rt.count("itunes.test") != 1 || rt.count("example") != 1 {
		t.Fatalf("unexpected calls yt=%d itunes=%d img=%d", rt.count("yt.test"), rt.count("itunes.test"), rt.count("example"))
	}

	before := rt.calls.Load()
	second := r.Resolve(context.Background(), "Song (Live)!")
	if second.ResolvedURI != first.ResolvedURI || second.SourceProvider != SourceCache {
		t.Fatalf("second resolution = %+v", second)
	}
	if rt.calls.Load() != before {
		t.Fatalf("cache hit made %d network calls", rt.calls.Load()-before)
	}

	if n := testutil.ToFloat64(m.resolutions.WithLabelValues(SourceCache)); n != 1 {
		t.Fatalf("cache resolutions = %v", n)
	}
}

func TestResolverFallsBackToDefault(t *testing.T) {
	rt := newCountingTransport()
	rt.handle("yt.test", func(r *http.Request) *http.Response {
		return respond(r, http.StatusForbidden, "application/json", `{"error":"quota"}`)
	})
	rt.handle("itunes.test", func(r *http.Request) *http.Response {
		return respond(r, http.StatusOK, "application/json", `{"results":[{"artworkUrl100":"https://broken/art100x100.jpg"}]}`)
	})
	rt.handle("broken", func(r *http.Request) *http.Response {
		return respond(r, http.StatusNotFound, "text/plain", "")
	})

	client := &http.Client{Transport: rt}
	m := newMetrics(prometheus.NewRegistry())
	cache := NewFileCache(t.TempDir(), "/artworks", NewFetcher(client, 0), time.Second, discardLogger(), m)
	r := NewResolver(cache, []Provider{
		NewYouTube(YouTubeConfig{APIKey: "k", BaseURL: "https://yt.test"}, client),
		NewITunes(ITunesConfig{BaseURL: "https://itunes.test"}, client),
	}, "/images/default.png", discardLogger(), m)

	for i := 0; i < 2; i++ {
		e := r.Resolve(context.Background(), "Unknown Track")
		if e.ResolvedURI != "/images/default.png" || e.SourceProvider != SourceDefault {
			t.Fatalf("resolution %d = %+v", i, e)
		}
	}

	// The default image is never cached, so the second call walked the chain again.
	if rt.count("yt.test") != 2 || rt.count("itunes.test") != 2 {
		t.Fatalf("yt=%d itunes=%d", rt.count("yt.test"), rt.count("itunes.test"))
	}
	if cache.Has("unknown-track") {
		t.Fatal("default image was cached")
	}
	if n := testutil.ToFloat64(m.providerErrors.WithLabelValues(ProviderITunes)); n != 2 {
		t.Fatalf("itunes errors = %v", n)
	}
}

func TestResolverBlankTitle(t *testing.T) {
	rt := newCountingTransport()
	client := &http.Client{Transport: rt}
	cache := NewFileCache(t.TempDir(), "/artworks", NewFetcher(client, 0), time.Second, discardLogger(), nil)
	r := NewResolver(cache, []Provider{NewITunes(ITunesConfig{BaseURL: "https://itunes.test"}, client)}, "/d.png", discardLogger(), nil)

	if e := r.Resolve(context.Background(), "   "); e.ResolvedURI != "/d.png" {
		t.Fatalf("Resolve(blank) = %+v", e)
	}
	if rt.calls.Load() != 0 {
		t.Fatal("blank title made network calls")
	}
}

func TestYouTubeThumbnailPreference(t *testing.T) {
	rt := newCountingTransport()
	rt.handle("yt.test", func(r *http.Request) *http.Response {
		return respond(r, http.StatusOK, "application/json",
			`{"items":[{"snippet":{"thumbnails":{"default":{"url":"d"},"high":{"url":"h"}}}}]}`)
	})

	y := NewYouTube(YouTubeConfig{APIKey: "k", BaseURL: "https://yt.test/"}, &http.Client{Transport: rt})
	got, err := y.Lookup(context.Background(), "x")
	if err != nil {
		t.Fatal(err)
	}
	if got != "h" {
		t.Fatalf("Lookup() = %q, want high thumbnail", got)
	}
}

func TestITunesUpsizesArtwork(t *testing.T) {
	rt := newCountingTransport()
	rt.handle("itunes.test", func(r *http.Request) *http.Response {
		if r.URL.Query().Get("country") != "us" {
			t.Errorf("country = %q", r.URL.Query().Get("country"))
		}
		return respond(r, http.StatusOK, "application/json",
			`{"results":[{"artworkUrl100":"https://is1.test/img/100x100bb.jpg"}]}`)
	})

	i := NewITunes(ITunesConfig{BaseURL: "https://itunes.test", Country: "us"}, &http.Client{Transport: rt})
	got, err := i.Lookup(context.Background(), "x")
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://is1.test/img/600x600bb.jpg" {
		t.Fatalf("Lookup() = %q", got)
	}
}

func TestRateLimitedHonoursContext(t *testing.T) {
	rt := newCountingTransport()
	rt.handle("itunes.test", func(r *http.Request) *http.Response {
		return respond(r, http.StatusOK, "application/json", `{"results":[]}`)
	})
	p := RateLimited(NewITunes(ITunesConfig{BaseURL: "https://itunes.test"}, &http.Client{Transport: rt}), 1)

	if _, err := p.Lookup(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := p.Lookup(ctx, "x"); err == nil {
		t.Fatal("expected the second lookup to be throttled")
	}
	if rt.count("itunes.test") != 1 {
		t.Fatalf("lookups = %d", rt.count("itunes.test"))
	}
}
