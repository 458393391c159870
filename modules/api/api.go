// Package api serves the relay's HTTP endpoints on the dskit server router.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/zachfi/streamkeeper/modules/history"
	"github.com/zachfi/streamkeeper/modules/metadata"
	"github.com/zachfi/streamkeeper/modules/player"
	"github.com/zachfi/streamkeeper/modules/token"
	"github.com/zachfi/streamkeeper/pkg/registry"
)

var module = "api"

type Player interface {
	Status() player.Status
	Registry() *registry.Registry
	Start(ctx context.Context) error
	Pause(ctx context.Context) error
	SetVolume(ctx context.Context, v float64) error
	SwitchEndpoint(ctx context.Context, id string) error
	SetAutomatic(ctx context.Context) error
}

type NowPlayingLookup interface {
	NowPlaying(ctx context.Context, ep registry.Endpoint) metadata.Record
}

type TokenSource interface {
	Token(ctx context.Context) (token.Document, error)
}

type ArtifactStore interface {
	Put(ctx context.Context, key, sourceURI string) (string, error)
	Dir() string
}

type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

type Dependencies struct {
	Player    Player
	Lookup    NowPlayingLookup
	Tokens    TokenSource
	Artifacts ArtifactStore
	History   HistoryReader

	// ArtworkPrefix is the URL path stored artifacts are served under.
	ArtworkPrefix string
}

type API struct {
	deps   Dependencies
	logger *slog.Logger
}

func New(deps Dependencies, logger *slog.Logger) *API {
	if deps.ArtworkPrefix == "" {
		deps.ArtworkPrefix = "/artworks"
	}
	return &API{
		deps:   deps,
		logger: logger.With("module", module),
	}
}

func (a *API) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/now-playing", a.nowPlaying).Methods(http.MethodGet)
	r.HandleFunc("/spotify-like-token", a.token).Methods(http.MethodGet)
	r.HandleFunc("/save-artwork", a.saveArtwork).Methods(http.MethodPost)

	prefix := strings.TrimSuffix(a.deps.ArtworkPrefix, "/") + "/"
	r.PathPrefix(prefix).Handler(http.StripPrefix(prefix, artifactServer(a.deps.Artifacts.Dir()))).Methods(http.MethodGet, http.MethodHead)

	r.HandleFunc("/endpoints", a.endpoints).Methods(http.MethodGet)
	r.HandleFunc("/history", a.history).Methods(http.MethodGet)

	p := r.PathPrefix("/player").Subrouter()
	p.HandleFunc("/status", a.playerStatus).Methods(http.MethodGet)
	p.HandleFunc("/start", a.playerStart).Methods(http.MethodPost)
	p.HandleFunc("/pause", a.playerPause).Methods(http.MethodPost)
	p.HandleFunc("/volume", a.playerVolume).Methods(http.MethodPost)
	p.HandleFunc("/endpoint", a.playerEndpoint).Methods(http.MethodPost)
	p.HandleFunc("/auto", a.playerAuto).Methods(http.MethodPost)
}

// artifactServer serves files from dir, hiding dot entries such as the lock
// directory.
func artifactServer(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, part := range strings.Split(r.URL.Path, "/") {
			if strings.HasPrefix(part, ".") {
				http.NotFound(w, r)
				return
			}
		}
		files.ServeHTTP(w, r)
	})
}
