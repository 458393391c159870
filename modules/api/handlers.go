package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/zachfi/streamkeeper/modules/player"
	"github.com/zachfi/streamkeeper/modules/token"
	"github.com/zachfi/streamkeeper/pkg/slug"
)

type nowPlayingResponse struct {
	Title  string `json:"title"`
	Artist string `json:"artist,omitempty"`
}

// nowPlaying always answers 200; the lookup degrades to a placeholder.
func (a *API) nowPlaying(w http.ResponseWriter, r *http.Request) {
	reg := a.deps.Player.Registry()

	id := r.URL.Query().Get("endpoint")
	if id == "" {
		id = a.deps.Player.Status().Session.ActiveEndpointID
	}
	ep, ok := reg.ByID(id)
	if !ok {
		ep = reg.Primary()
	}

	rec := a.deps.Lookup.NowPlaying(r.Context(), ep)
	a.writeJSON(w, http.StatusOK, nowPlayingResponse{Title: rec.Display(), Artist: rec.Artist})
}

func (a *API) token(w http.ResponseWriter, r *http.Request) {
	doc, err := a.deps.Tokens.Token(r.Context())
	switch {
	case errors.Is(err, token.ErrNotConfigured):
		a.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		a.logger.Error("token request failed", "err", err)
		a.writeError(w, http.StatusBadGateway, "token request failed")
		return
	}
	a.writeJSON(w, http.StatusOK, doc)
}

type saveArtworkRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type saveArtworkResponse struct {
	URL string `json:"url"`
}

func (a *API) saveArtwork(w http.ResponseWriter, r *http.Request) {
	var req saveArtworkRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" || strings.TrimSpace(req.Title) == "" {
		a.writeError(w, http.StatusBadRequest, "url and title are required")
		return
	}

	stored, err := a.deps.Artifacts.Put(r.Context(), slug.Make(req.Title), req.URL)
	if err != nil {
		a.logger.Error("failed to save artwork", "title", req.Title, "url", req.URL, "err", err)
		a.writeError(w, http.StatusInternalServerError, "failed to save artwork")
		return
	}
	a.writeJSON(w, http.StatusOK, saveArtworkResponse{URL: stored})
}

func (a *API) endpoints(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, a.deps.Player.Registry().All())
}

func (a *API) history(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			a.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := a.deps.History.Recent(r.Context(), limit)
	if err != nil {
		a.logger.Error("history query failed", "err", err)
		a.writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	a.writeJSON(w, http.StatusOK, entries)
}

func (a *API) playerStatus(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, a.deps.Player.Status())
}

func (a *API) playerStart(w http.ResponseWriter, r *http.Request) {
	a.control(w, a.deps.Player.Start(r.Context()))
}

func (a *API) playerPause(w http.ResponseWriter, r *http.Request) {
	a.control(w, a.deps.Player.Pause(r.Context()))
}

func (a *API) playerAuto(w http.ResponseWriter, r *http.Request) {
	a.control(w, a.deps.Player.SetAutomatic(r.Context()))
}

type volumeRequest struct {
	Volume *float64 `json:"volume"`
}

func (a *API) playerVolume(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if err := decodeBody(w, r, &req); err != nil || req.Volume == nil {
		a.writeError(w, http.StatusBadRequest, "volume is required")
		return
	}
	a.control(w, a.deps.Player.SetVolume(r.Context(), *req.Volume))
}

type endpointRequest struct {
	ID string `json:"id"`
}

func (a *API) playerEndpoint(w http.ResponseWriter, r *http.Request) {
	var req endpointRequest
	if err := decodeBody(w, r, &req); err != nil || req.ID == "" {
		a.writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	a.control(w, a.deps.Player.SwitchEndpoint(r.Context(), req.ID))
}

// control answers a player command with the resulting status.
func (a *API) control(w http.ResponseWriter, err error) {
	if err != nil {
		a.writeError(w, statusFor(err), err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, a.deps.Player.Status())
}

var _ Player = (*player.Player)(nil)
