// Package token caches a client-credentials bearer token for browser
// clients of a music catalog API.
package token

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/zachfi/streamkeeper/pkg/failure"
)

var module = "token"

var ErrNotConfigured = errors.New("client credentials are not configured")

// Document is the token response served to clients.
type Document struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Cache holds one token and renews it shortly before it expires. Concurrent
// callers share a single upstream request.
type Cache struct {
	cfg    Config
	cc     *clientcredentials.Config
	client *http.Client
	logger *slog.Logger
	now    func() time.Time

	mu  sync.Mutex
	tok *oauth2.Token
}

func New(cfg Config, client *http.Client, logger *slog.Logger) *Cache {
	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &Cache{
		cfg: cfg,
		cc: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		client: client,
		logger: logger.With("module", module),
		now:    time.Now,
	}
}

func (c *Cache) Enabled() bool { return c.cfg.Enabled() }

// Token returns the cached token, fetching a new one when none is held or
// less than RenewBefore remains.
func (c *Cache) Token(ctx context.Context) (Document, error) {
	if !c.cfg.Enabled() {
		return Document{}, ErrNotConfigured
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stale() {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.client)
		tok, err := c.cc.Token(ctx)
		if err != nil {
			return Document{}, failure.New(failure.TransientNetworkFailure, "fetch token", err)
		}
		c.logger.Debug("fetched token", "expiry", tok.Expiry)
		c.tok = tok
	}

	doc := Document{AccessToken: c.tok.AccessToken, TokenType: c.tok.TokenType}
	if !c.tok.Expiry.IsZero() {
		doc.ExpiresIn = int64(c.tok.Expiry.Sub(c.now()) / time.Second)
	}
	return doc, nil
}

// stale treats a token without an expiry as valid forever.
func (c *Cache) stale() bool {
	if c.tok == nil || c.tok.AccessToken == "" {
		return true
	}
	if c.tok.Expiry.IsZero() {
		return false
	}
	return c.tok.Expiry.Sub(c.now()) < c.cfg.RenewBefore
}
