package token

import (
	"flag"
	"os"
	"time"

	"github.com/grafana/dskit/flagext"
	"github.com/zachfi/zkit/pkg/util"
)

const defaultTokenURL = "https://accounts.spotify.com/api/token"

type Config struct {
	TokenURL       string                 `yaml:"token-url,omitempty"`
	ClientID       string                 `yaml:"client-id,omitempty"`
	ClientSecret   string                 `yaml:"client-secret,omitempty"`
	Scopes         flagext.StringSliceCSV `yaml:"scopes,omitempty"`
	RenewBefore    time.Duration          `yaml:"renew-before,omitempty"`
	RequestTimeout time.Duration          `yaml:"request-timeout,omitempty"`
}

// RegisterFlagsAndApplyDefaults reads the credential defaults from
// SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET.
func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.TokenURL, util.PrefixConfig(prefix, "token-url"), defaultTokenURL, "OAuth2 token endpoint.")
	f.StringVar(&cfg.ClientID, util.PrefixConfig(prefix, "client-id"), os.Getenv("SPOTIFY_CLIENT_ID"), "OAuth2 client id.")
	f.StringVar(&cfg.ClientSecret, util.PrefixConfig(prefix, "client-secret"), os.Getenv("SPOTIFY_CLIENT_SECRET"), "OAuth2 client secret.")
	f.Var(&cfg.Scopes, util.PrefixConfig(prefix, "scopes"), "Comma separated scopes to request.")
	f.DurationVar(&cfg.RenewBefore, util.PrefixConfig(prefix, "renew-before"), 60*time.Second, "Fetch a new token when less than this remains.")
	f.DurationVar(&cfg.RequestTimeout, util.PrefixConfig(prefix, "request-timeout"), 10*time.Second, "Timeout for a token request.")
}

func (cfg *Config) Enabled() bool {
	return cfg.ClientID != "" && cfg.ClientSecret != ""
}
