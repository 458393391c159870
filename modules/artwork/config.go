package artwork

import (
	"flag"
	"time"

	"github.com/grafana/dskit/flagext"
	"github.com/zachfi/zkit/pkg/util"
)

const (
	defaultMaxImageBytes = 10 * 1024 * 1024
	defaultFetchTimeout  = 10 * time.Second
)

type Config struct {
	Dir          string                 `yaml:"dir,omitempty"`
	URLPrefix    string                 `yaml:"url-prefix,omitempty"`
	DefaultImage string                 `yaml:"default-image,omitempty"`
	Providers    flagext.StringSliceCSV `yaml:"providers,omitempty"`

	MaxImageBytes    int64         `yaml:"max-image-bytes,omitempty"`
	FetchTimeout     time.Duration `yaml:"fetch-timeout,omitempty"`
	LookupsPerMinute int           `yaml:"lookups-per-minute,omitempty"`

	YouTube YouTubeConfig `yaml:"youtube,omitempty"`
	ITunes  ITunesConfig  `yaml:"itunes,omitempty"`
}

type YouTubeConfig struct {
	APIKey  string `yaml:"api-key,omitempty"`
	BaseURL string `yaml:"base-url,omitempty"`
}

type ITunesConfig struct {
	BaseURL string `yaml:"base-url,omitempty"`
	Country string `yaml:"country,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.Dir, util.PrefixConfig(prefix, "dir"), "public/artworks", "Directory holding cached artwork files.")
	f.StringVar(&cfg.URLPrefix, util.PrefixConfig(prefix, "url-prefix"), "/artworks", "URL path cached artwork is served under.")
	f.StringVar(&cfg.DefaultImage, util.PrefixConfig(prefix, "default-image"), "/images/station-logo.png", "Image returned when no provider has artwork. Never cached.")

	cfg.Providers = flagext.StringSliceCSV{ProviderYouTube, ProviderITunes}
	f.Var(&cfg.Providers, util.PrefixConfig(prefix, "providers"), "Comma separated provider lookup order.")

	f.Int64Var(&cfg.MaxImageBytes, util.PrefixConfig(prefix, "max-image-bytes"), defaultMaxImageBytes, "Largest artwork download accepted.")
	f.DurationVar(&cfg.FetchTimeout, util.PrefixConfig(prefix, "fetch-timeout"), defaultFetchTimeout, "Timeout for provider lookups and downloads.")
	f.IntVar(&cfg.LookupsPerMinute, util.PrefixConfig(prefix, "lookups-per-minute"), 30, "Per-provider lookup rate limit, 0 disables limiting.")

	f.StringVar(&cfg.YouTube.APIKey, util.PrefixConfig(prefix, "youtube.api-key"), "", "YouTube Data API key. The provider is skipped when empty.")
	f.StringVar(&cfg.YouTube.BaseURL, util.PrefixConfig(prefix, "youtube.base-url"), "https://www.googleapis.com/youtube/v3", "YouTube Data API base URL.")
	f.StringVar(&cfg.ITunes.BaseURL, util.PrefixConfig(prefix, "itunes.base-url"), "https://itunes.apple.com", "iTunes Search API base URL.")
	f.StringVar(&cfg.ITunes.Country, util.PrefixConfig(prefix, "itunes.country"), "", "Optional iTunes storefront country code.")
}
