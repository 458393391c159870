package metadata

import (
	"flag"
	"time"

	"github.com/grafana/dskit/backoff"
	"github.com/zachfi/zkit/pkg/util"
)

const (
	defaultPollInterval   = 10 * time.Second
	defaultRequestTimeout = 5 * time.Second
	defaultPlaceholder    = "Live"
)

type Config struct {
	PollInterval     time.Duration  `yaml:"poll-interval,omitempty"`
	RequestTimeout   time.Duration  `yaml:"request-timeout,omitempty"`
	Placeholder      string         `yaml:"placeholder,omitempty"`
	UserAgent        string         `yaml:"user-agent,omitempty"`
	InBandContinuous bool           `yaml:"inband-continuous,omitempty"`
	Reconnect        backoff.Config `yaml:"reconnect,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.DurationVar(&cfg.PollInterval, util.PrefixConfig(prefix, "poll-interval"), defaultPollInterval,
		"Interval between status document polls and one-shot in-band reads.")
	f.DurationVar(&cfg.RequestTimeout, util.PrefixConfig(prefix, "request-timeout"), defaultRequestTimeout,
		"Timeout for a single metadata request or health probe.")
	f.StringVar(&cfg.Placeholder, util.PrefixConfig(prefix, "placeholder"), defaultPlaceholder,
		"Title reported when no source yields one.")
	f.StringVar(&cfg.UserAgent, util.PrefixConfig(prefix, "user-agent"), "streamkeeper/1.0",
		"User-Agent sent to upstream servers.")
	f.BoolVar(&cfg.InBandContinuous, util.PrefixConfig(prefix, "inband-continuous"), true,
		"Keep in-band connections open and report every title change instead of polling.")
	f.DurationVar(&cfg.Reconnect.MinBackoff, util.PrefixConfig(prefix, "reconnect.min-period"), time.Second,
		"Initial delay before re-subscribing to a push channel.")
	f.DurationVar(&cfg.Reconnect.MaxBackoff, util.PrefixConfig(prefix, "reconnect.max-period"), 30*time.Second,
		"Maximum delay between push channel subscription attempts.")
}
