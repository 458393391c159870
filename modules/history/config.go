package history

import (
	"flag"

	"github.com/zachfi/zkit/pkg/util"
)

const (
	defaultBufferSize = 64
	defaultLimit      = 20
	maxLimit          = 500
)

type Config struct {
	Enabled    bool   `yaml:"enabled,omitempty"`
	Path       string `yaml:"path,omitempty"`
	BufferSize int    `yaml:"buffer-size,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.BoolVar(&cfg.Enabled, util.PrefixConfig(prefix, "enabled"), false, "Record every new title to the history database.")
	f.StringVar(&cfg.Path, util.PrefixConfig(prefix, "path"), "history.db", "SQLite database file.")
	f.IntVar(&cfg.BufferSize, util.PrefixConfig(prefix, "buffer-size"), defaultBufferSize, "Titles queued for writing before new ones are dropped.")
}
