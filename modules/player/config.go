package player

import (
	"flag"
	"time"

	"github.com/zachfi/zkit/pkg/util"
)

const (
	DeviceStream = "stream"
	DeviceVLC    = "vlc"

	defaultPlayableBytes  = 8 * 1024
	defaultConnectTimeout = 10 * time.Second
	defaultStallTimeout   = 15 * time.Second
)

type Config struct {
	Device        string  `yaml:"device,omitempty"`
	InitialVolume float64 `yaml:"initial-volume,omitempty"`
	Autostart     bool    `yaml:"autostart,omitempty"`
	PlayableBytes int     `yaml:"playable-bytes,omitempty"`

	// ConnectTimeout bounds the time from attaching to the first audio
	// frame. StallTimeout bounds the gap between reads once playing.
	ConnectTimeout time.Duration  `yaml:"connect-timeout,omitempty"`
	StallTimeout   time.Duration  `yaml:"stall-timeout,omitempty"`
	Failover       FailoverPolicy `yaml:"failover,omitempty"`
}

// FailoverPolicy is read-only once the player is running.
type FailoverPolicy struct {
	// HealthCheckInterval is the delay before retrying a failed endpoint.
	HealthCheckInterval time.Duration `yaml:"health-check-interval,omitempty"`
	// RestoreCheckInterval is how often the primary is probed while a
	// backup is active.
	RestoreCheckInterval        time.Duration `yaml:"restore-check-interval,omitempty"`
	ConsecutiveFailureThreshold int           `yaml:"consecutive-failure-threshold,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.Device, util.PrefixConfig(prefix, "device"), DeviceStream, "Output device: stream (consume only) or vlc (requires the libvlc build tag).")
	f.Float64Var(&cfg.InitialVolume, util.PrefixConfig(prefix, "initial-volume"), 1.0, "Initial volume between 0 and 1.")
	f.BoolVar(&cfg.Autostart, util.PrefixConfig(prefix, "autostart"), false, "Start playback of the primary endpoint on startup.")
	f.IntVar(&cfg.PlayableBytes, util.PrefixConfig(prefix, "playable-bytes"), defaultPlayableBytes, "Bytes the stream device inspects for audio frames before giving up.")
	f.DurationVar(&cfg.ConnectTimeout, util.PrefixConfig(prefix, "connect-timeout"), defaultConnectTimeout, "Time allowed between attaching a stream and its first audio frame.")
	f.DurationVar(&cfg.StallTimeout, util.PrefixConfig(prefix, "stall-timeout"), defaultStallTimeout, "Longest gap between stream reads before playback is considered failed.")

	cfg.Failover.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "failover"), f)
}

func (cfg *FailoverPolicy) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.DurationVar(&cfg.HealthCheckInterval, util.PrefixConfig(prefix, "health-check-interval"), 5*time.Second, "Delay before retrying a failed endpoint.")
	f.DurationVar(&cfg.RestoreCheckInterval, util.PrefixConfig(prefix, "restore-check-interval"), 15*time.Second, "Interval between primary health probes while on a backup.")
	f.IntVar(&cfg.ConsecutiveFailureThreshold, util.PrefixConfig(prefix, "consecutive-failure-threshold"), 3, "Consecutive failures that trigger a switch to the next endpoint.")
}
