package metadata

import (
	"bytes"
	"time"

	"github.com/grafana/dskit/backoff"

	"github.com/zachfi/streamkeeper/pkg/shoutcast"
)

func testConfig() Config {
	return Config{
		PollInterval:   10 * time.Millisecond,
		RequestTimeout: time.Second,
		Placeholder:    "Live",
		UserAgent:      "streamkeeper-test",
		Reconnect:      backoff.Config{MinBackoff: 5 * time.Millisecond, MaxBackoff: 5 * time.Millisecond},
	}
}

// icyBody builds metaint audio bytes followed by a StreamTitle block for each
// title, with an empty title producing a zero length byte.
func icyBody(metaint int, titles ...string) []byte {
	var buf bytes.Buffer
	for _, title := range titles {
		buf.Write(bytes.Repeat([]byte{0xAA}, metaint))
		if title == "" {
			buf.WriteByte(0)
			continue
		}
		buf.Write(shoutcast.EncodeStreamTitle(title))
	}
	return buf.Bytes()
}
