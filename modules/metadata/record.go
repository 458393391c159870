package metadata

import (
	"strings"
	"time"
)

// Record is an immutable now-playing observation. A newer record supersedes
// the previous one.
type Record struct {
	Title      string    `json:"title"`
	Artist     string    `json:"artist,omitempty"`
	RawText    string    `json:"rawText"`
	ObservedAt time.Time `json:"observedAt"`
}

// Display is the text used for labels and artwork lookups.
func (r Record) Display() string {
	if r.RawText != "" {
		return r.RawText
	}
	if r.Artist != "" {
		return r.Artist + " - " + r.Title
	}
	return r.Title
}

// SplitTitle separates "Artist - Title" on the first " - ". Text without the
// separator is returned as the title.
func SplitTitle(raw string) (artist, title string) {
	a, t, ok := strings.Cut(raw, " - ")
	if !ok {
		return "", strings.TrimSpace(raw)
	}
	return strings.TrimSpace(a), strings.TrimSpace(t)
}

func newRecord(raw string, split bool, at time.Time) *Record {
	raw = strings.TrimSpace(raw)
	r := &Record{Title: raw, RawText: raw, ObservedAt: at}
	if split {
		r.Artist, r.Title = SplitTitle(raw)
	}
	return r
}

// StreamTitleRecord builds the record for an in-band StreamTitle observed
// outside a Source, such as by a playback device reading the same stream.
func StreamTitleRecord(title string, at time.Time) Record {
	return *newRecord(title, false, at)
}
