package shoutcast

import (
	"bytes"
	"regexp"
	"strings"
)

var (
	streamTitleRe = regexp.MustCompile(`StreamTitle='([^']*)'`)
	streamURLRe   = regexp.MustCompile(`StreamUrl='([^']*)'`)
)

// maxMetadataLen is the largest block a single length byte can describe.
const maxMetadataLen = 255 * 16

// Metadata is one decoded ICY metadata block.
type Metadata struct {
	StreamTitle string
	StreamURL   string

	// Raw is the block text with NUL padding removed.
	Raw string
}

// NewMetadata decodes a metadata block. Only the first StreamTitle match is
// used.
func NewMetadata(b []byte) *Metadata {
	raw := strings.TrimRight(string(b), "\x00")
	m := &Metadata{Raw: raw}

	if match := streamTitleRe.FindStringSubmatch(raw); match != nil {
		m.StreamTitle = strings.TrimSpace(match[1])
	}
	if match := streamURLRe.FindStringSubmatch(raw); match != nil {
		m.StreamURL = match[1]
	}

	return m
}

// Equals compares the decoded fields of two blocks. A nil Metadata only
// equals another nil.
func (m *Metadata) Equals(other *Metadata) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.StreamTitle == other.StreamTitle && m.StreamURL == other.StreamURL
}

// EncodeMetadata renders text as a length byte followed by the text padded
// with NULs to a multiple of 16 bytes. Empty text encodes as a single zero
// length byte.
func EncodeMetadata(text string) []byte {
	if text == "" {
		return []byte{0}
	}

	payload := []byte(text)
	if len(payload) > maxMetadataLen {
		payload = payload[:maxMetadataLen]
	}

	blocks := (len(payload) + 15) / 16

	var buf bytes.Buffer
	buf.WriteByte(byte(blocks))
	buf.Write(payload)
	buf.Write(make([]byte, blocks*16-len(payload)))

	return buf.Bytes()
}

// EncodeStreamTitle is EncodeMetadata for a StreamTitle='...'; block.
func EncodeStreamTitle(title string) []byte {
	return EncodeMetadata("StreamTitle='" + title + "';")
}
