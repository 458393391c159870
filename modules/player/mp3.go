package player

import "bytes"

// findMP3FrameSync returns the offset of the first frame sync word: 0xFF
// followed by a byte whose high nibble is 0xE or 0xF. ADTS AAC headers match
// too. Returns -1 if not found.
func findMP3FrameSync(data []byte) int {
	for i := 0; i < len(data)-1; i++ {
		if data[i] == 0xFF && data[i+1]&0xE0 == 0xE0 {
			return i
		}
	}
	return -1
}

var containerMagic = [][]byte{[]byte("OggS"), []byte("fLaC")}

// looksLikeAudio reports whether data contains a compressed audio frame or a
// known container header.
func looksLikeAudio(data []byte) bool {
	for _, magic := range containerMagic {
		if bytes.Contains(data, magic) {
			return true
		}
	}
	return findMP3FrameSync(data) >= 0
}
