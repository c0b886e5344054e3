package protocol

import (
	"strings"
)

// SyncKeywords are the synchronization points the framer trims the buffer to
// when leading garbage was picked up mid-transmission.
var SyncKeywords = []string{"power", "#ZQS1", "!", "#"}

// IgnoredPrefixes are frame-display and fan-speed echo opcodes the driver
// does not act on.
var IgnoredPrefixes = []string{"#ZT", "#ZY"}

// BufferManager accumulates inbound stream data and extracts complete
// messages. It tolerates arbitrary chunk boundaries: the same byte sequence
// split at any point yields the same sequence of extracted messages.
type BufferManager struct {
	terminator      string
	ignoredPrefixes []string
	buffer          string
}

// NewBufferManager creates a buffer manager with the given terminator and
// ignored prefixes.
func NewBufferManager(terminator string, ignoredPrefixes []string) *BufferManager {
	return &BufferManager{
		terminator:      terminator,
		ignoredPrefixes: ignoredPrefixes,
	}
}

// Append adds data to the buffer.
func (b *BufferManager) Append(data string) {
	b.buffer += data
}

// ExtractMessage removes and returns the first complete message, stripped of
// surrounding whitespace. It returns "" when no terminator is buffered.
func (b *BufferManager) ExtractMessage() string {
	idx := strings.Index(b.buffer, b.terminator)
	if idx == -1 {
		return ""
	}
	end := idx + len(b.terminator)
	message := b.buffer[:end]
	b.buffer = b.buffer[end:]
	return strings.TrimSpace(message)
}

// Clear discards the buffer contents.
func (b *BufferManager) Clear() {
	b.buffer = ""
}

// Buffer returns the current accumulator contents.
func (b *BufferManager) Buffer() string {
	return b.buffer
}

// IgnoredPrefixes returns the configured ignored prefixes.
func (b *BufferManager) IgnoredPrefixes() []string {
	return b.ignoredPrefixes
}

// StartsWith reports whether the buffer starts with any of the prefixes,
// case-insensitively.
func (b *BufferManager) StartsWith(prefixes ...string) bool {
	lower := strings.ToLower(b.buffer)
	for _, p := range prefixes {
		if strings.HasPrefix(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// EndsWithTerminator reports whether the buffer ends with the terminator.
func (b *BufferManager) EndsWithTerminator() bool {
	return strings.HasSuffix(b.buffer, b.terminator)
}

// IsEmpty reports whether the buffer is empty or whitespace-only.
func (b *BufferManager) IsEmpty() bool {
	return strings.TrimSpace(b.buffer) == ""
}

// Adjust trims the buffer to start at the first occurrence of any keyword,
// case-insensitively, discarding leading garbage. The exact two-character
// escape pair "#!" (force menu off) is meaningful on its own and is left
// untouched.
func (b *BufferManager) Adjust(keywords []string) {
	lower := strings.ToLower(b.buffer)
	for _, keyword := range keywords {
		idx := strings.Index(lower, strings.ToLower(keyword))
		if idx == -1 {
			continue
		}
		if keyword == "!" && idx == 1 && b.buffer == "#!" {
			return
		}
		b.buffer = b.buffer[idx:]
		return
	}
}
