package core

import (
	"strings"

	"pkt.systems/replink/schema"
)

// Cursor names used by the driver.
const (
	cursorProto = "proto" // protocol reads: handshake and flow-control bytes
	cursorDemux = "demux" // post-finalization output/error routing
)

// buffer is an append-only text arena with named read cursors. Cursors only
// move forward; a failed readUntil leaves its cursor untouched so a retry
// after more data has been appended resumes from the same point. The buffer
// is not safe for concurrent use; callers synchronize.
type buffer struct {
	content    string
	lineEnding string
	cursors    map[string]int
	base       int // stream offset of content[0], advanced by compaction
}

func newBuffer(lineEnding string) *buffer {
	if lineEnding == "" {
		lineEnding = schema.DeviceLineEnding
	}
	return &buffer{
		lineEnding: lineEnding,
		cursors:    make(map[string]int),
	}
}

// cursor ensures the named cursor exists and returns its offset.
func (b *buffer) cursor(name string) int {
	pos, ok := b.cursors[name]
	if !ok {
		b.cursors[name] = 0
	}
	return pos
}

func (b *buffer) pos(name string) int {
	return b.cursors[name]
}

// size is the current arena length in bytes.
func (b *buffer) size() int {
	return len(b.content)
}

// streamSize is the total number of bytes ever appended, compaction included.
func (b *buffer) streamSize() int {
	return b.base + len(b.content)
}

// append adds text to the arena.
func (b *buffer) append(text string) {
	if text == "" {
		return
	}
	b.content += text
}

// available reports the number of unread bytes ahead of the cursor.
func (b *buffer) available(name string) int {
	return len(b.content) - b.pos(name)
}

// readExactly returns up to n bytes at the cursor and advances by exactly the
// number of bytes returned. Receiving fewer than n means the remaining bytes
// have not arrived yet, not end-of-data.
func (b *buffer) readExactly(name string, n int) string {
	pos := b.cursor(name)
	if n <= 0 || pos >= len(b.content) {
		return ""
	}
	end := pos + n
	if end > len(b.content) {
		end = len(b.content)
	}
	b.cursors[name] = end
	return b.content[pos:end]
}

// readUntil consumes through the first occurrence of delim at or after the
// cursor and returns the consumed text including the delimiter. When delim is
// not present in the remainder, the cursor is restored to its pre-call value
// and ok is false.
func (b *buffer) readUntil(name, delim string) (string, bool) {
	pos := b.cursor(name)
	if delim == "" {
		return "", false
	}
	idx := strings.Index(b.content[pos:], delim)
	if idx < 0 {
		return "", false
	}
	end := pos + idx + len(delim)
	b.cursors[name] = end
	return b.content[pos:end], true
}

// readLine returns the first line of the unread remainder. With advance set,
// the cursor moves past the line and its delimiter.
func (b *buffer) readLine(name string, advance bool) string {
	pos := b.cursor(name)
	rest := b.content[pos:]
	line := rest
	if idx := strings.Index(rest, b.lineEnding); idx >= 0 {
		line = rest[:idx]
	}
	if advance {
		next := pos + len(line) + len(b.lineEnding)
		if next > len(b.content) {
			next = len(b.content)
		}
		b.cursors[name] = next
	}
	return line
}

// peekLastLine returns the last delimiter-separated segment of the unread
// remainder without advancing. Used for prompt detection.
func (b *buffer) peekLastLine(name string) string {
	rest := b.content[b.cursor(name):]
	if idx := strings.LastIndex(rest, b.lineEnding); idx >= 0 {
		return rest[idx+len(b.lineEnding):]
	}
	return rest
}

// movePointer relocates the cursor forward to offset, clamped to the arena
// end. Backward moves are ignored; cursors only rewind via reset.
func (b *buffer) movePointer(name string, offset int) {
	pos := b.cursor(name)
	if offset < pos {
		return
	}
	if offset > len(b.content) {
		offset = len(b.content)
	}
	b.cursors[name] = offset
}

// resetCursor rewinds one cursor to the start of the arena.
func (b *buffer) resetCursor(name string) {
	b.cursors[name] = 0
}

// reset clears the arena and rewinds every cursor.
func (b *buffer) reset() {
	b.content = ""
	b.base = 0
	for name := range b.cursors {
		b.cursors[name] = 0
	}
}

// compact drops the prefix already consumed by every cursor, shifting all
// cursors down by the removed length. A cursor that somehow references the
// removed prefix clamps to 0. Returns the number of bytes removed.
func (b *buffer) compact() int {
	if len(b.cursors) == 0 {
		return 0
	}
	min := len(b.content)
	for _, pos := range b.cursors {
		if pos < min {
			min = pos
		}
	}
	if min <= 0 {
		return 0
	}
	b.content = b.content[min:]
	b.base += min
	for name, pos := range b.cursors {
		next := pos - min
		if next < 0 {
			next = 0
		}
		b.cursors[name] = next
	}
	return min
}
