// Package logbuf holds a bounded, oldest-first buffer of timestamped text lines.
package logbuf

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
)

// DefaultLimit is the number of entries kept when no limit is given.
const DefaultLimit = 500

// TimeLayout renders timestamps as "2006-01-02 15:04:05 +02:00".
const TimeLayout = "2006-01-02 15:04:05 -07:00"

// Entry is a single stored line.
type Entry struct {
	Timestamp uint64 `json:"ts"`
	Text      string `json:"text"`
}

// Buffer keeps the most recent entries up to a fixed limit, dropping the oldest first.
type Buffer struct {
	mu      sync.RWMutex
	entries []Entry
	limit   int
	loc     *time.Location
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithLocation sets the zone used by Render. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(b *Buffer) {
		if loc != nil {
			b.loc = loc
		}
	}
}

// New creates an empty buffer holding at most limit entries.
func New(limit int, opts ...Option) *Buffer {
	if limit <= 0 {
		limit = DefaultLimit
	}
	b := &Buffer{limit: limit, loc: time.Local}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Append adds an entry at the tail and evicts from the head past the limit.
func (b *Buffer) Append(text string, ts uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(b.entries, Entry{Timestamp: ts, Text: text})
	if over := len(b.entries) - b.limit; over > 0 {
		// Copy down instead of reslicing so the backing array does not grow forever.
		n := copy(b.entries, b.entries[over:])
		clear(b.entries[n:])
		b.entries = b.entries[:n]
	}
}

// Clear drops every entry.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
}

// Len returns the number of stored entries.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Limit returns the maximum number of entries.
func (b *Buffer) Limit() int { return b.limit }

// Location returns the zone used by Render.
func (b *Buffer) Location() *time.Location { return b.loc }

// Entries returns a copy of the stored entries, oldest first.
func (b *Buffer) Entries() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Render lists every entry as "<n>: <local time> : <text>", one per line.
func (b *Buffer) Render() string {
	return RenderEntries(b.Entries(), b.loc)
}

// RenderEntries formats a snapshot the same way Render does.
func RenderEntries(entries []Entry, loc *time.Location) string {
	var sb strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&sb, "%d: %s : %s\n", i+1, FormatTime(e.Timestamp, loc), e.Text)
	}
	return sb.String()
}

// FormatTime converts epoch seconds to loc and formats it with TimeLayout.
// It panics if ts does not fit a signed Unix time.
func FormatTime(ts uint64, loc *time.Location) string {
	if ts > math.MaxInt64 {
		panic(fmt.Sprintf("logbuf: timestamp %d out of range", ts))
	}
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(int64(ts), 0).In(loc).Format(TimeLayout)
}
