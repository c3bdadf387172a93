// Package filetail follows a log file and emits each appended line.
package filetail

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// DefaultPoll is how often the file is checked for new data.
const DefaultPoll = 250 * time.Millisecond

// Tail follows one file.
type Tail struct {
	path      string
	fromStart bool
	poll      time.Duration
	logger    *slog.Logger
}

// New creates a tail of path. When fromStart is false only lines appended after
// Lines is called are emitted.
func New(path string, fromStart bool, logger *slog.Logger) *Tail {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tail{path: path, fromStart: fromStart, poll: DefaultPoll, logger: logger}
}

// WithPoll overrides the poll interval.
func (t *Tail) WithPoll(d time.Duration) *Tail {
	if d > 0 {
		t.poll = d
	}
	return t
}

func (t *Tail) Name() string { return "file:" + t.path }

// Lines opens the file and starts following it.
func (t *Tail) Lines(ctx context.Context) (<-chan string, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", t.path, err)
	}
	if !t.fromStart {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			f.Close()
			return nil, fmt.Errorf("seek %s: %w", t.path, err)
		}
	}

	ch := make(chan string, 100)
	go t.follow(ctx, f, ch)
	t.logger.Info("tailing file", "path", t.path)
	return ch, nil
}

func (t *Tail) follow(ctx context.Context, f *os.File, ch chan<- string) {
	defer f.Close()
	defer close(ch)

	reader := bufio.NewReader(f)
	var partial string
	for {
		chunk, err := reader.ReadString('\n')
		partial += chunk
		if err == nil {
			select {
			case ch <- partial:
			case <-ctx.Done():
				return
			}
			partial = ""
			continue
		}
		if !errors.Is(err, io.EOF) {
			t.logger.Error("read failed", "path", t.path, "err", err)
			return
		}

		// No new data, poll
		select {
		case <-ctx.Done():
			return
		case <-time.After(t.poll):
		}

		// Check for truncation (file rotation)
		info, serr := f.Stat()
		if serr != nil {
			continue
		}
		pos, _ := f.Seek(0, io.SeekCurrent)
		if info.Size() < pos {
			t.logger.Info("file truncated", "path", t.path)
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				return
			}
			reader.Reset(f)
			partial = ""
		}
	}
}
