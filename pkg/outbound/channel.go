// Package outbound is the ordered hand-off between plugins and the host's command loop.
package outbound

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("outbound channel closed")
	// ErrTimeout is returned when the queue stays full for the whole send timeout.
	ErrTimeout = errors.New("outbound channel full")
)

// DefaultSize is the queue depth used when none is given.
const DefaultSize = 64

// Channel is a bounded FIFO of command strings.
type Channel struct {
	ch      chan string
	timeout time.Duration
	mu      sync.RWMutex
	closed  bool
}

// New creates a channel holding up to size queued messages. Send waits at most
// timeout for room; zero means fail immediately when full.
func New(size int, timeout time.Duration) *Channel {
	if size <= 0 {
		size = DefaultSize
	}
	return &Channel{ch: make(chan string, size), timeout: timeout}
}

// Send queues msg. It never blocks longer than the channel timeout.
func (c *Channel) Send(msg string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}

	select {
	case c.ch <- msg:
		return nil
	default:
	}
	if c.timeout <= 0 {
		return ErrTimeout
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case c.ch <- msg:
		return nil
	case <-timer.C:
		return ErrTimeout
	}
}

// Messages returns the receiving end. It is closed after Close.
func (c *Channel) Messages() <-chan string { return c.ch }

// Len returns the number of queued messages.
func (c *Channel) Len() int { return len(c.ch) }

// Close stops accepting messages. Queued messages can still be drained.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}
