package daemon

import (
	"context"
	"log/slog"

	"github.com/modoterra/tln/pkg/host"
)

// Forwarder executes the commands plugins queue on the host's outbound channel.
type Forwarder struct {
	host   *host.Host
	logger *slog.Logger
}

// NewForwarder creates a forwarder for h.
func NewForwarder(h *host.Host, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{host: h, logger: logger}
}

// Run drains the outbound channel in order. Blocks until ctx is cancelled or
// the channel is closed.
func (f *Forwarder) Run(ctx context.Context) {
	msgs := f.host.Outbound().Messages()
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-msgs:
			if !ok {
				return
			}
			f.forward(line)
		}
	}
}

func (f *Forwarder) forward(line string) {
	res, err := f.host.Exec(line)
	if err != nil {
		f.logger.Error("forward command", "err", err)
		return
	}
	f.logger.Debug("command forwarded", "outcome", res.String())
}
