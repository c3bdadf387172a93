// Package sources feeds lines from local log streams into the logs plugin.
package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modoterra/tln/pkg/core"
	"github.com/modoterra/tln/pkg/plugins/logs"
)

// Source produces log lines until ctx is cancelled. The channel is closed when
// the source stops.
type Source interface {
	Name() string
	Lines(ctx context.Context) (<-chan string, error)
}

// Dispatcher routes a command to a loaded plugin. *host.Host satisfies it.
type Dispatcher interface {
	Dispatch(plugin, action, data string) (core.Result, error)
}

// Encrypter seals a line the way remote senders do.
type Encrypter interface {
	Encrypt(plaintext string) (string, error)
}

// Feeder seals each line from a source and adds it to the logs plugin.
type Feeder struct {
	dispatch Dispatcher
	enc      Encrypter
	logger   *slog.Logger
}

// NewFeeder creates a feeder dispatching through d.
func NewFeeder(d Dispatcher, enc Encrypter, logger *slog.Logger) (*Feeder, error) {
	if d == nil || enc == nil {
		return nil, errors.New("sources: dispatcher and encrypter are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Feeder{dispatch: d, enc: enc, logger: logger}, nil
}

// Run pumps src until ctx is cancelled or the source closes.
func (f *Feeder) Run(ctx context.Context, src Source) error {
	lines, err := src.Lines(ctx)
	if err != nil {
		return fmt.Errorf("source %s: %w", src.Name(), err)
	}
	f.logger.Info("source started", "source", src.Name())

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				f.logger.Info("source stopped", "source", src.Name())
				return nil
			}
			f.add(src.Name(), line)
		}
	}
}

func (f *Feeder) add(source, line string) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return
	}
	ct, err := f.enc.Encrypt(line)
	if err != nil {
		f.logger.Error("seal line", "source", source, "err", err)
		return
	}
	res, err := f.dispatch.Dispatch(logs.Module, logs.ActionAdd, ct)
	if err != nil {
		f.logger.Warn("line dropped", "source", source, "err", err)
		return
	}
	if !res.OK() {
		f.logger.Warn("line dropped", "source", source, "err", res.Err)
	}
}
