// Package journald follows a systemd unit's journal through journalctl.
package journald

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
)

// CommandFunc builds the process whose stdout is read line by line.
type CommandFunc func(ctx context.Context, unit string) *exec.Cmd

// Journalctl follows unit from now on, printing only messages.
func Journalctl(ctx context.Context, unit string) *exec.Cmd {
	return exec.CommandContext(ctx, "journalctl", "-f", "-u", unit, "-o", "cat", "-n", "0")
}

// Journal is a source for one unit.
type Journal struct {
	unit    string
	command CommandFunc
	logger  *slog.Logger
}

// New creates a journal source for unit.
func New(unit string, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{unit: unit, command: Journalctl, logger: logger}
}

// WithCommand replaces the journalctl invocation.
func (j *Journal) WithCommand(fn CommandFunc) *Journal {
	j.command = fn
	return j
}

func (j *Journal) Name() string { return "journald:" + j.unit }

// Lines starts the reader process.
func (j *Journal) Lines(ctx context.Context) (<-chan string, error) {
	cmd := j.command(ctx, j.unit)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("journalctl pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("journalctl start: %w", err)
	}

	ch := make(chan string, 100)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case ch <- scanner.Text():
			case <-ctx.Done():
				_ = cmd.Wait()
				return
			}
		}
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			j.logger.Warn("journalctl exited", "unit", j.unit, "err", err)
		}
	}()

	j.logger.Info("following journal", "unit", j.unit)
	return ch, nil
}
