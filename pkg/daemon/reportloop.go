package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/modoterra/tln/pkg/host"
	"github.com/modoterra/tln/pkg/plugins/logs"
)

// ReportLoop asks the logs plugin for a report every interval.
type ReportLoop struct {
	host     *host.Host
	plugin   string
	interval time.Duration
	logger   *slog.Logger
}

// NewReportLoop creates a report loop for the given host.
func NewReportLoop(h *host.Host, interval time.Duration, logger *slog.Logger) *ReportLoop {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportLoop{host: h, plugin: logs.Module, interval: interval, logger: logger}
}

// Run starts the loop. Blocks until ctx is cancelled; returns at once when the
// interval is not positive.
func (rl *ReportLoop) Run(ctx context.Context) {
	if rl.interval <= 0 {
		return
	}
	ticker := time.NewTicker(rl.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.tick()
		}
	}
}

func (rl *ReportLoop) tick() {
	res, err := rl.host.Dispatch(rl.plugin, logs.ActionReport, logs.ReportSelf)
	if err != nil {
		rl.logger.Warn("scheduled report skipped", "plugin", rl.plugin, "err", err)
		return
	}
	if !res.OK() {
		return
	}
	rl.logger.Debug("scheduled report queued", "plugin", rl.plugin)
}
