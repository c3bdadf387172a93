// Package relay receives reports addressed to the transport plugin and hands them to a
// Publisher. The daemon publishes them to socket subscribers.
package relay

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/modoterra/tln/pkg/console"
	"github.com/modoterra/tln/pkg/core"
	"github.com/modoterra/tln/pkg/outbound"
	"github.com/modoterra/tln/pkg/report"
)

// ActionReport is the only command the relay acts on.
const ActionReport = "report"

// Publisher delivers a decoded report.
type Publisher interface {
	Publish(r report.Report) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(report.Report) error

func (f PublisherFunc) Publish(r report.Report) error { return f(r) }

// Plugin implements core.Plugin.
type Plugin struct {
	name      string
	pub       Publisher
	logger    *slog.Logger
	console   *console.Printer
	mu        sync.Mutex
	published int
	failed    int
	lastTopic string
	unloaded  bool
}

// New creates a relay registered under name.
func New(name string, pub Publisher, logger *slog.Logger, printer *console.Printer) *Plugin {
	if logger == nil {
		logger = slog.Default()
	}
	if printer == nil {
		printer = console.Stdout()
	}
	p := &Plugin{name: name, pub: pub, logger: logger, console: printer}
	p.console.Event(name, "Loading...")
	return p
}

// Factory adapts New to the host's factory signature. The relay never sends.
func Factory(name string, pub Publisher, logger *slog.Logger, printer *console.Printer) func(*outbound.Channel) core.Plugin {
	return func(*outbound.Channel) core.Plugin {
		return New(name, pub, logger, printer)
	}
}

func (p *Plugin) Name() string { return p.name }

func (p *Plugin) Status() string {
	p.mu.Lock()
	out := fmt.Sprintf("published: %d\nfailed: %d\n", p.published, p.failed)
	if p.lastTopic != "" {
		out += "last topic: " + p.lastTopic + "\n"
	}
	p.mu.Unlock()

	p.console.Text(p.name, out)
	return out
}

func (p *Plugin) Dispatch(action, data string) core.Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.unloaded {
		return core.Failed(core.ErrUnloaded)
	}
	if action != ActionReport {
		return core.Ignored()
	}

	r, err := report.Unmarshal(data)
	if err != nil {
		p.failed++
		p.logger.Error("relay decode failed", "plugin", p.name, "err", err)
		return core.Failed(err)
	}
	if err := p.pub.Publish(r); err != nil {
		p.failed++
		p.logger.Error("relay publish failed", "plugin", p.name, "topic", r.Topic, "err", err)
		return core.Failed(fmt.Errorf("publish %s: %w", r.Topic, err))
	}
	p.published++
	p.lastTopic = r.Topic
	p.logger.Debug("report published", "plugin", p.name, "topic", r.Topic, "bytes", len(r.Payload))
	return core.Dispatched()
}

func (p *Plugin) Unload() string {
	p.mu.Lock()
	p.unloaded = true
	p.mu.Unlock()
	p.console.Event(p.name, "Unload")
	return core.AckUnload
}
