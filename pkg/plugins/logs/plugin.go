// Package logs is the log collector plugin: a bounded buffer of decrypted lines that
// can be appended to, cleared and reported on request.
package logs

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/modoterra/tln/pkg/console"
	"github.com/modoterra/tln/pkg/core"
	"github.com/modoterra/tln/pkg/logbuf"
	"github.com/modoterra/tln/pkg/outbound"
	"github.com/modoterra/tln/pkg/report"
)

// Module is the plugin's fixed name.
const Module = "logs"

// Actions understood by Dispatch.
const (
	ActionReport = "report"
	ActionAdd    = "add"
	ActionClear  = "clear"

	// ReportSelf is the only report target handled so far.
	ReportSelf = "myself"
)

// DefaultRelay is the plugin reports are addressed to.
const DefaultRelay = "mqtt"

var errNoDecrypter = errors.New("no decrypter configured")

// Options wires the plugin's collaborators. Zero values fall back to defaults.
type Options struct {
	Capacity    int
	Clock       core.Clock
	Decrypter   core.Decrypter
	Names       core.NameProvider
	RelayPlugin string
	Logger      *slog.Logger
	Console     *console.Printer
	BufferOpts  []logbuf.Option
}

// Plugin implements core.Plugin.
type Plugin struct {
	tx       *outbound.Channel
	buf      *logbuf.Buffer
	clock    core.Clock
	decrypt  core.Decrypter
	names    core.NameProvider
	relay    string
	logger   *slog.Logger
	console  *console.Printer
	mu       sync.Mutex
	unloaded bool
}

// New creates the plugin bound to the host's outbound channel.
func New(tx *outbound.Channel, opts Options) *Plugin {
	p := &Plugin{
		tx:      tx,
		buf:     logbuf.New(opts.Capacity, opts.BufferOpts...),
		clock:   opts.Clock,
		decrypt: opts.Decrypter,
		names:   opts.Names,
		relay:   opts.RelayPlugin,
		logger:  opts.Logger,
		console: opts.Console,
	}
	if p.clock == nil {
		p.clock = core.SystemClock{}
	}
	if p.names == nil {
		p.names = core.StaticName("unnamed")
	}
	if p.relay == "" {
		p.relay = DefaultRelay
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.console == nil {
		p.console = console.Stdout()
	}
	p.console.Event(Module, "Loading...")
	return p
}

// Factory adapts New to the host's factory signature.
func Factory(opts Options) func(tx *outbound.Channel) core.Plugin {
	return func(tx *outbound.Channel) core.Plugin {
		return New(tx, opts)
	}
}

func (p *Plugin) Name() string { return Module }

// Status renders the buffer, prints it to the console and returns it.
func (p *Plugin) Status() string {
	entries := p.buf.Entries()
	out := logbuf.RenderEntries(entries, p.buf.Location())
	p.console.Entries(Module, entries, p.buf.Location())
	p.logger.Debug("status rendered", "plugin", Module, "entries", len(entries))
	return out
}

// Dispatch runs one command. The result's Ack is always "send".
func (p *Plugin) Dispatch(action, data string) core.Result {
	p.mu.Lock()
	unloaded := p.unloaded
	p.mu.Unlock()
	if unloaded {
		p.logger.Warn("command after unload", "plugin", Module, "action", action)
		return core.Failed(core.ErrUnloaded)
	}

	switch action {
	case ActionReport:
		if data != ReportSelf {
			return core.Ignored()
		}
		return p.report()
	case ActionAdd:
		return p.add(data)
	case ActionClear:
		p.buf.Clear()
		return core.Dispatched()
	default:
		return core.Ignored()
	}
}

// Unload marks the plugin as torn down. The buffer is not flushed anywhere.
func (p *Plugin) Unload() string {
	p.mu.Lock()
	p.unloaded = true
	p.mu.Unlock()
	p.console.Event(Module, "Unload")
	return core.AckUnload
}

// Len returns the number of buffered lines.
func (p *Plugin) Len() int { return p.buf.Len() }

func (p *Plugin) add(ciphertext string) core.Result {
	if p.decrypt == nil {
		p.logger.Error("add dropped", "plugin", Module, "err", errNoDecrypter)
		return core.Failed(errNoDecrypter)
	}
	line, err := p.decrypt.Decrypt(ciphertext)
	if err != nil {
		p.logger.Error("add dropped", "plugin", Module, "err", err)
		return core.Failed(fmt.Errorf("decrypt: %w", err))
	}
	p.buf.Append(line, p.clock.Now())
	return core.Dispatched()
}

func (p *Plugin) report() core.Result {
	r := report.Report{
		Topic:   report.Topic(p.names.CurrentName(), Module),
		Payload: p.Status(),
	}
	encoded, err := report.Marshal(r)
	if err != nil {
		p.logger.Error("report dropped", "plugin", Module, "err", err)
		return core.Failed(err)
	}
	if err := p.tx.Send(SendCommand(p.relay, ActionReport, encoded)); err != nil {
		p.logger.Error("report dropped", "plugin", Module, "topic", r.Topic, "err", err)
		return core.Failed(fmt.Errorf("send report: %w", err))
	}
	return core.Dispatched()
}

// SendCommand formats a host command addressed to another plugin:
// send plugin <name> <action> '<data>'.
func SendCommand(plugin, action, data string) string {
	return fmt.Sprintf("send plugin %s %s '%s'", plugin, action, data)
}
