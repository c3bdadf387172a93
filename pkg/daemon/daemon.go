package daemon

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modoterra/tln/internal/buildinfo"
	"github.com/modoterra/tln/pkg/host"
	"github.com/modoterra/tln/pkg/report"
	"github.com/modoterra/tln/pkg/transport/uds"
)

// Daemon is the tlnd process: it exposes the plugin host over the socket.
type Daemon struct {
	server *uds.Server
	host   *host.Host
	name   string
	logger *slog.Logger
}

// New creates a new daemon instance serving h.
func New(socketPath string, h *host.Host, name string, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	srv := uds.NewServer(socketPath, logger)
	d := &Daemon{
		server: srv,
		host:   h,
		name:   name,
		logger: logger,
	}
	d.registerHandlers()
	return d
}

// Run starts the daemon and blocks until the context is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	return d.server.Start(ctx)
}

// Shutdown cleans up resources.
func (d *Daemon) Shutdown() {
	d.server.Shutdown()
}

// Server returns the underlying UDS server (for broadcasting events).
func (d *Daemon) Server() *uds.Server {
	return d.server
}

// Host returns the plugin host.
func (d *Daemon) Host() *host.Host {
	return d.host
}

// Publish broadcasts a report to every connected client. It satisfies relay.Publisher.
func (d *Daemon) Publish(r report.Report) error {
	evt, err := uds.NewEvent(uds.EventReportPublished, uds.ReportEvent{Topic: r.Topic, Payload: r.Payload})
	if err != nil {
		return fmt.Errorf("encode report event: %w", err)
	}
	d.server.Broadcast(evt)
	d.logger.Info("report published", "topic", r.Topic, "bytes", len(r.Payload), "clients", d.server.Clients())
	return nil
}

func (d *Daemon) registerHandlers() {
	d.server.Handle(uds.MethodPing, d.handlePing)
	d.server.Handle(uds.MethodListPlugins, d.handleListPlugins)
	d.server.Handle(uds.MethodLoadPlugin, d.handleLoadPlugin)
	d.server.Handle(uds.MethodUnloadPlugin, d.handleUnloadPlugin)
	d.server.Handle(uds.MethodStatus, d.handleStatus)
	d.server.Handle(uds.MethodDispatch, d.handleDispatch)
}

func (d *Daemon) handlePing(_ context.Context, _ uds.Message) (any, error) {
	return uds.PingResponse{Pong: true, Name: d.name, Version: buildinfo.Version}, nil
}

func (d *Daemon) handleListPlugins(_ context.Context, _ uds.Message) (any, error) {
	return d.host.Plugins(), nil
}

func pluginRequest(msg uds.Message) (uds.PluginRequest, error) {
	var req uds.PluginRequest
	if err := msg.UnmarshalData(&req); err != nil {
		return req, fmt.Errorf("invalid request: %w", err)
	}
	if req.Plugin == "" {
		return req, fmt.Errorf("invalid request: plugin is required")
	}
	return req, nil
}

func (d *Daemon) handleLoadPlugin(_ context.Context, msg uds.Message) (any, error) {
	req, err := pluginRequest(msg)
	if err != nil {
		return nil, err
	}
	if err := d.host.Load(req.Plugin); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (d *Daemon) handleUnloadPlugin(_ context.Context, msg uds.Message) (any, error) {
	req, err := pluginRequest(msg)
	if err != nil {
		return nil, err
	}
	token, err := d.host.Unload(req.Plugin)
	if err != nil {
		return nil, err
	}
	return uds.UnloadResponse{Token: token}, nil
}

func (d *Daemon) handleStatus(_ context.Context, msg uds.Message) (any, error) {
	req, err := pluginRequest(msg)
	if err != nil {
		return nil, err
	}
	status, err := d.host.Status(req.Plugin)
	if err != nil {
		return nil, err
	}
	return uds.StatusResponse{Plugin: req.Plugin, Status: status}, nil
}

func (d *Daemon) handleDispatch(_ context.Context, msg uds.Message) (any, error) {
	var req uds.DispatchRequest
	if err := msg.UnmarshalData(&req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if req.Plugin == "" || req.Action == "" {
		return nil, fmt.Errorf("invalid request: plugin and action are required")
	}

	res, err := d.host.Dispatch(req.Plugin, req.Action, req.Data)
	if err != nil {
		return nil, err
	}
	resp := uds.DispatchResponse{Ack: res.Ack(), Outcome: string(res.Outcome)}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	return resp, nil
}
