// Package host loads plugins, routes commands to them and tears them down.
package host

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/modoterra/tln/pkg/core"
	"github.com/modoterra/tln/pkg/outbound"
)

var (
	ErrUnknownPlugin = errors.New("unknown plugin")
	ErrNotLoaded     = errors.New("plugin not loaded")
	ErrAlreadyLoaded = errors.New("plugin already loaded")
	ErrBadCommand    = errors.New("bad command")
)

// Factory creates a plugin instance bound to the host's outbound channel.
type Factory func(tx *outbound.Channel) core.Plugin

// Info describes a registered plugin.
type Info struct {
	Name   string `json:"name"`
	Loaded bool   `json:"loaded"`
}

// Host owns plugin instances and serializes every call into them.
type Host struct {
	tx        *outbound.Channel
	factories map[string]Factory
	plugins   map[string]core.Plugin
	mu        sync.Mutex
	logger    *slog.Logger
}

// New creates a host whose plugins send on tx.
func New(tx *outbound.Channel, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{
		tx:        tx,
		factories: make(map[string]Factory),
		plugins:   make(map[string]core.Plugin),
		logger:    logger,
	}
}

// Outbound returns the channel plugins send on.
func (h *Host) Outbound() *outbound.Channel { return h.tx }

// Register makes a plugin loadable by name.
func (h *Host) Register(name string, f Factory) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.factories[name] = f
}

// Load creates the named plugin.
func (h *Host) Load(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	f, ok := h.factories[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlugin, name)
	}
	if _, ok := h.plugins[name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyLoaded, name)
	}
	h.plugins[name] = f(h.tx)
	h.logger.Info("plugin loaded", "plugin", name)
	return nil
}

// LoadAll loads every registered plugin that is not loaded yet.
func (h *Host) LoadAll() error {
	for _, info := range h.Plugins() {
		if info.Loaded {
			continue
		}
		if err := h.Load(info.Name); err != nil {
			return err
		}
	}
	return nil
}

// Unload tears down the named plugin and returns its unload token.
func (h *Host) Unload(name string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.plugins[name]
	if !ok {
		return "", h.missing(name)
	}
	token := p.Unload()
	delete(h.plugins, name)
	h.logger.Info("plugin unloaded", "plugin", name)
	return token, nil
}

// UnloadAll tears down every loaded plugin.
func (h *Host) UnloadAll() {
	for _, info := range h.Plugins() {
		if info.Loaded {
			_, _ = h.Unload(info.Name)
		}
	}
}

// Dispatch sends a command to the named plugin.
func (h *Host) Dispatch(name, action, data string) (core.Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.plugins[name]
	if !ok {
		return core.Result{}, h.missing(name)
	}
	res := p.Dispatch(action, data)
	if !res.OK() {
		h.logger.Warn("command failed", "plugin", name, "action", action, "err", res.Err)
	}
	return res, nil
}

// Status renders the named plugin's status.
func (h *Host) Status(name string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.plugins[name]
	if !ok {
		return "", h.missing(name)
	}
	return p.Status(), nil
}

// Exec parses a command line and dispatches it.
func (h *Host) Exec(line string) (core.Result, error) {
	cmd, err := ParseCommand(line)
	if err != nil {
		return core.Result{}, err
	}
	return h.Dispatch(cmd.Plugin, cmd.Action, cmd.Data)
}

// Plugins lists registered plugins sorted by name.
func (h *Host) Plugins() []Info {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Info, 0, len(h.factories))
	for name := range h.factories {
		_, loaded := h.plugins[name]
		out = append(out, Info{Name: name, Loaded: loaded})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (h *Host) missing(name string) error {
	if _, ok := h.factories[name]; ok {
		return fmt.Errorf("%w: %s", ErrNotLoaded, name)
	}
	return fmt.Errorf("%w: %s", ErrUnknownPlugin, name)
}
