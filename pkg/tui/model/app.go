package model

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/modoterra/tln/pkg/host"
	"github.com/modoterra/tln/pkg/plugins/logs"
	"github.com/modoterra/tln/pkg/transport/uds"
)

// Pane identifies which TUI pane is focused.
type Pane int

const (
	PaneList Pane = iota
	PaneStatus
	PaneReports
)

// Mode identifies the current interaction mode.
type Mode int

const (
	ModeNormal Mode = iota
	ModeAdd
	ModeConfirmClear
)

// maxReports is how many published reports the reports pane keeps.
const maxReports = 50

var errNoKey = errors.New("no key configured")

// Encrypter seals a log line before it is sent to the daemon.
type Encrypter interface {
	Encrypt(plaintext string) (string, error)
}

// App is the root Bubble Tea model.
type App struct {
	// Connection
	client     *uds.Client
	socketPath string
	connected  bool
	events     chan uds.ReportEvent
	encrypt    Encrypter

	// State
	plugins     []host.Info
	selectedIdx int
	statusText  string
	reports     []uds.ReportEvent

	// UI
	activePane Pane
	mode       Mode
	status     viewport.Model
	editor     *LineEditor
	width      int
	height     int

	// Error display
	statusMsg string
}

// New creates a new TUI app model. enc may be nil, in which case adding lines is disabled.
func New(socketPath string, enc Encrypter) App {
	return App{
		socketPath: socketPath,
		encrypt:    enc,
		events:     make(chan uds.ReportEvent, 16),
		status:     viewport.New(0, 0),
		activePane: PaneList,
		mode:       ModeNormal,
	}
}

// Init connects to the daemon.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		connectCmd(a.socketPath),
		tea.SetWindowTitle("tln"),
	)
}

// tickMsg triggers periodic refresh.
type tickMsg time.Time

// connectedMsg indicates successful daemon connection.
type connectedMsg struct{ client *uds.Client }

// pluginsMsg carries the plugin list from the daemon.
type pluginsMsg struct{ plugins []host.Info }

// pluginStatusMsg carries a plugin's rendered status.
type pluginStatusMsg struct {
	plugin string
	text   string
}

// reportMsg carries a report published by the daemon.
type reportMsg uds.ReportEvent

// errorMsg carries an error to display.
type errorMsg struct{ err error }

// actionResultMsg carries the result of an action.
type actionResultMsg struct{ msg string }

func connectCmd(socketPath string) tea.Cmd {
	return func() tea.Msg {
		client, err := uds.Dial(socketPath)
		if err != nil {
			return errorMsg{err}
		}
		return connectedMsg{client}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// disconnectedMsg reports that the daemon connection dropped.
type disconnectedMsg struct{}

func waitReportCmd(ch <-chan uds.ReportEvent, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case re := <-ch:
			return reportMsg(re)
		case <-done:
			return disconnectedMsg{}
		}
	}
}

func fetchPluginsCmd(client *uds.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		resp, err := client.Request(ctx, uds.MethodListPlugins, nil)
		if err != nil {
			return errorMsg{err}
		}

		var plugins []host.Info
		if err := resp.UnmarshalData(&plugins); err != nil {
			return errorMsg{err}
		}
		return pluginsMsg{plugins}
	}
}

func fetchStatusCmd(client *uds.Client, plugin string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		resp, err := client.Request(ctx, uds.MethodStatus, uds.PluginRequest{Plugin: plugin})
		if err != nil {
			return pluginStatusMsg{plugin: plugin}
		}
		var sr uds.StatusResponse
		if err := resp.UnmarshalData(&sr); err != nil {
			return errorMsg{err}
		}
		return pluginStatusMsg{plugin: plugin, text: sr.Status}
	}
}

func dispatchCmd(client *uds.Client, req uds.DispatchRequest) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		resp, err := client.Request(ctx, uds.MethodDispatch, req)
		if err != nil {
			return errorMsg{err}
		}
		var dr uds.DispatchResponse
		if err := resp.UnmarshalData(&dr); err != nil {
			return errorMsg{err}
		}
		if dr.Error != "" {
			return errorMsg{errors.New(req.Action + " → " + req.Plugin + ": " + dr.Error)}
		}
		return actionResultMsg{msg: req.Action + " → " + req.Plugin + " (" + dr.Outcome + ")"}
	}
}

func toggleCmd(client *uds.Client, info host.Info) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		method, verb := uds.MethodLoadPlugin, "loaded "
		if info.Loaded {
			method, verb = uds.MethodUnloadPlugin, "unloaded "
		}
		if _, err := client.Request(ctx, method, uds.PluginRequest{Plugin: info.Name}); err != nil {
			return errorMsg{err}
		}
		return actionResultMsg{msg: verb + info.Name}
	}
}

// Update handles messages.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.status.Width, a.status.Height = a.statusSize()
		return a, nil

	case connectedMsg:
		a.client = msg.client
		a.connected = true
		a.statusMsg = "connected"

		events := a.events
		a.client.OnEvent(func(m uds.Message) {
			if m.Method != uds.EventReportPublished {
				return
			}
			var re uds.ReportEvent
			if err := m.UnmarshalData(&re); err != nil {
				return
			}
			select {
			case events <- re:
			default:
			}
		})

		return a, tea.Batch(tickCmd(), fetchPluginsCmd(a.client), waitReportCmd(a.events, a.client.Done()))

	case tickMsg:
		if a.client != nil {
			return a, tea.Batch(tickCmd(), fetchPluginsCmd(a.client), a.refreshStatus())
		}
		return a, tickCmd()

	case pluginsMsg:
		a.plugins = msg.plugins
		if a.selectedIdx >= len(a.plugins) {
			a.selectedIdx = max(0, len(a.plugins)-1)
		}
		return a, nil

	case pluginStatusMsg:
		if p := a.selectedPlugin(); p != nil && p.Name == msg.plugin {
			a.setStatus(msg.text)
		}
		return a, nil

	case reportMsg:
		a.reports = append(a.reports, uds.ReportEvent(msg))
		if len(a.reports) > maxReports {
			a.reports = a.reports[len(a.reports)-maxReports:]
		}
		if a.client == nil {
			return a, nil
		}
		return a, waitReportCmd(a.events, a.client.Done())

	case disconnectedMsg:
		a.client = nil
		a.connected = false
		a.statusMsg = uds.ErrConnClosed.Error() + ", reconnecting"
		return a, connectCmd(a.socketPath)

	case actionResultMsg:
		a.statusMsg = msg.msg
		return a, tea.Batch(a.refreshPlugins(), a.refreshStatus())

	case errorMsg:
		a.statusMsg = "error: " + msg.err.Error()
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a, nil
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Add-line mode
	if a.mode == ModeAdd && a.editor != nil {
		return a.editor.HandleKey(a, msg)
	}

	// Clear confirmation mode
	if a.mode == ModeConfirmClear {
		a.mode = ModeNormal
		switch msg.String() {
		case "y", "Y":
			return a.dispatch(logs.ActionClear, "")
		default:
			a.statusMsg = "clear cancelled"
			return a, nil
		}
	}

	// Normal mode
	switch msg.String() {
	case "q", "ctrl+c":
		return a, tea.Quit

	case "j", "down":
		if a.activePane == PaneStatus {
			var cmd tea.Cmd
			a.status, cmd = a.status.Update(msg)
			return a, cmd
		}
		if a.activePane == PaneList && len(a.plugins) > 0 {
			a.selectedIdx = min(a.selectedIdx+1, len(a.plugins)-1)
			return a, a.refreshStatus()
		}
	case "k", "up":
		if a.activePane == PaneStatus {
			var cmd tea.Cmd
			a.status, cmd = a.status.Update(msg)
			return a, cmd
		}
		if a.activePane == PaneList && a.selectedIdx > 0 {
			a.selectedIdx--
			return a, a.refreshStatus()
		}

	case "tab":
		a.activePane = (a.activePane + 1) % 3

	case "r":
		return a, tea.Batch(a.refreshPlugins(), a.refreshStatus())

	case "a":
		if a.encrypt == nil {
			a.statusMsg = "error: " + errNoKey.Error()
			return a, nil
		}
		a.editor = NewLineEditor()
		a.mode = ModeAdd
		return a, textinput.Blink

	case "c":
		a.mode = ModeConfirmClear
		a.statusMsg = "Clear all buffered lines? (y/n)"

	case "p":
		return a.dispatch(logs.ActionReport, logs.ReportSelf)

	case "u":
		p := a.selectedPlugin()
		if a.client == nil || p == nil {
			a.statusMsg = "not connected"
			return a, nil
		}
		return a, toggleCmd(a.client, *p)
	}

	return a, nil
}

// dispatch sends action to the logs plugin.
func (a App) dispatch(action, data string) (tea.Model, tea.Cmd) {
	if a.client == nil {
		a.statusMsg = "not connected"
		return a, nil
	}
	return a, dispatchCmd(a.client, uds.DispatchRequest{Plugin: logs.Module, Action: action, Data: data})
}

func (a App) refreshPlugins() tea.Cmd {
	if a.client == nil {
		return nil
	}
	return fetchPluginsCmd(a.client)
}

func (a App) refreshStatus() tea.Cmd {
	p := a.selectedPlugin()
	if a.client == nil || p == nil {
		return nil
	}
	if !p.Loaded {
		name := p.Name
		return func() tea.Msg { return pluginStatusMsg{plugin: name} }
	}
	return fetchStatusCmd(a.client, p.Name)
}

func (a *App) setStatus(text string) {
	follow := a.status.AtBottom() || a.statusText == ""
	a.statusText = text
	a.status.SetContent(text)
	if follow {
		a.status.GotoBottom()
	}
}

func (a App) selectedPlugin() *host.Info {
	if a.selectedIdx < len(a.plugins) {
		return &a.plugins[a.selectedIdx]
	}
	return nil
}
