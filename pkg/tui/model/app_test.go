package model

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/modoterra/tln/pkg/host"
	"github.com/modoterra/tln/pkg/transport/uds"
)

type upperEncrypter struct{ err error }

func (e upperEncrypter) Encrypt(s string) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	return strings.ToUpper(s), nil
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, a App, msg tea.Msg) App {
	t.Helper()
	m, _ := a.Update(msg)
	return m.(App)
}

func newTestApp(t *testing.T, enc Encrypter) App {
	t.Helper()
	a := New("/nonexistent.sock", enc)
	a = update(t, a, tea.WindowSizeMsg{Width: 120, Height: 40})
	return update(t, a, pluginsMsg{plugins: []host.Info{
		{Name: "logs", Loaded: true},
		{Name: "mqtt", Loaded: false},
	}})
}

func TestNavigation(t *testing.T) {
	a := newTestApp(t, nil)

	a = update(t, a, key("j"))
	if a.selectedIdx != 1 {
		t.Fatalf("selectedIdx = %d, want 1", a.selectedIdx)
	}
	a = update(t, a, key("j"))
	if a.selectedIdx != 1 {
		t.Errorf("selection should stop at last plugin, got %d", a.selectedIdx)
	}
	a = update(t, a, key("k"))
	if a.selectedIdx != 0 {
		t.Errorf("selectedIdx = %d, want 0", a.selectedIdx)
	}

	a = update(t, a, key("tab"))
	if a.activePane != PaneStatus {
		t.Errorf("activePane = %d, want PaneStatus", a.activePane)
	}
}

func TestPluginListShrinkClampsSelection(t *testing.T) {
	a := newTestApp(t, nil)
	a = update(t, a, key("j"))
	a = update(t, a, pluginsMsg{plugins: []host.Info{{Name: "logs", Loaded: true}}})
	if a.selectedIdx != 0 {
		t.Errorf("selectedIdx = %d, want 0", a.selectedIdx)
	}
}

func TestClearConfirmation(t *testing.T) {
	a := newTestApp(t, nil)

	a = update(t, a, key("c"))
	if a.mode != ModeConfirmClear {
		t.Fatalf("mode = %d, want ModeConfirmClear", a.mode)
	}
	a = update(t, a, key("n"))
	if a.mode != ModeNormal || a.statusMsg != "clear cancelled" {
		t.Errorf("mode = %d, statusMsg = %q", a.mode, a.statusMsg)
	}

	a = update(t, a, key("c"))
	a = update(t, a, key("y"))
	if a.statusMsg != "not connected" {
		t.Errorf("confirmed clear without a client: statusMsg = %q", a.statusMsg)
	}
}

func TestAddWithoutKey(t *testing.T) {
	a := newTestApp(t, nil)
	a = update(t, a, key("a"))
	if a.mode != ModeNormal {
		t.Error("add mode should not open without a key")
	}
	if !strings.Contains(a.statusMsg, "no key configured") {
		t.Errorf("statusMsg = %q", a.statusMsg)
	}
}

func TestAddLine(t *testing.T) {
	a := newTestApp(t, upperEncrypter{})

	a = update(t, a, key("a"))
	if a.mode != ModeAdd || a.editor == nil {
		t.Fatal("expected add mode")
	}
	a = update(t, a, key("boot ok"))
	if got := a.editor.Value(); got != "boot ok" {
		t.Errorf("editor value = %q", got)
	}

	a = update(t, a, key("enter"))
	if a.mode != ModeNormal || a.editor != nil {
		t.Error("enter should leave add mode")
	}
	if a.statusMsg != "not connected" {
		t.Errorf("statusMsg = %q", a.statusMsg)
	}
}

func TestAddLineEncryptError(t *testing.T) {
	a := newTestApp(t, upperEncrypter{err: errors.New("sealed shut")})
	a = update(t, a, key("a"))
	a = update(t, a, key("x"))
	a = update(t, a, key("enter"))
	if !strings.Contains(a.statusMsg, "sealed shut") {
		t.Errorf("statusMsg = %q", a.statusMsg)
	}
}

func TestAddLineCancel(t *testing.T) {
	a := newTestApp(t, upperEncrypter{})
	a = update(t, a, key("a"))
	a = update(t, a, key("esc"))
	if a.mode != ModeNormal || a.statusMsg != "add cancelled" {
		t.Errorf("mode = %d, statusMsg = %q", a.mode, a.statusMsg)
	}
}

func TestStatusOnlyForSelectedPlugin(t *testing.T) {
	a := newTestApp(t, nil)

	a = update(t, a, pluginStatusMsg{plugin: "mqtt", text: "published: 3\n"})
	if a.statusText != "" {
		t.Errorf("status for unselected plugin applied: %q", a.statusText)
	}
	a = update(t, a, pluginStatusMsg{plugin: "logs", text: "1: 1970-01-01 00:00:00 +00:00 : hi\n"})
	if !strings.Contains(a.View(), "hi") {
		t.Error("view should show selected plugin status")
	}
}

func TestReportsAreCapped(t *testing.T) {
	a := newTestApp(t, nil)
	for i := 0; i < maxReports+5; i++ {
		a = update(t, a, reportMsg(uds.ReportEvent{Topic: "tln/edge-01/logs", Payload: "1: x : y\n"}))
	}
	if len(a.reports) != maxReports {
		t.Errorf("reports = %d, want %d", len(a.reports), maxReports)
	}
	if !strings.Contains(a.View(), "tln/edge-01/logs") {
		t.Error("view should list report topics")
	}
}

func TestViewBeforeResize(t *testing.T) {
	a := New("/nonexistent.sock", nil)
	if got := a.View(); got != "loading..." {
		t.Errorf("View() = %q", got)
	}
}

func TestViewShowsPlugins(t *testing.T) {
	a := newTestApp(t, nil)
	v := a.View()
	for _, want := range []string{"logs", "mqtt", "Plugins"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	a := newTestApp(t, nil)
	a = update(t, a, errorMsg{errors.New("boom")})
	if a.statusMsg != "error: boom" {
		t.Errorf("statusMsg = %q", a.statusMsg)
	}
}

func TestWaitReportEndsOnDisconnect(t *testing.T) {
	done := make(chan struct{})
	close(done)
	msg := waitReportCmd(make(chan uds.ReportEvent), done)()
	if _, ok := msg.(disconnectedMsg); !ok {
		t.Fatalf("msg = %T, want disconnectedMsg", msg)
	}

	ch := make(chan uds.ReportEvent, 1)
	ch <- uds.ReportEvent{Topic: "tln/edge-01/logs"}
	if msg := waitReportCmd(ch, make(chan struct{}))(); msg.(reportMsg).Topic != "tln/edge-01/logs" {
		t.Errorf("msg = %+v", msg)
	}
}

func TestDisconnectMarksOffline(t *testing.T) {
	a := newTestApp(t, nil)
	a.connected = true

	m, cmd := a.Update(disconnectedMsg{})
	a = m.(App)
	if a.connected || a.client != nil {
		t.Error("app still marked connected")
	}
	if !strings.Contains(a.statusMsg, uds.ErrConnClosed.Error()) {
		t.Errorf("statusMsg = %q", a.statusMsg)
	}
	if cmd == nil {
		t.Error("expected a reconnect command")
	}
}
