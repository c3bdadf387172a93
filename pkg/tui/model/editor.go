package model

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/modoterra/tln/pkg/plugins/logs"
)

// LineEditor is the inline prompt for adding a log line.
type LineEditor struct {
	input textinput.Model
}

// NewLineEditor creates a focused, empty prompt.
func NewLineEditor() *LineEditor {
	ti := textinput.New()
	ti.Placeholder = "log line"
	ti.CharLimit = 1024
	ti.Focus()
	return &LineEditor{input: ti}
}

// Value returns the current text.
func (e *LineEditor) Value() string { return e.input.Value() }

// HandleKey processes key events in add mode.
func (e *LineEditor) HandleKey(a App, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.mode = ModeNormal
		a.editor = nil
		a.statusMsg = "add cancelled"
		return a, nil

	case "enter":
		line := strings.TrimSpace(e.input.Value())
		a.mode = ModeNormal
		a.editor = nil
		if line == "" {
			a.statusMsg = "add cancelled"
			return a, nil
		}
		ct, err := a.encrypt.Encrypt(line)
		if err != nil {
			a.statusMsg = "error: " + err.Error()
			return a, nil
		}
		return a.dispatch(logs.ActionAdd, ct)

	default:
		var cmd tea.Cmd
		e.input, cmd = e.input.Update(msg)
		return a, cmd
	}
}

// View renders the prompt.
func (e *LineEditor) View() string {
	return titleStyle.Render(" Add line ") + " " + e.input.View()
}
