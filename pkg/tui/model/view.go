package model

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	loadedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	unloadedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	topicStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	activePaneStyle = paneStyle.
			BorderForeground(lipgloss.Color("205"))

	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// layout returns the list width, status width, main height and reports height.
func (a App) layout() (listW, statusW, mainH, reportsH int) {
	statusBarH := 2
	reportsH = max(a.height/4, 5)
	mainH = max(a.height-reportsH-statusBarH-4, 3)
	listW = max(a.width/4-2, 10)
	statusW = max(a.width-listW-8, 10)
	return listW, statusW, mainH, reportsH
}

func (a App) statusSize() (int, int) {
	_, w, h, _ := a.layout()
	// title row
	return w, max(h-1, 1)
}

// View renders the TUI.
func (a App) View() string {
	if a.width == 0 || a.height == 0 {
		return "loading..."
	}

	listW, statusW, mainH, reportsH := a.layout()

	list := a.renderList(listW, mainH)
	listPane := a.paneBox(PaneList, " Plugins ", list, listW, mainH)

	statusPane := a.paneBox(PaneStatus, a.statusTitle(), a.renderStatus(), statusW, mainH)

	topRow := lipgloss.JoinHorizontal(lipgloss.Top, listPane, statusPane)

	reports := a.renderReports(a.width-4, reportsH)
	reportsPane := a.paneBox(PaneReports, " Reports ", reports, a.width-4, reportsH)

	return lipgloss.JoinVertical(lipgloss.Left, topRow, reportsPane, a.renderStatusBar())
}

func (a App) paneBox(pane Pane, title, content string, w, h int) string {
	style := paneStyle
	if a.activePane == pane {
		style = activePaneStyle
	}
	return style.Width(w).Height(h).Render(
		titleStyle.Render(title) + "\n" + content,
	)
}

func (a App) renderList(w, h int) string {
	if len(a.plugins) == 0 {
		return dimStyle.Render("no plugins")
	}

	var b strings.Builder
	maxVisible := h - 2
	start := 0
	if a.selectedIdx >= maxVisible {
		start = a.selectedIdx - maxVisible + 1
	}

	for i := start; i < len(a.plugins) && i-start < maxVisible; i++ {
		p := a.plugins[i]
		indicator := unloadedStyle.Render("○")
		if p.Loaded {
			indicator = loadedStyle.Render("●")
		}
		line := fmt.Sprintf(" %s %-*s", indicator, max(w-6, 1), truncate(p.Name, w-6))

		if i == a.selectedIdx {
			line = selectedStyle.Width(w).Render(line)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (a App) statusTitle() string {
	p := a.selectedPlugin()
	if p == nil {
		return " Status "
	}
	return " Status: " + p.Name + " "
}

func (a App) renderStatus() string {
	p := a.selectedPlugin()
	switch {
	case p == nil:
		return dimStyle.Render("select a plugin")
	case !p.Loaded:
		return dimStyle.Render("plugin not loaded (u to load)")
	case a.statusText == "":
		return dimStyle.Render("empty")
	}
	return a.status.View()
}

func (a App) renderReports(w, h int) string {
	if len(a.reports) == 0 {
		return dimStyle.Render("no reports published")
	}

	start := 0
	if len(a.reports) > h-1 {
		start = len(a.reports) - h + 1
	}

	var b strings.Builder
	for i := start; i < len(a.reports); i++ {
		r := a.reports[i]
		lines := strings.Count(r.Payload, "\n")
		topic := truncate(r.Topic, w-14)
		fmt.Fprintf(&b, "%s %s\n", topicStyle.Render(topic), dimStyle.Render(fmt.Sprintf("(%d lines)", lines)))
	}
	return b.String()
}

func (a App) renderStatusBar() string {
	left := a.statusMsg
	right := "j/k:nav tab:pane a:add c:clear p:report u:load/unload r:refresh q:quit"
	switch a.mode {
	case ModeAdd:
		if a.editor != nil {
			left = a.editor.View()
		}
		right = "enter:send esc:cancel"
	case ModeConfirmClear:
		right = "y:confirm n:cancel"
	}

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return helpStyle.Render(left + strings.Repeat(" ", gap) + right)
}

func truncate(s string, maxLen int) string {
	if maxLen < 0 {
		maxLen = 0
	}
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
