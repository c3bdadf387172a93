// Package console prints plugin banners and status listings for operators.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/coreos/go-systemd/v22/journal"

	"github.com/modoterra/tln/pkg/logbuf"
)

// Printer writes colored output to a terminal and optionally mirrors it to journald.
type Printer struct {
	w       io.Writer
	mu      sync.Mutex
	journal bool

	module lipgloss.Style
	stamp  lipgloss.Style
}

// New creates a printer writing to w. Colors are dropped when w is not a terminal.
func New(w io.Writer, mirrorJournal bool) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:       w,
		journal: mirrorJournal && journal.Enabled(),
		module:  r.NewStyle().Foreground(lipgloss.Color("4")),
		stamp:   r.NewStyle().Foreground(lipgloss.Color("244")),
	}
}

// Stdout is a printer on os.Stdout without journald.
func Stdout() *Printer { return New(os.Stdout, false) }

// Discard drops everything.
func Discard() *Printer { return New(io.Discard, false) }

// Event prints "[module] msg", e.g. "[logs] Loading...".
func (p *Printer) Event(module, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "[%s] %s\n", p.module.Render(module), msg)
}

// Entries prints a "[module]" header followed by one tab-indented line per entry.
func (p *Printer) Entries(module string, entries []logbuf.Entry, loc *time.Location) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "[%s]\n", p.module.Render(module))
	var plain strings.Builder
	for i, e := range entries {
		ts := logbuf.FormatTime(e.Timestamp, loc)
		fmt.Fprintf(p.w, "\t%d: %s %s\n", i+1, p.stamp.Render(ts+":"), e.Text)
		fmt.Fprintf(&plain, "%d: %s : %s\n", i+1, ts, e.Text)
	}
	p.mirror(module, plain.String())
}

// Text prints a "[module]" header followed by a pre-rendered block.
func (p *Printer) Text(module, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "[%s]\n", p.module.Render(module))
	if text != "" {
		io.WriteString(p.w, text)
		if !strings.HasSuffix(text, "\n") {
			io.WriteString(p.w, "\n")
		}
	}
	p.mirror(module, text)
}

func (p *Printer) mirror(module, text string) {
	if !p.journal || text == "" {
		return
	}
	// Best-effort; the socket may vanish if journald restarts.
	_ = journal.Send(text, journal.PriInfo, map[string]string{"TLN_PLUGIN": module})
}
