package logview

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/crimson-sun/updash/internal/model"
)

var noticeStyle = lipgloss.NewStyle().Bold(true)

// View is an append-only, unbounded log panel. It follows new entries while
// the viewer is at the bottom and leaves the scroll position alone once they
// have scrolled back. One line is the scroll unit.
type View struct {
	entries []model.LogEntry
	lines   []string
	vp      viewport.Model
}

// New creates an empty View of the given size in cells.
func New(width, height int) *View {
	return &View{vp: viewport.New(width, height)}
}

// Append adds one entry at the end of the log.
func (v *View) Append(e model.LogEntry) {
	follow := v.vp.AtBottom()

	v.entries = append(v.entries, e)
	line := e.Text
	if e.Notice {
		line = noticeStyle.Render(line)
	}
	v.lines = append(v.lines, line)
	v.vp.SetContent(strings.Join(v.lines, "\n"))

	if follow {
		v.vp.GotoBottom()
	}
}

// Entries returns a copy of every entry appended so far.
func (v *View) Entries() []model.LogEntry {
	out := make([]model.LogEntry, len(v.entries))
	copy(out, v.entries)
	return out
}

// Len returns the number of entries.
func (v *View) Len() int { return len(v.entries) }

// AtBottom reports whether the newest line is visible.
func (v *View) AtBottom() bool { return v.vp.AtBottom() }

// Offset returns the index of the first visible line.
func (v *View) Offset() int { return v.vp.YOffset }

// ScrollUp moves the view n lines towards older entries.
func (v *View) ScrollUp(n int) { v.vp.SetYOffset(v.vp.YOffset - n) }

// ScrollDown moves the view n lines towards newer entries.
func (v *View) ScrollDown(n int) { v.vp.SetYOffset(v.vp.YOffset + n) }

// SetSize resizes the panel, staying pinned to the bottom if it was.
func (v *View) SetSize(width, height int) {
	follow := v.vp.AtBottom()
	v.vp.Width = width
	v.vp.Height = height
	if follow {
		v.vp.GotoBottom()
	} else {
		v.vp.SetYOffset(v.vp.YOffset)
	}
}

// Update forwards key and mouse scrolling to the viewport.
func (v *View) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	v.vp, cmd = v.vp.Update(msg)
	return cmd
}

// View renders the visible window.
func (v *View) View() string {
	return v.vp.View()
}
