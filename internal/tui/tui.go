// Package tui is the interactive terminal front end: a status strip, the
// scrollable log, and a line editor for messages to the server.
package tui

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/crimson-sun/updash/internal/dashboard"
	"github.com/crimson-sun/updash/internal/logview"
	"github.com/crimson-sun/updash/internal/render/strip"
	"github.com/crimson-sun/updash/internal/session"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#89B4FA"))
	panelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#45475A"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
)

type keyMap struct {
	Quit     key.Binding
	Submit   key.Binding
	LineUp   key.Binding
	LineDown key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Bottom   key.Binding
}

var keys = keyMap{
	Quit:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	Submit:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
	LineUp:   key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "scroll up")),
	LineDown: key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "scroll down")),
	PageUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "page up")),
	PageDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "page down")),
	Bottom:   key.NewBinding(key.WithKeys("end"), key.WithHelp("end", "follow")),
}

// Sender transmits user text over the open session.
type Sender interface {
	Send(text string) error
}

// eventMsg carries one session event into the update loop. ok is false once
// the event channel has closed.
type eventMsg struct {
	ev session.Event
	ok bool
}

// Model is the bubbletea model. Session events and user submissions are
// both handled in Update, so they never run concurrently.
type Model struct {
	ctx    context.Context
	title  string
	dash   *dashboard.Dashboard
	log    *logview.View
	strip  *strip.Strip
	input  textinput.Model
	sender Sender
	events <-chan session.Event

	width  int
	height int
}

// New creates the model. sender, events and st are nil when no session could
// be opened; only the log is shown then.
func New(ctx context.Context, title string, dash *dashboard.Dashboard, log *logview.View, st *strip.Strip, sender Sender, events <-chan session.Event) Model {
	in := textinput.New()
	in.Placeholder = "message to server"
	in.Prompt = "> "
	in.Focus()

	return Model{
		ctx:    ctx,
		title:  title,
		dash:   dash,
		log:    log,
		strip:  st,
		input:  in,
		sender: sender,
		events: events,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForEvent(m.events))
}

// waitForEvent reads the next session event. A nil channel yields no command.
func waitForEvent(events <-chan session.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		return eventMsg{ev: ev, ok: ok}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Submit):
			m.submit()
			return m, nil
		case key.Matches(msg, keys.LineUp):
			m.log.ScrollUp(1)
			return m, nil
		case key.Matches(msg, keys.LineDown):
			m.log.ScrollDown(1)
			return m, nil
		case key.Matches(msg, keys.PageUp):
			m.log.ScrollUp(m.logHeight())
			return m, nil
		case key.Matches(msg, keys.PageDown):
			m.log.ScrollDown(m.logHeight())
			return m, nil
		case key.Matches(msg, keys.Bottom):
			m.log.ScrollDown(m.log.Len())
			return m, nil
		}

	case tea.MouseMsg:
		return m, m.log.Update(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case eventMsg:
		if !msg.ok {
			m.events = nil
			return m, nil
		}
		m.dash.Handle(m.ctx, msg.ev)
		return m, waitForEvent(m.events)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input line. Blank input, or no session, leaves the input
// untouched and sends nothing.
func (m *Model) submit() {
	text := m.input.Value()
	if m.sender == nil || strings.TrimSpace(text) == "" {
		return
	}
	if err := m.sender.Send(text); err != nil {
		if errors.Is(err, session.ErrNotOpen) || errors.Is(err, session.ErrEmptyMessage) {
			slog.Debug("message not sent", "error", err)
			return
		}
		slog.Warn("send failed", "error", err)
		return
	}
	m.input.Reset()
}

// Chrome: title line, strip line, two border lines, input line, help line.
const chromeHeight = 6

func (m Model) logHeight() int {
	h := m.height - chromeHeight
	if m.strip == nil {
		h++
	}
	if h < 1 {
		h = 1
	}
	return h
}

func (m *Model) layout() {
	inner := m.width - 2
	if inner < 1 {
		inner = 1
	}
	if m.strip != nil {
		m.strip.SetWidth(m.width)
	}
	m.log.SetSize(inner, m.logHeight())
	m.input.Width = m.width - lipgloss.Width(m.input.Prompt) - 1
}

func (m Model) View() string {
	help := helpStyle.Render(strings.Join([]string{
		keys.Submit.Help().Key + " " + keys.Submit.Help().Desc,
		keys.PageUp.Help().Key + "/" + keys.PageDown.Help().Key + " scroll",
		keys.Bottom.Help().Key + " " + keys.Bottom.Help().Desc,
		keys.Quit.Help().Key + " " + keys.Quit.Help().Desc,
	}, " • "))

	parts := []string{titleStyle.Render(m.title)}
	if m.strip != nil {
		parts = append(parts, m.strip.View())
	}
	parts = append(parts, panelStyle.Render(m.log.View()), m.input.View(), help)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
