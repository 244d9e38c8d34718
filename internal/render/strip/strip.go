package strip

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/crimson-sun/updash/internal/model"
)

var (
	upStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
	downStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
)

const (
	upCell   = "█"
	downCell = "▁"
)

// Strip is a terminal chart: one cell per sample, newest on the right,
// followed by the latest state and when it was observed.
type Strip struct {
	toTime func(int64) time.Time
	layout string

	mu    sync.Mutex
	width int
	last  model.TimeSeries
	view  string
}

// New creates a Strip that is width cells wide.
func New(width int, toTime func(int64) time.Time) *Strip {
	if toTime == nil {
		toTime = time.UnixMilli
	}
	s := &Strip{toTime: toTime, layout: "15:04:05", width: width}
	s.view = s.draw()
	return s
}

func (s *Strip) Render(_ context.Context, ts model.TimeSeries) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = ts.Clone()
	s.view = s.draw()
	return nil
}

func (s *Strip) Close() error { return nil }

// SetWidth changes the number of cells and redraws.
func (s *Strip) SetWidth(width int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width = width
	s.view = s.draw()
}

// View returns the most recent drawing.
func (s *Strip) View() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

func (s *Strip) draw() string {
	n := s.last.Len()
	if n == 0 {
		return dimStyle.Render("no samples yet")
	}

	latest := s.last.Statuses[n-1]
	state := downStyle.Render("DOWN")
	if latest == 1 {
		state = upStyle.Render("UP")
	}
	summary := fmt.Sprintf(" %s since %s (%d samples)",
		state, s.toTime(s.last.Timestamps[n-1]).Local().Format(s.layout), n)

	cells := s.width - lipgloss.Width(summary)
	if cells < 1 {
		cells = 1
	}
	start := 0
	if n > cells {
		start = n - cells
	}

	var b strings.Builder
	for _, v := range s.last.Statuses[start:] {
		if v == 1 {
			b.WriteString(upStyle.Render(upCell))
		} else {
			b.WriteString(downStyle.Render(downCell))
		}
	}
	b.WriteString(summary)
	return b.String()
}
