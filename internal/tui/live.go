// Package tui is the live console for a running rig.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/motorkit/internal/control"
	"github.com/san-kum/motorkit/internal/motor"
	"github.com/san-kum/motorkit/internal/sim"
	"github.com/san-kum/motorkit/internal/viz"
)

const (
	frameInterval = 50 * time.Millisecond
	traceLen      = 120
	plotWidth     = 60
	plotHeight    = 8
)

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Model drives a started rig in real time: each frame advances the rig by
// the frame interval's worth of milliseconds.
type Model struct {
	rig    *sim.Rig
	styles viz.Styles
	title  string

	target float64
	step   float64

	trace []float64
	power []float64
	last  sim.Sample

	stopped  bool
	quitting bool
	err      error
}

// New sets the rig's target and returns a console for it. step is the
// target change per up/down key press.
func New(rig *sim.Rig, title string, target, step float64) Model {
	rig.SetTarget(target, control.KeepApprox)
	return Model{
		rig:    rig,
		styles: viz.DefaultStyles(),
		title:  title,
		target: target,
		step:   step,
	}
}

func (m Model) Init() tea.Cmd { return tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tickMsg:
		if m.quitting || m.err != nil {
			return m, nil
		}
		m.advance(int(frameInterval / time.Millisecond))
		return m, tick()
	}
	return m, nil
}

func (m *Model) advance(ms int) {
	for i := 0; i < ms; i++ {
		s, ok, err := m.rig.Tick()
		if ok {
			m.last = s
			m.trace = appendCapped(m.trace, s.Measured)
			m.power = appendCapped(m.power, float64(s.Applied))
		}
		if err != nil {
			m.err = err
			_ = m.rig.Stop()
			m.stopped = true
			return
		}
	}
}

func appendCapped(xs []float64, v float64) []float64 {
	xs = append(xs, v)
	if len(xs) > traceLen {
		xs = xs[len(xs)-traceLen:]
	}
	return xs
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		_ = m.rig.Stop()
		return m, tea.Quit
	case "up", "k":
		m.target += m.step
		m.rig.SetTarget(m.target, control.KeepApprox)
	case "down", "j":
		m.target -= m.step
		m.rig.SetTarget(m.target, control.KeepApprox)
	case " ":
		if err := m.rig.Stop(); err != nil {
			m.err = err
		}
		m.stopped = true
	case "a":
		if err := m.rig.Resume(); err != nil {
			m.err = err
		}
		m.stopped = false
	case "r":
		// Reinit clears the controller's target along with its state.
		m.rig.Reinit()
		m.rig.SetTarget(m.target, control.KeepApprox)
	case "t":
		m.styles = viz.NewStyles(viz.NextTheme(m.styles.Theme))
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	s := m.styles

	var b strings.Builder
	b.WriteString(s.Title.Render(m.title))
	b.WriteString("  ")
	switch {
	case m.err != nil:
		b.WriteString(s.Alert.Render("FAULT"))
	case m.stopped:
		b.WriteString(s.Stopped.Render("STOPPED"))
	default:
		b.WriteString(s.Running.Render("RUNNING"))
	}
	b.WriteString(s.Label.Render(fmt.Sprintf("  t=%.2fs", float64(m.rig.ElapsedMs())/1000)))
	b.WriteString("\n")
	b.WriteString(s.Separator(plotWidth))
	b.WriteString("\n")

	b.WriteString(m.field("target", m.target))
	b.WriteString(m.field("measured", m.last.Measured))
	b.WriteString(m.field("estimated", m.last.Estimated))
	b.WriteString(m.field("output", m.last.Output))
	b.WriteString(fmt.Sprintf("%s %s %s\n",
		s.Label.Render(fmt.Sprintf("%-10s", "power")),
		s.PowerBar(m.last.Applied, motor.MaxPower, 40),
		s.Value.Render(fmt.Sprintf("%4d", m.last.Applied))))
	b.WriteString(s.Label.Render(fmt.Sprintf("%-10s", "history")) + " " + s.Sparkline(m.power, 40) + "\n\n")

	if plot := viz.PlotSize(m.trace, "measured", plotWidth, plotHeight); plot != "" {
		b.WriteString(s.Panel.Render(plot))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(s.Alert.Render(m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(s.Hint.Render("↑/↓ target  space stop  a resume  r reinit  t theme  q quit"))
	return b.String()
}

func (m Model) field(label string, v float64) string {
	return fmt.Sprintf("%s %s\n",
		m.styles.Label.Render(fmt.Sprintf("%-10s", label)),
		m.styles.Value.Render(fmt.Sprintf("%10.2f", v)))
}

// Target is the setpoint the console last sent.
func (m Model) Target() float64 { return m.target }
func (m Model) Stopped() bool   { return m.stopped }
func (m Model) Err() error      { return m.err }

// Run blocks until the user quits. Power is cut on exit.
func Run(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
