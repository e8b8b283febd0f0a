package tui

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/motorkit/internal/config"
	"github.com/san-kum/motorkit/internal/control"
	"github.com/san-kum/motorkit/internal/experiment"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Run.Schedule = nil
	exp, err := experiment.Build(cfg, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	if err := exp.Start(); err != nil {
		t.Fatal(err)
	}
	return New(exp.Rig(), "test", 1500, 100)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return nm, cmd
}

func TestTargetKeys(t *testing.T) {
	m := newTestModel(t)
	m, _ = update(t, m, key("up"))
	m, _ = update(t, m, key("up"))
	m, _ = update(t, m, key("down"))

	if m.Target() != 1600 {
		t.Errorf("target = %v, want 1600", m.Target())
	}
	tg := m.rig.Controller().(control.Targeter)
	if tg.Target() != 1600 {
		t.Errorf("controller target = %v, want 1600", tg.Target())
	}
}

func TestTickAdvancesRig(t *testing.T) {
	m := newTestModel(t)
	m, cmd := update(t, m, tickMsg(time.Now()))
	if cmd == nil {
		t.Fatal("expected the next tick to be scheduled")
	}
	if m.rig.ElapsedMs() != 50 {
		t.Errorf("elapsed = %d ms, want 50", m.rig.ElapsedMs())
	}
	if len(m.trace) != 2 {
		t.Errorf("trace has %d samples, want 2", len(m.trace))
	}
	if m.last.Target != 1500 {
		t.Errorf("sample target = %v", m.last.Target)
	}
}

func TestStopAndResume(t *testing.T) {
	m := newTestModel(t)
	for i := 0; i < 10; i++ {
		m, _ = update(t, m, tickMsg(time.Now()))
	}

	m, _ = update(t, m, key(" "))
	if !m.Stopped() {
		t.Fatal("expected stopped")
	}
	ch, err := m.rig.Registry().Channel(m.rig.Channel())
	if err != nil {
		t.Fatal(err)
	}
	if ch.Active || ch.Applied() != 0 {
		t.Errorf("after stop: active=%v applied=%d", ch.Active, ch.Applied())
	}
	if m.rig.Plant().Power() != 0 {
		t.Errorf("plant power = %d after stop", m.rig.Plant().Power())
	}

	m, _ = update(t, m, tickMsg(time.Now()))
	if m.rig.Plant().Power() != 0 {
		t.Errorf("stopped channel was driven: power %d", m.rig.Plant().Power())
	}

	m, _ = update(t, m, key("a"))
	ch, _ = m.rig.Registry().Channel(m.rig.Channel())
	if m.Stopped() || !ch.Active {
		t.Error("expected channel active after resume")
	}
}

func TestReinitKeepsTarget(t *testing.T) {
	m := newTestModel(t)
	m, _ = update(t, m, key("up"))
	m, _ = update(t, m, key("r"))

	tg := m.rig.Controller().(control.Targeter)
	if tg.Target() != 1600 {
		t.Errorf("controller target = %v after reinit, want 1600", tg.Target())
	}
}

func TestQuit(t *testing.T) {
	m := newTestModel(t)
	m, cmd := update(t, m, key("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if m.View() != "" {
		t.Error("view should be empty after quit")
	}
}

func TestView(t *testing.T) {
	m := newTestModel(t)
	m, _ = update(t, m, tickMsg(time.Now()))
	v := m.View()
	for _, want := range []string{"test", "RUNNING", "target", "measured"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}

	m, _ = update(t, m, key(" "))
	if !strings.Contains(m.View(), "STOPPED") {
		t.Error("view should show STOPPED")
	}
}
