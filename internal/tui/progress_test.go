package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/fpgaflow/internal/module"
)

func TestModelTracksPhases(t *testing.T) {
	m := NewModel("yosys", 3)
	m.Update(progressMsg(module.Progress{Module: "yosys", Phase: 1, Phases: 3, Message: "Collecting sources..."}))
	m.Update(progressMsg(module.Progress{Module: "yosys", Phase: 2, Phases: 3, Message: "Synthesizing sources..."}))
	view := m.View()
	if !strings.Contains(view, "✓ Collecting sources...") {
		t.Fatalf("completed phase missing from view: %q", view)
	}
	if !strings.Contains(view, "[2/3]") || !strings.Contains(view, "Synthesizing sources...") {
		t.Fatalf("current phase missing from view: %q", view)
	}

	_, cmd := m.Update(finishedMsg{})
	if cmd == nil {
		t.Fatalf("expected quit command after completion")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
	if m.Err() != nil || len(m.done) != 2 {
		t.Fatalf("unexpected final state: err=%v done=%v", m.Err(), m.done)
	}
}

func TestModelReportsFailure(t *testing.T) {
	m := NewModel("pack", 1)
	m.Update(progressMsg(module.Progress{Phase: 1, Phases: 1, Message: "Packing..."}))
	failure := errors.New("vpr exited with code 2")
	m.Update(finishedMsg{err: failure})
	if !errors.Is(m.Err(), failure) {
		t.Fatalf("expected failure to be reported, got %v", m.Err())
	}
	if view := m.View(); !strings.Contains(view, "✗ Packing...") || !strings.Contains(view, "code 2") {
		t.Fatalf("failure not rendered: %q", view)
	}
}

func TestModelQuitBeforeFinish(t *testing.T) {
	m := NewModel("pack", 1)
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !errors.Is(m.Err(), ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", m.Err())
	}
}
