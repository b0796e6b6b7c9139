package verbosity

import (
	"bytes"
	"testing"
)

func TestGateFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	g := New(&buf)
	g.SetLevel(1)

	g.Print(2, "hidden")
	if buf.Len() != 0 {
		t.Fatalf("level 2 message should be suppressed, got %q", buf.String())
	}
	g.Print(1, "one", 1)
	g.Print(0, "zero")
	if got, want := buf.String(), "one 1\nzero\n"; got != want {
		t.Fatalf("unexpected output %q, want %q", got, want)
	}
}

func TestGateDefaultsToZero(t *testing.T) {
	var buf bytes.Buffer
	g := New(&buf)
	if g.Level() != 0 {
		t.Fatalf("expected default level 0, got %d", g.Level())
	}
	if g.Enabled(1) {
		t.Fatalf("level 1 must be disabled by default")
	}
	g.Printf(0, "phase %d/%d\n", 1, 3)
	if buf.String() != "phase 1/3\n" {
		t.Fatalf("unexpected printf output %q", buf.String())
	}
}

func TestNilGateDiscards(t *testing.T) {
	var g *Gate
	g.SetLevel(3)
	g.Print(0, "ignored")
	if g.Enabled(0) {
		t.Fatalf("nil gate must never be enabled")
	}
	if g.Level() != 0 {
		t.Fatalf("nil gate level should be 0")
	}
}
