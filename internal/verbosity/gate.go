// Package verbosity provides the numeric output gate used for user-facing
// progress messages. The gate is an explicit object handed to modules through
// their execution context.
package verbosity

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Gate prints messages whose required level does not exceed the configured
// level. The zero level prints only level-0 messages.
type Gate struct {
	level int
	out   io.Writer
}

// New returns a gate writing to out at level 0. A nil writer means stdout.
func New(out io.Writer) *Gate {
	if out == nil {
		out = os.Stdout
	}
	return &Gate{out: out}
}

// Level returns the configured level.
func (g *Gate) Level() int {
	if g == nil {
		return 0
	}
	return g.level
}

// SetLevel changes the configured level.
func (g *Gate) SetLevel(level int) {
	if g == nil {
		return
	}
	g.level = level
}

// Enabled reports whether a message requiring level would be printed.
func (g *Gate) Enabled(level int) bool {
	return g != nil && g.level >= level
}

// Print writes args space-separated on one line when level is enabled.
func (g *Gate) Print(level int, args ...any) {
	if !g.Enabled(level) {
		return
	}
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = fmt.Sprint(arg)
	}
	fmt.Fprintln(g.out, strings.Join(parts, " "))
}

// Printf writes a formatted line when level is enabled.
func (g *Gate) Printf(level int, format string, args ...any) {
	if !g.Enabled(level) {
		return
	}
	line := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	fmt.Fprintln(g.out, line)
}

// Writer returns the destination of enabled messages.
func (g *Gate) Writer() io.Writer {
	if g == nil {
		return io.Discard
	}
	return g.out
}
