// Package proc runs external toolchain programs. Every invocation blocks until
// the child exits, captures both output streams, and turns a non-zero exit
// into a *SubprocessError. The command-line entry point decides whether that
// error terminates the run.
package proc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// exitCodeNotFound is reported when the program could not be started.
const exitCodeNotFound = 127

// Command describes one external tool invocation.
type Command struct {
	Argv []string
	// Env overrides are layered on top of the parent environment.
	Env map[string]string
	Dir string
	// EchoStdoutOnFailure adds the captured stdout to the failure report.
	EchoStdoutOnFailure bool
}

// Name returns the program name.
func (c Command) Name() string {
	if len(c.Argv) == 0 {
		return ""
	}
	return c.Argv[0]
}

// Runner executes commands. Modules receive a Runner through their context
// so tests can substitute a fake.
type Runner interface {
	Run(cmd Command) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Report receives failure reports. Nil means stderr.
	Report io.Writer
}

// NewExecRunner returns a runner reporting failures to report.
func NewExecRunner(report io.Writer) *ExecRunner {
	return &ExecRunner{Report: report}
}

// Run executes cmd and returns its stdout. There are no retries.
func (r *ExecRunner) Run(cmd Command) ([]byte, error) {
	if len(cmd.Argv) == 0 {
		return nil, errors.New("proc: empty command")
	}
	c := exec.Command(cmd.Argv[0], cmd.Argv[1:]...)
	c.Dir = cmd.Dir
	c.Env = mergeEnv(os.Environ(), cmd.Env)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}
	failure := &SubprocessError{
		Command:  cmd.Name(),
		Argv:     append([]string{}, cmd.Argv...),
		ExitCode: exitCodeNotFound,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		failure.ExitCode = exitErr.ExitCode()
	} else {
		failure.Err = err
	}
	r.report(cmd, failure)
	return nil, failure
}

func (r *ExecRunner) report(cmd Command, failure *SubprocessError) {
	w := r.Report
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, "[ERROR]: %s non-zero return code.\n\n", failure.Command)
	if failure.Err != nil {
		fmt.Fprintf(w, "%v\n\n", failure.Err)
	}
	if cmd.EchoStdoutOnFailure {
		fmt.Fprintf(w, "stdout:\n%s\n\n", failure.Stdout)
	}
	fmt.Fprintf(w, "stderr:\n%s\n\n", failure.Stderr)
}

func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, overridden := overrides[key]; overridden {
			continue
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+overrides[k])
	}
	return out
}

// SubprocessError reports a tool that exited non-zero or failed to start.
type SubprocessError struct {
	Command  string
	Argv     []string
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Err      error
}

func (e *SubprocessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("proc: %s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("proc: %s exited with code %d", e.Command, e.ExitCode)
}

func (e *SubprocessError) Unwrap() error { return e.Err }

// ExitCode maps an error to the process exit status the entry point should
// use: the child's code for tool failures, 1 for anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var failure *SubprocessError
	if errors.As(err, &failure) && failure.ExitCode != 0 {
		return failure.ExitCode
	}
	return 1
}
