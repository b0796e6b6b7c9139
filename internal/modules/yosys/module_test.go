package yosys

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kingrea/fpgaflow/internal/module"
	"github.com/kingrea/fpgaflow/internal/proc"
	"github.com/kingrea/fpgaflow/internal/resolve"
	"github.com/kingrea/fpgaflow/internal/value"
)

type fakeRunner struct {
	calls []proc.Command
	// touch lists the files the fake "tool" writes.
	touch []string
	err   error
}

func (f *fakeRunner) Run(cmd proc.Command) ([]byte, error) {
	f.calls = append(f.calls, cmd)
	if f.err != nil {
		return nil, f.err
	}
	for _, path := range f.touch {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func writeSources(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("module top; endmodule"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func newEnv(t *testing.T, dir string, extra ...any) *resolve.Env {
	t.Helper()
	env := resolve.New()
	pairs := append([]any{
		"build_dir", filepath.Join(dir, "build"),
		"sources", []string{dir + "/rtl/**/*.v", dir + "/rtl/core.il"},
		"top", "top",
		"device", "xc7a50t_test",
		"extra_args", "-q -DSYNTH='yes please'",
		"read_verilog_args", []string{"-sv", "-noautowire"},
		"tcl_scripts", "/share/xc7",
		"yosys_tcl_env", value.MappingOf("OUT_JSON", "${build_dir}/top.json", "PARTS", []string{"a", "b"}),
	}, extra...)
	if err := env.AddValues(value.MappingOf(pairs...)); err != nil {
		t.Fatalf("env: %v", err)
	}
	return env
}

func TestYosysMapIODerivesPathsFromTop(t *testing.T) {
	dir := t.TempDir()
	mod, err := New(module.Params{"pnrtool": "vpr", "produces": []string{"sdc"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, err := module.BuildContext(mod, newEnv(t, dir), module.BuildOptions{})
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	build := filepath.Join(dir, "build")
	expect := map[string]string{
		"eblif":      filepath.Join(build, "top.eblif"),
		"fasm_extra": filepath.Join(build, "top_fasm_extra.fasm"),
		"json":       filepath.Join(build, "top.json"),
		"synth_json": filepath.Join(build, "top_io.json"),
		"synth_log":  filepath.Join(build, "top_synth.log"),
		"sdc":        filepath.Join(build, "xc7a50t_test_sdc.sdc"),
	}
	for name, want := range expect {
		if got := ctx.Produce(name); got != want {
			t.Fatalf("%s: expected %q, got %q", name, want, got)
		}
	}
}

func TestYosysRejectsOptionalExtraProducts(t *testing.T) {
	mod, err := New(module.Params{"produces": []string{"report?"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = module.BuildContext(mod, newEnv(t, t.TempDir()), module.BuildOptions{})
	var cfgErr *module.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestYosysPnrToolSelection(t *testing.T) {
	t.Setenv(FamilyEnv, "ice40")
	mod, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if mod.PnrTool() != ToolNextpnr {
		t.Fatalf("expected nextpnr for ice40, got %s", mod.PnrTool())
	}
	if _, ok := mod.Descriptor().Product("eblif"); ok {
		t.Fatalf("nextpnr flow must not declare eblif")
	}
	t.Setenv(FamilyEnv, "xc7")
	mod, err = New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if mod.PnrTool() != ToolVPR {
		t.Fatalf("expected vpr, got %s", mod.PnrTool())
	}
	if _, err := New(module.Params{"pnrtool": "quartus"}); err == nil {
		t.Fatalf("expected unknown pnrtool to be rejected")
	}
}

func TestYosysRunBuildsCommandAndCompletesOutputs(t *testing.T) {
	dir := t.TempDir()
	writeSources(t, dir, "rtl/top.v", "rtl/sub/uart.v", "rtl/notes.txt", "rtl/core.il")
	build := filepath.Join(dir, "build")
	if err := os.MkdirAll(build, 0o755); err != nil {
		t.Fatal(err)
	}
	mod, err := New(module.Params{"pnrtool": "vpr"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	runner := &fakeRunner{}
	ctx, err := module.BuildContext(mod, newEnv(t, dir), module.BuildOptions{
		ShareDir: "/opt/f4pga/share",
		Runner:   runner,
	})
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	for _, name := range []string{"json", "synth_log", "eblif", "synth_json"} {
		runner.touch = append(runner.touch, ctx.Produce(name))
	}

	var messages []string
	if err := module.Run(mod, ctx, func(p module.Progress) { messages = append(messages, p.Message) }); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(messages) != 3 || messages[1] != "Synthesizing sources..." {
		t.Fatalf("unexpected progress %v", messages)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("expected one yosys call, got %d", len(runner.calls))
	}
	cmd := runner.calls[0]
	wantPrefix := []string{"yosys", "-l", ctx.Produce("synth_log"), "-q", "-DSYNTH=yes please", "-p"}
	if len(cmd.Argv) != len(wantPrefix)+1 {
		t.Fatalf("unexpected argv %q", cmd.Argv)
	}
	for i, want := range wantPrefix {
		if cmd.Argv[i] != want {
			t.Fatalf("argv[%d]: expected %q, got %q", i, want, cmd.Argv[i])
		}
	}
	script := cmd.Argv[len(cmd.Argv)-1]
	for _, fragment := range []string{
		"read_verilog -sv -noautowire " + filepath.Join(dir, "rtl/sub/uart.v") + "; ",
		"read_verilog -sv -noautowire " + filepath.Join(dir, "rtl/top.v") + "; ",
		"read_rtlil " + filepath.Join(dir, "rtl/core.il") + "; ",
		" tcl /opt/f4pga/share/tcl/vpr.f4pga.tcl",
	} {
		if !strings.Contains(script, fragment) {
			t.Fatalf("script %q missing %q", script, fragment)
		}
	}
	if strings.Contains(script, "notes.txt") {
		t.Fatalf("non-HDL sources must be skipped: %q", script)
	}
	if cmd.Env["OUT_JSON"] != filepath.Join(build, "top.json") || cmd.Env["PARTS"] != "a b" {
		t.Fatalf("unexpected tcl env %v", cmd.Env)
	}
	if cmd.Env["TCL_SCRIPTS"] != "/share/xc7" {
		t.Fatalf("tcl_scripts not exported: %v", cmd.Env)
	}
	info, err := os.Stat(ctx.Produce("fasm_extra"))
	if err != nil || info.Size() != 0 {
		t.Fatalf("expected empty fasm_extra, got %v", err)
	}
}

func TestYosysPropagatesToolFailure(t *testing.T) {
	dir := t.TempDir()
	writeSources(t, dir, "rtl/top.v", "rtl/core.il")
	mod, err := New(module.Params{"pnrtool": "vpr"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	failure := &proc.SubprocessError{Command: "yosys", ExitCode: 3}
	ctx, err := module.BuildContext(mod, newEnv(t, dir), module.BuildOptions{Runner: &fakeRunner{err: failure}})
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	err = module.Run(mod, ctx, nil)
	if proc.ExitCode(err) != 3 {
		t.Fatalf("expected exit code 3 to survive wrapping, got %v", err)
	}
}

func TestExpandSourcesRejectsEmptyGlob(t *testing.T) {
	if _, err := expandSources([]string{filepath.Join(t.TempDir(), "*.v")}); err == nil {
		t.Fatalf("expected error for glob without matches")
	}
	got, err := expandSources([]string{"plain.v"})
	if err != nil || len(got) != 1 || got[0] != "plain.v" {
		t.Fatalf("plain paths should pass through, got %v (%v)", got, err)
	}
}
