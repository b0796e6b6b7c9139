package module

import (
	"errors"
	"iter"
	"os"
	"path/filepath"
	"testing"

	"github.com/kingrea/fpgaflow/internal/dep"
	"github.com/kingrea/fpgaflow/internal/resolve"
	"github.com/kingrea/fpgaflow/internal/value"
)

type stubModule struct {
	Base
	mapping map[string]string
	write   bool
	fail    error
}

func newStubModule(t *testing.T, write bool) *stubModule {
	t.Helper()
	base, err := NewExtendedBase(Descriptor{
		Name:   "stub",
		Phases: 2,
		Takes:  dep.ParseAll([]string{"eblif", "sdc?"}),
		Produces: []Product{
			{Name: dep.Parse("net"), Doc: "packed netlist"},
			{Name: dep.Parse("report?")},
			{Name: dep.Parse("log!")},
		},
		Values: dep.ParseAll([]string{"device", "options?"}),
	}, Extension{})
	if err != nil {
		t.Fatalf("base: %v", err)
	}
	return &stubModule{Base: base, write: write}
}

func (m *stubModule) MapIO(ctx *Context) (map[string]string, error) {
	if m.mapping != nil {
		return m.mapping, nil
	}
	dir := filepath.Dir(ctx.TakeString("eblif"))
	return map[string]string{
		"net":    filepath.Join(dir, ctx.ValueString("device")+".net"),
		"log":    filepath.Join(dir, "stub.log"),
		"report": filepath.Join(dir, "report.txt"),
	}, nil
}

func (m *stubModule) Execute(ctx *Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if !yield("Packing...", nil) {
			return
		}
		if m.fail != nil {
			yield("", m.fail)
			return
		}
		if !yield("Writing outputs...", nil) {
			return
		}
		if !m.write {
			return
		}
		for _, name := range []string{"net", "log"} {
			if err := os.WriteFile(ctx.Produce(name), []byte(name), 0o644); err != nil {
				yield("", err)
				return
			}
		}
	}
}

func testEnv(t *testing.T, dir string) *resolve.Env {
	t.Helper()
	env := resolve.New()
	err := env.AddValues(value.MappingOf(
		"build_dir", dir,
		"device", "xc7a50t",
		"eblif", "${build_dir}/top.eblif",
	))
	if err != nil {
		t.Fatalf("env: %v", err)
	}
	return env
}

func TestBuildContextBindsTakesValuesAndPaths(t *testing.T) {
	dir := t.TempDir()
	mod := newStubModule(t, false)
	ctx, err := BuildContext(mod, testEnv(t, dir), BuildOptions{
		Explicit: map[string]string{"report": "${build_dir}/custom.txt"},
	})
	if err != nil {
		t.Fatalf("build context: %v", err)
	}
	if got := ctx.TakeString("eblif"); got != filepath.Join(dir, "top.eblif") {
		t.Fatalf("unexpected eblif %q", got)
	}
	if ctx.HasTake("sdc") {
		t.Fatalf("optional take should be absent")
	}
	if _, ok := ctx.Value("options"); ok {
		t.Fatalf("optional value should be absent")
	}
	if got := ctx.Produce("net"); got != filepath.Join(dir, "xc7a50t.net") {
		t.Fatalf("unexpected net path %q", got)
	}
	if got := ctx.Produce("report"); got != filepath.Join(dir, "custom.txt") || !ctx.IsOutputExplicit("report") {
		t.Fatalf("explicit output not honoured: %q", got)
	}
	if ctx.IsOutputExplicit("net") {
		t.Fatalf("mapped output must not be explicit")
	}
}

func TestBuildContextMissingRequiredTake(t *testing.T) {
	env := resolve.New()
	if err := env.AddValues(value.MappingOf("device", "xc7")); err != nil {
		t.Fatalf("env: %v", err)
	}
	_, err := BuildContext(newStubModule(t, false), env, BuildOptions{})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestBuildContextRequiresPathsForDemandedProducts(t *testing.T) {
	mod := newStubModule(t, false)
	mod.mapping = map[string]string{"net": "x.net"}
	_, err := BuildContext(mod, testEnv(t, t.TempDir()), BuildOptions{})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError for unmapped demanded product, got %v", err)
	}
}

func TestBuildContextRejectsUndeclaredExplicitOutput(t *testing.T) {
	_, err := BuildContext(newStubModule(t, false), testEnv(t, t.TempDir()), BuildOptions{
		Explicit: map[string]string{"bitstream": "out.bit"},
	})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestRunReportsPhasesAndVerifiesProducts(t *testing.T) {
	dir := t.TempDir()
	mod := newStubModule(t, true)
	ctx, err := BuildContext(mod, testEnv(t, dir), BuildOptions{})
	if err != nil {
		t.Fatalf("build context: %v", err)
	}
	var seen []Progress
	if err := Run(mod, ctx, func(p Progress) { seen = append(seen, p) }); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(seen) != 2 || seen[0].Phase != 1 || seen[1].Phase != 2 || seen[1].Phases != 2 {
		t.Fatalf("unexpected progress %+v", seen)
	}
	if seen[0].Message != "Packing..." {
		t.Fatalf("unexpected first message %q", seen[0].Message)
	}
}

func TestRunFailsWhenRequiredProductMissing(t *testing.T) {
	mod := newStubModule(t, false)
	ctx, err := BuildContext(mod, testEnv(t, t.TempDir()), BuildOptions{})
	if err != nil {
		t.Fatalf("build context: %v", err)
	}
	err = Run(mod, ctx, nil)
	var missing *MissingProductError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingProductError, got %v", err)
	}
	if missing.Product != "net" {
		t.Fatalf("unexpected missing product %s", missing.Product)
	}
}

func TestRunPropagatesExecutionError(t *testing.T) {
	mod := newStubModule(t, true)
	mod.fail = errors.New("tool crashed")
	ctx, err := BuildContext(mod, testEnv(t, t.TempDir()), BuildOptions{})
	if err != nil {
		t.Fatalf("build context: %v", err)
	}
	phases := 0
	err = Run(mod, ctx, func(Progress) { phases++ })
	if !errors.Is(err, mod.fail) {
		t.Fatalf("expected wrapped execution error, got %v", err)
	}
	if phases != 1 {
		t.Fatalf("expected one phase before failure, got %d", phases)
	}
}

func TestExecuteSuspendsBetweenPhases(t *testing.T) {
	dir := t.TempDir()
	mod := newStubModule(t, true)
	ctx, err := BuildContext(mod, testEnv(t, dir), BuildOptions{})
	if err != nil {
		t.Fatalf("build context: %v", err)
	}
	next, stop := iter.Pull2(mod.Execute(ctx))
	defer stop()
	if msg, _, ok := next(); !ok || msg != "Packing..." {
		t.Fatalf("unexpected first phase %q", msg)
	}
	if _, err := os.Stat(ctx.Produce("net")); !os.IsNotExist(err) {
		t.Fatalf("outputs must not exist before the last phase resumes")
	}
	next()
	if _, _, ok := next(); ok {
		t.Fatalf("expected sequence to be exhausted")
	}
	if _, err := os.Stat(ctx.Produce("net")); err != nil {
		t.Fatalf("outputs should exist after exhaustion: %v", err)
	}
}

func TestDescriptorValidate(t *testing.T) {
	cases := map[string]Descriptor{
		"no name":   {Phases: 1},
		"no phases": {Name: "x"},
		"dup take":  {Name: "x", Phases: 1, Takes: dep.ParseAll([]string{"a", "a?"})},
		"dup value": {Name: "x", Phases: 1, Values: dep.ParseAll([]string{"v", "v"})},
	}
	for label, desc := range cases {
		var cfgErr *ConfigError
		if err := desc.Validate(); !errors.As(err, &cfgErr) {
			t.Fatalf("%s: expected ConfigError, got %v", label, err)
		}
	}
}

func TestDescriptorExtend(t *testing.T) {
	desc := Descriptor{Name: "x", Phases: 1, Produces: []Product{{Name: dep.Parse("json")}}}
	ext, err := ExtensionFromParams(Params{
		"takes":     []any{"tcl_in"},
		"produces":  []string{"sdc!"},
		"prod_meta": map[string]any{"sdc": "constraints", "json": "netlist"},
	})
	if err != nil {
		t.Fatalf("extension: %v", err)
	}
	out, err := desc.Extend(ext)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if len(out.Takes) != 1 || out.Takes[0].Base != "tcl_in" {
		t.Fatalf("unexpected takes %+v", out.Takes)
	}
	sdc, ok := out.Product("sdc")
	if !ok || sdc.Name.Qualifier != dep.Demanded || sdc.Doc != "constraints" {
		t.Fatalf("unexpected sdc product %+v", sdc)
	}
	if json, _ := out.Product("json"); json.Doc != "netlist" {
		t.Fatalf("doc for built-in product not applied: %+v", json)
	}
	if len(desc.Produces) != 1 {
		t.Fatalf("extend must not mutate the receiver")
	}
	if docs := DescribeProducts(out); len(docs) != 2 || docs["sdc"] != "constraints" {
		t.Fatalf("unexpected product docs %v", docs)
	}

	if _, err := desc.Extend(Extension{ProdMeta: map[string]string{"nope": "x"}}); err == nil {
		t.Fatalf("expected error for documentation of undeclared product")
	}
}

func TestExtensionFromParamsValidates(t *testing.T) {
	if _, err := ExtensionFromParams(Params{"takes": []string{""}}); err == nil {
		t.Fatalf("expected empty take name to be rejected")
	}
	ext, err := ExtensionFromParams(Params{"unrelated": 1})
	if err != nil {
		t.Fatalf("unknown keys should be ignored: %v", err)
	}
	if !ext.IsZero() {
		t.Fatalf("expected empty extension, got %+v", ext)
	}
}

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister("stub", func(Params) (Module, error) { return newStubModule(t, false), nil })
	if err := reg.Register("stub", func(Params) (Module, error) { return nil, nil }); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	mod, err := reg.Resolve("stub", nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if mod.Descriptor().Name != "stub" {
		t.Fatalf("unexpected module %+v", mod.Descriptor())
	}
	_, err = reg.Resolve("vpr", nil)
	if !errors.Is(err, ErrUnknownModule) {
		t.Fatalf("expected ErrUnknownModule, got %v", err)
	}
	if names := reg.Names(); len(names) != 1 || names[0] != "stub" {
		t.Fatalf("unexpected names %v", names)
	}
}
