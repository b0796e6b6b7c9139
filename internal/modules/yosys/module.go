package yosys

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/shlex"

	"github.com/kingrea/fpgaflow/internal/dep"
	"github.com/kingrea/fpgaflow/internal/module"
	"github.com/kingrea/fpgaflow/internal/proc"
)

const (
	moduleID = "yosys"

	// ToolVPR and ToolNextpnr name the place-and-route flows synthesis can
	// target.
	ToolVPR     = "vpr"
	ToolNextpnr = "nextpnr"

	// FamilyEnv names the environment variable selecting the device family.
	FamilyEnv = "FPGA_FAM"

	defaultBinary = "yosys"
)

// Config holds the per-instance params understood by the module.
type Config struct {
	PnrTool string `mapstructure:"pnrtool" validate:"omitempty,oneof=vpr nextpnr"`
	Binary  string `mapstructure:"binary"`
}

// Module runs yosys synthesis through the TCL wrapper of a PnR flow.
type Module struct {
	module.Base
	pnrtool string
	binary  string
	extra   []dep.Name
}

// Register installs the yosys module factory.
func Register(reg *module.Registry) {
	if reg == nil {
		return
	}
	reg.MustRegister(moduleID, func(params module.Params) (module.Module, error) {
		mod, err := New(params)
		if err != nil {
			return nil, err
		}
		return mod, nil
	})
}

// New constructs the module from flow params.
func New(params module.Params) (*Module, error) {
	var cfg Config
	if err := module.DecodeParams(params, &cfg); err != nil {
		return nil, &module.ConfigError{Module: moduleID, Reason: "params", Err: err}
	}
	ext, err := module.ExtensionFromParams(params)
	if err != nil {
		return nil, &module.ConfigError{Module: moduleID, Reason: "params", Err: err}
	}
	pnrtool := cfg.PnrTool
	if pnrtool == "" {
		pnrtool = toolForFamily(os.Getenv(FamilyEnv))
	}
	binary := cfg.Binary
	if binary == "" {
		binary = defaultBinary
	}

	base, err := module.NewExtendedBase(descriptor(pnrtool), ext)
	if err != nil {
		return nil, err
	}
	return &Module{
		Base:    base,
		pnrtool: pnrtool,
		binary:  binary,
		extra:   dep.ParseAll(ext.Produces),
	}, nil
}

func toolForFamily(family string) string {
	if strings.EqualFold(strings.TrimSpace(family), "ice40") {
		return ToolNextpnr
	}
	return ToolVPR
}

func descriptor(pnrtool string) module.Descriptor {
	produces := []module.Product{
		{Name: dep.Parse("json"), Doc: "JSON file containing a design generated by YOSYS"},
		{Name: dep.Parse("synth_log!"), Doc: "YOSYS synthesis log"},
	}
	if pnrtool == ToolVPR {
		produces = append(produces,
			module.Product{Name: dep.Parse("eblif"), Doc: "Extended BLIF hierarchical sequential designs file generated by YOSYS"},
			module.Product{Name: dep.Parse("fasm_extra"), Doc: "Extra FASM generated during synthesis. Empty when the design needs none."},
			module.Product{Name: dep.Parse("synth_json"), Doc: "JSON netlist with I/O buffers"},
		)
	}
	return module.Descriptor{
		Name:     moduleID,
		Phases:   3,
		Takes:    dep.ParseAll([]string{"sources", "build_dir?"}),
		Produces: produces,
		Values: dep.ParseAll([]string{
			"top",
			"device",
			"tcl_scripts?",
			"extra_args?",
			"yosys_tcl_env?",
			"read_verilog_args?",
		}),
	}
}

// PnrTool reports the place-and-route flow the module synthesizes for.
func (m *Module) PnrTool() string {
	return m.pnrtool
}

func topPath(ctx *module.Context) string {
	top := ctx.ValueString("top")
	if dir := ctx.TakeString("build_dir"); dir != "" {
		return filepath.Join(dir, top)
	}
	return top
}

// MapIO derives the default output paths from build_dir/top.
func (m *Module) MapIO(ctx *module.Context) (map[string]string, error) {
	top := topPath(ctx)
	mapping := map[string]string{
		"eblif":      top + ".eblif",
		"fasm_extra": top + "_fasm_extra.fasm",
		"json":       top + ".json",
		"synth_json": top + "_io.json",
		"synth_log":  top + "_synth.log",
	}
	device := ctx.ValueString("device")
	for _, extra := range m.extra {
		switch extra.Qualifier {
		case dep.Optional:
			return nil, &module.ConfigError{
				Module: moduleID,
				Reason: fmt.Sprintf("extra products cannot be optional (%s)", extra),
			}
		case dep.Required:
			mapping[extra.Base] = filepath.Join(filepath.Dir(top), device+"_"+extra.Base+"."+extra.Base)
		}
	}
	return mapping, nil
}

// Execute collects the sources, runs yosys and completes the VPR outputs.
func (m *Module) Execute(ctx *module.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if !yield("Collecting sources...", nil) {
			return
		}
		sources, err := expandSources(ctx.TakeStrings("sources"))
		if err != nil {
			yield("", err)
			return
		}
		verilog, rtlil := splitSources(sources)
		if len(verilog)+len(rtlil) == 0 {
			yield("", fmt.Errorf("yosys: no verilog or rtlil sources in %v", sources))
			return
		}

		msg := "Synthesizing sources..."
		if ctx.Gate.Enabled(2) {
			msg = fmt.Sprintf("Synthesizing sources: %s...", strings.Join(sources, " "))
		}
		if !yield(msg, nil) {
			return
		}
		cmd, err := m.command(ctx, verilog, rtlil)
		if err != nil {
			yield("", err)
			return
		}
		if _, err := ctx.Exec(cmd); err != nil {
			yield("", err)
			return
		}

		if !yield("Finalizing outputs...", nil) {
			return
		}
		if m.pnrtool == ToolVPR {
			if err := ensureFile(ctx.Produce("fasm_extra")); err != nil {
				yield("", err)
				return
			}
		}
	}
}

func (m *Module) command(ctx *module.Context, verilog, rtlil []string) (proc.Command, error) {
	argv := []string{m.binary}
	if log := ctx.Produce("synth_log"); log != "" {
		argv = append(argv, "-l", log)
	}
	extra, err := extraArgs(ctx)
	if err != nil {
		return proc.Command{}, err
	}
	argv = append(argv, extra...)

	readArgs := strings.Join(ctx.ValueStrings("read_verilog_args"), " ")
	var script []string
	for _, file := range verilog {
		script = append(script, fmt.Sprintf("read_verilog %s %s; ", readArgs, file))
	}
	for _, file := range rtlil {
		script = append(script, fmt.Sprintf("read_rtlil %s; ", file))
	}
	wrapper := filepath.Join(ctx.ShareDir, "tcl", m.pnrtool+".f4pga.tcl")
	argv = append(argv, "-p", strings.Join(script, " ")+" tcl "+wrapper)

	return proc.Command{Argv: argv, Env: tclEnv(ctx)}, nil
}

func extraArgs(ctx *module.Context) ([]string, error) {
	v, ok := ctx.Value("extra_args")
	if !ok {
		return nil, nil
	}
	if s, isScalar := v.Str(); isScalar {
		args, err := shlex.Split(s)
		if err != nil {
			return nil, fmt.Errorf("yosys: split extra_args: %w", err)
		}
		return args, nil
	}
	args, ok := v.StringSlice()
	if !ok {
		return nil, &module.ConfigError{Module: moduleID, Reason: "extra_args must be a string or a list"}
	}
	return args, nil
}

func tclEnv(ctx *module.Context) map[string]string {
	env := map[string]string{}
	if v, ok := ctx.Value("yosys_tcl_env"); ok {
		if fields, isMap := v.Mapping(); isMap {
			for _, key := range fields.Keys() {
				item, _ := fields.Get(key)
				env[key] = item.String()
			}
		}
	}
	if dir := ctx.ValueString("tcl_scripts"); dir != "" {
		if _, set := env["TCL_SCRIPTS"]; !set {
			env["TCL_SCRIPTS"] = dir
		}
	}
	return env
}

// expandSources expands glob patterns in order. Plain paths pass through
// unchanged so that yosys reports missing files itself.
func expandSources(patterns []string) ([]string, error) {
	var out []string
	for _, pattern := range patterns {
		if !strings.ContainsAny(pattern, "*?[{") {
			out = append(out, pattern)
			continue
		}
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("yosys: expand %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("yosys: pattern %s matched no sources", pattern)
		}
		sort.Strings(matches)
		out = append(out, matches...)
	}
	return out, nil
}

func splitSources(sources []string) (verilog, rtlil []string) {
	for _, src := range sources {
		switch strings.ToLower(filepath.Ext(src)) {
		case ".v", ".sv":
			verilog = append(verilog, src)
		case ".il", ".rtlil":
			rtlil = append(rtlil, src)
		}
	}
	return verilog, rtlil
}

func ensureFile(path string) error {
	if path == "" {
		return nil
	}
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("yosys: ensure %s: %w", path, err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return fmt.Errorf("yosys: write %s: %w", path, err)
	}
	return nil
}
