// Package script provides a generic module that runs external commands with
// an I/O contract declared entirely in configuration. Plugin definitions
// build on it to add toolchain steps without writing Go.
package script

import (
	"fmt"
	"iter"
	"sort"
	"strings"

	"dario.cat/mergo"
	"github.com/google/shlex"

	"github.com/kingrea/fpgaflow/internal/dep"
	"github.com/kingrea/fpgaflow/internal/module"
	"github.com/kingrea/fpgaflow/internal/proc"
	"github.com/kingrea/fpgaflow/internal/resolve"
	"github.com/kingrea/fpgaflow/internal/value"
)

const moduleID = "script"

// Step is one phase: a progress message and the command run after it.
// Options names a bound mapping appended to the command as --key value flags.
type Step struct {
	Message string   `mapstructure:"message"`
	Command []string `mapstructure:"command" validate:"required,min=1,dive,required"`
	Options string   `mapstructure:"options"`
}

// Config describes a script module instance. Every string in Command, Env,
// Dir and Outputs is a template resolved against the instance's takes,
// values and products.
type Config struct {
	Name       string            `mapstructure:"name"`
	Command    []string          `mapstructure:"command"`
	Steps      []Step            `mapstructure:"steps" validate:"dive"`
	Env        map[string]string `mapstructure:"env"`
	Dir        string            `mapstructure:"dir"`
	EchoStdout bool              `mapstructure:"echo_stdout"`
	Values     []string          `mapstructure:"values" validate:"dive,required"`
	// Outputs maps products to default paths.
	Outputs map[string]string `mapstructure:"outputs"`
	// NoisyWarnings points the packer's warning log at a per-device file.
	NoisyWarnings bool `mapstructure:"noisy_warnings"`
}

// Defaults returns the values applied to unset config fields.
func Defaults() Config {
	return Config{Name: moduleID, Env: map[string]string{}}
}

// Module runs the configured steps in order.
type Module struct {
	module.Base
	cfg Config
}

// Register installs the script module factory.
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

// New decodes params into a Config plus Extension and builds the module.
func New(params module.Params) (*Module, error) {
	var cfg Config
	if err := module.DecodeParams(params, &cfg); err != nil {
		return nil, &module.ConfigError{Module: moduleID, Reason: "params", Err: err}
	}
	ext, err := module.ExtensionFromParams(params)
	if err != nil {
		return nil, &module.ConfigError{Module: moduleID, Reason: "params", Err: err}
	}
	return NewFromConfig(cfg, ext)
}

// NewFromConfig builds the module from an already decoded config.
func NewFromConfig(cfg Config, ext module.Extension) (*Module, error) {
	if err := mergo.Merge(&cfg, Defaults()); err != nil {
		return nil, fmt.Errorf("script: apply defaults: %w", err)
	}
	steps, err := normalizeSteps(cfg)
	if err != nil {
		return nil, &module.ConfigError{Module: cfg.Name, Reason: "command", Err: err}
	}
	cfg.Steps = steps
	cfg.Command = nil

	base, err := module.NewExtendedBase(module.Descriptor{
		Name:   cfg.Name,
		Phases: len(steps),
		Values: dep.ParseAll(cfg.Values),
	}, ext)
	if err != nil {
		return nil, err
	}
	desc := base.Descriptor()
	for _, name := range sortedKeys(cfg.Outputs) {
		if _, ok := desc.Product(name); !ok {
			return nil, &module.ConfigError{Module: cfg.Name, Reason: fmt.Sprintf("output %s is not a declared product", name)}
		}
	}
	return &Module{Base: base, cfg: cfg}, nil
}

// normalizeSteps folds the single-command shorthand into Steps and shell
// splits commands given as one string.
func normalizeSteps(cfg Config) ([]Step, error) {
	steps := append([]Step(nil), cfg.Steps...)
	if len(cfg.Command) > 0 {
		steps = append([]Step{{Command: cfg.Command}}, steps...)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("script: no command configured")
	}
	for i, step := range steps {
		if len(step.Command) == 1 && strings.ContainsAny(step.Command[0], " \t") {
			argv, err := shlex.Split(step.Command[0])
			if err != nil {
				return nil, fmt.Errorf("script: split command %q: %w", step.Command[0], err)
			}
			step.Command = argv
		}
		if len(step.Command) == 0 || step.Command[0] == "" {
			return nil, fmt.Errorf("script: step %d has an empty command", i+1)
		}
		if step.Message == "" {
			step.Message = fmt.Sprintf("Running %s...", step.Command[0])
		}
		steps[i] = step
	}
	return steps, nil
}

// Config returns the normalized configuration.
func (m *Module) Config() Config {
	return m.cfg
}

// MapIO resolves the configured default output paths.
func (m *Module) MapIO(ctx *module.Context) (map[string]string, error) {
	env := localEnv(ctx, false)
	mapping := make(map[string]string, len(m.cfg.Outputs))
	for _, name := range sortedKeys(m.cfg.Outputs) {
		if ctx.IsOutputExplicit(name) {
			continue
		}
		resolved, err := env.ResolveString(m.cfg.Outputs[name], true)
		if err != nil {
			return nil, &module.ConfigError{Module: ctx.Module, Reason: "output " + name, Err: err}
		}
		mapping[name] = resolved.String()
	}
	return mapping, nil
}

// Execute runs each step after reporting its message.
func (m *Module) Execute(ctx *module.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		env := localEnv(ctx, true)
		for _, step := range m.cfg.Steps {
			if !yield(step.Message, nil) {
				return
			}
			cmd, err := m.command(env, step)
			if err != nil {
				yield("", err)
				return
			}
			ctx.Print(2, "$", strings.Join(cmd.Argv, " "))
			if _, err := ctx.Exec(cmd); err != nil {
				yield("", err)
				return
			}
		}
	}
}

func (m *Module) command(env *resolve.Env, step Step) (proc.Command, error) {
	cmd := proc.Command{EchoStdoutOnFailure: m.cfg.EchoStdout}
	for _, arg := range step.Command {
		resolved, err := env.ResolveString(arg, true)
		if err != nil {
			return proc.Command{}, fmt.Errorf("script: argument %q: %w", arg, err)
		}
		parts, ok := resolved.StringSlice()
		if !ok {
			parts = []string{resolved.String()}
		}
		cmd.Argv = append(cmd.Argv, parts...)
	}
	if step.Options != "" {
		flags, err := optionFlags(env, step.Options)
		if err != nil {
			return proc.Command{}, err
		}
		cmd.Argv = append(cmd.Argv, flags...)
	}
	cmd.Env = map[string]string{}
	if m.cfg.NoisyWarnings {
		device, ok := env.Get("device")
		if !ok {
			return proc.Command{}, fmt.Errorf("script: noisy_warnings needs a device value")
		}
		for key, val := range proc.NoisyWarnings(device.String()) {
			cmd.Env[key] = val
		}
	}
	if len(m.cfg.Env) > 0 {
		for _, key := range sortedKeys(m.cfg.Env) {
			resolved, err := env.ResolveString(m.cfg.Env[key], true)
			if err != nil {
				return proc.Command{}, fmt.Errorf("script: env %s: %w", key, err)
			}
			cmd.Env[key] = resolved.String()
		}
	}
	if m.cfg.Dir != "" {
		dir, err := env.ResolveString(m.cfg.Dir, true)
		if err != nil {
			return proc.Command{}, fmt.Errorf("script: dir: %w", err)
		}
		cmd.Dir = dir.String()
	}
	if len(cmd.Env) == 0 {
		cmd.Env = nil
	}
	return cmd, nil
}

// optionFlags renders the mapping bound to name as command-line flags. An
// unbound name contributes nothing.
func optionFlags(env *resolve.Env, name string) ([]string, error) {
	bound, ok := env.Get(name)
	if !ok {
		return nil, nil
	}
	resolved, err := env.Resolve(bound, true)
	if err != nil {
		return nil, fmt.Errorf("script: options %s: %w", name, err)
	}
	opts, ok := resolved.Mapping()
	if !ok {
		return nil, fmt.Errorf("script: options %s must be a mapping, got %s", name, resolved.Kind())
	}
	return proc.OptionArgs(opts), nil
}

// localEnv binds shareDir, values, takes and (optionally) products so
// templates can refer to them by name. Later layers shadow earlier ones.
func localEnv(ctx *module.Context, withProducts bool) *resolve.Env {
	bindings := value.NewMapping()
	if ctx.ShareDir != "" {
		bindings.Set("shareDir", value.Scalar(ctx.ShareDir))
	}
	for _, name := range sortedKeys(ctx.Values) {
		bindings.Set(name, ctx.Values[name])
	}
	for _, name := range sortedKeys(ctx.Takes) {
		bindings.Set(name, ctx.Takes[name])
	}
	if withProducts {
		for _, name := range sortedKeys(ctx.Produces) {
			bindings.Set(name, value.Scalar(ctx.Produces[name]))
		}
	}
	return resolve.NewWith(bindings)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
