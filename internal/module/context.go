package module

import (
	"fmt"

	"github.com/kingrea/fpgaflow/internal/proc"
	"github.com/kingrea/fpgaflow/internal/resolve"
	"github.com/kingrea/fpgaflow/internal/value"
	"github.com/kingrea/fpgaflow/internal/verbosity"
)

// Context carries the concrete bindings of one module execution.
type Context struct {
	Module string
	// Takes holds every resolved input; absent optional takes are missing.
	Takes map[string]value.Value
	// Produces maps product names to output paths.
	Produces map[string]string
	// Values holds every resolved value-spec; absent optional values are missing.
	Values   map[string]value.Value
	ShareDir string
	Gate     *verbosity.Gate
	Runner   proc.Runner

	explicit map[string]bool
}

// NewContext returns an empty context for the named module.
func NewContext(name string) *Context {
	return &Context{
		Module:   name,
		Takes:    map[string]value.Value{},
		Produces: map[string]string{},
		Values:   map[string]value.Value{},
		explicit: map[string]bool{},
	}
}

// HasTake reports whether an input is bound.
func (ctx *Context) HasTake(name string) bool {
	_, ok := ctx.Takes[name]
	return ok
}

// Take returns the binding for an input.
func (ctx *Context) Take(name string) (value.Value, bool) {
	v, ok := ctx.Takes[name]
	return v, ok
}

// TakeString returns an input rendered as a string, or "" when absent.
func (ctx *Context) TakeString(name string) string {
	v, ok := ctx.Takes[name]
	if !ok {
		return ""
	}
	return v.String()
}

// TakeStrings returns an input flattened to a list of strings.
func (ctx *Context) TakeStrings(name string) []string {
	v, ok := ctx.Takes[name]
	if !ok {
		return nil
	}
	out, _ := v.StringSlice()
	return out
}

// Value returns a resolved value-spec.
func (ctx *Context) Value(name string) (value.Value, bool) {
	v, ok := ctx.Values[name]
	return v, ok
}

// ValueString returns a value rendered as a string, or "" when absent.
func (ctx *Context) ValueString(name string) string {
	v, ok := ctx.Values[name]
	if !ok {
		return ""
	}
	return v.String()
}

// ValueStrings returns a value flattened to a list of strings.
func (ctx *Context) ValueStrings(name string) []string {
	v, ok := ctx.Values[name]
	if !ok {
		return nil
	}
	out, _ := v.StringSlice()
	return out
}

// Produce returns the output path bound to a product, or "".
func (ctx *Context) Produce(name string) string {
	return ctx.Produces[name]
}

// SetOutput binds a product path supplied by the user rather than derived
// by the module.
func (ctx *Context) SetOutput(name, path string) {
	ctx.Produces[name] = path
	ctx.explicit[name] = true
}

// IsOutputExplicit reports whether the product path came from the user.
func (ctx *Context) IsOutputExplicit(name string) bool {
	return ctx.explicit[name]
}

// Print forwards to the verbosity gate.
func (ctx *Context) Print(level int, args ...any) {
	ctx.Gate.Print(level, args...)
}

// Exec runs an external command through the context's runner. Without a
// runner the command is executed directly with failures reported to stderr.
func (ctx *Context) Exec(cmd proc.Command) ([]byte, error) {
	runner := ctx.Runner
	if runner == nil {
		runner = proc.NewExecRunner(nil)
	}
	return runner.Run(cmd)
}

// BuildOptions supplies the parts of a context that do not come from the
// resolution environment.
type BuildOptions struct {
	// Explicit maps product names to user-requested output paths. Paths are
	// templates resolved against the environment.
	Explicit map[string]string
	ShareDir string
	Gate     *verbosity.Gate
	Runner   proc.Runner
}

// BuildContext binds every take and value of mod from env and derives the
// output paths: explicit paths first, then the module's own mapping. A
// missing required input, value or output path is a *ConfigError.
func BuildContext(mod Module, env *resolve.Env, opts BuildOptions) (*Context, error) {
	desc := mod.Descriptor()
	ctx := NewContext(desc.Name)
	ctx.ShareDir = opts.ShareDir
	ctx.Gate = opts.Gate
	ctx.Runner = opts.Runner

	for _, take := range desc.Takes {
		v, ok, err := lookup(env, take.Base)
		if err != nil {
			return nil, &ConfigError{Module: desc.Name, Reason: "take " + take.Base, Err: err}
		}
		if !ok {
			if take.Optional() {
				continue
			}
			return nil, &ConfigError{Module: desc.Name, Reason: fmt.Sprintf("required take %s is not bound", take.Base)}
		}
		ctx.Takes[take.Base] = v
	}
	for _, spec := range desc.Values {
		v, ok, err := lookup(env, spec.Base)
		if err != nil {
			return nil, &ConfigError{Module: desc.Name, Reason: "value " + spec.Base, Err: err}
		}
		if !ok {
			if spec.Optional() {
				continue
			}
			return nil, &ConfigError{Module: desc.Name, Reason: fmt.Sprintf("required value %s is not set", spec.Base)}
		}
		ctx.Values[spec.Base] = v
	}

	for name, path := range opts.Explicit {
		if _, declared := desc.Product(name); !declared {
			return nil, &ConfigError{Module: desc.Name, Reason: fmt.Sprintf("output %s is not a declared product", name)}
		}
		resolved, err := env.ResolveString(path, true)
		if err != nil {
			return nil, &ConfigError{Module: desc.Name, Reason: "output " + name, Err: err}
		}
		ctx.SetOutput(name, resolved.String())
	}
	if mapper, ok := mod.(PathMapper); ok {
		mapped, err := mapper.MapIO(ctx)
		if err != nil {
			return nil, err
		}
		for name, path := range mapped {
			if _, declared := desc.Product(name); !declared {
				continue
			}
			if _, set := ctx.Produces[name]; set {
				continue
			}
			ctx.Produces[name] = path
		}
	}
	for _, p := range desc.Produces {
		if _, ok := ctx.Produces[p.Name.Base]; ok || !p.Name.Qualifier.MustExist() {
			continue
		}
		return nil, &ConfigError{Module: desc.Name, Reason: fmt.Sprintf("no output path for %s product %s", p.Name.Qualifier, p.Name.Base)}
	}
	return ctx, nil
}

func lookup(env *resolve.Env, name string) (value.Value, bool, error) {
	v, ok := env.Get(name)
	if !ok {
		return value.Value{}, false, nil
	}
	resolved, err := env.Resolve(v, true)
	if err != nil {
		return value.Value{}, false, err
	}
	return resolved, true, nil
}
