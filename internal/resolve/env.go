// Package resolve holds the resolution environment: a store of named values
// that `${name}` templates in flow configuration are expanded against.
//
// Placeholders whose name is not bound stay in place until a final
// resolution, so values may be merged in several passes (global values, then
// target overrides, then stage values) and resolved when the last binding is
// known.
package resolve

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kingrea/fpgaflow/internal/value"
)

var placeholderPattern = regexp.MustCompile(`\$\{([^${}]*)\}`)

// softMarker may trail a placeholder name; it is ignored for lookup.
const softMarker = "?"

// Env is the resolution environment. It is populated before modules run and
// treated as read-only afterwards, so it carries no locking.
type Env struct {
	values *value.Mapping
}

// New returns an empty environment.
func New() *Env {
	return &Env{values: value.NewMapping()}
}

// NewWith seeds an environment with a copy of values. The values are stored
// as given, without resolution.
func NewWith(values *value.Mapping) *Env {
	return &Env{values: values.Clone()}
}

// Clone returns an independent copy, used to layer stage values over a
// shared target environment.
func (e *Env) Clone() *Env {
	return &Env{values: e.values.Clone()}
}

// Get returns the binding for name.
func (e *Env) Get(name string) (value.Value, bool) {
	return e.values.Get(name)
}

// Names returns bound names in binding order.
func (e *Env) Names() []string {
	return e.values.Keys()
}

// Values returns a copy of every binding.
func (e *Env) Values() *value.Mapping {
	return e.values.Clone()
}

// AddValues merges values into the environment in order. Each incoming value
// is resolved against the bindings present at that moment, including keys
// merged earlier in the same call. An incoming mapping merged onto an
// existing mapping is merged recursively; anything else replaces the
// existing binding.
func (e *Env) AddValues(values *value.Mapping) error {
	for _, key := range values.Keys() {
		incoming, _ := values.Get(key)
		resolved, err := e.Resolve(incoming, false)
		if err != nil {
			return fmt.Errorf("resolve: value %s: %w", key, err)
		}
		if current, ok := e.values.Get(key); ok {
			dst, dstIsMap := current.Mapping()
			src, srcIsMap := resolved.Mapping()
			if dstIsMap && srcIsMap {
				mergeMappings(dst, src)
				continue
			}
		}
		e.values.Set(key, resolved)
	}
	return nil
}

func mergeMappings(dst, src *value.Mapping) {
	for _, key := range src.Keys() {
		incoming, _ := src.Get(key)
		if current, ok := dst.Get(key); ok {
			dstChild, dstIsMap := current.Mapping()
			srcChild, srcIsMap := incoming.Mapping()
			if dstIsMap && srcIsMap {
				mergeMappings(dstChild, srcChild)
				continue
			}
		}
		dst.Set(key, incoming.Clone())
	}
}

type mode int

const (
	modeDeferred mode = iota
	modeFinal
	modeStrict
)

// Resolve expands placeholders in v. With final unset, unbound placeholders
// are left intact; with final set they become empty strings.
func (e *Env) Resolve(v value.Value, final bool) (value.Value, error) {
	m := modeDeferred
	if final {
		m = modeFinal
	}
	return e.resolve(v, m, nil)
}

// ResolveString is Resolve for a single template string.
func (e *Env) ResolveString(s string, final bool) (value.Value, error) {
	return e.Resolve(value.Scalar(s), final)
}

// ResolveStrict performs a final resolution that reports every unbound name
// as an *UnresolvedError instead of substituting empty strings.
func (e *Env) ResolveStrict(v value.Value) (value.Value, error) {
	var missing []string
	out, err := e.resolve(v, modeStrict, &missing)
	if err != nil {
		return value.Value{}, err
	}
	if len(missing) > 0 {
		return value.Value{}, newUnresolvedError(missing)
	}
	return out, nil
}

func (e *Env) resolve(v value.Value, m mode, missing *[]string) (value.Value, error) {
	switch v.Kind() {
	case value.KindSequence:
		items := v.Items()
		out := make([]value.Value, len(items))
		for i, item := range items {
			resolved, err := e.resolve(item, m, missing)
			if err != nil {
				return value.Value{}, err
			}
			out[i] = resolved
		}
		return value.Sequence(out...), nil
	case value.KindMapping:
		fields, _ := v.Mapping()
		out := value.NewMapping()
		for _, key := range fields.Keys() {
			item, _ := fields.Get(key)
			resolved, err := e.resolve(item, m, missing)
			if err != nil {
				return value.Value{}, err
			}
			out.Set(key, resolved)
		}
		return value.Map(out), nil
	default:
		s, _ := v.Str()
		return e.resolveString(s, m, missing)
	}
}

// resolveString walks matches right to left so that a splice never shifts
// the offsets of matches still to be processed. After a sequence-valued
// placeholder has expanded the string, scalar substitutions apply to every
// element; a second sequence-valued placeholder is rejected.
func (e *Env) resolveString(s string, m mode, missing *[]string) (value.Value, error) {
	matches := placeholderPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return value.Scalar(s), nil
	}
	parts := []string{s}
	expanded, didExpand := "", false
	for i := len(matches) - 1; i >= 0; i-- {
		loc := matches[i]
		start, end := loc[0], loc[1]
		name := strings.TrimSuffix(s[loc[2]:loc[3]], softMarker)

		bound, ok := e.values.Get(name)
		if ok && bound.IsSequence() && bound.Len() == 0 {
			ok = false
		}
		if ok && bound.IsMapping() {
			continue
		}
		if !ok {
			switch m {
			case modeDeferred:
				continue
			case modeStrict:
				*missing = append(*missing, name)
				continue
			}
			bound = value.Scalar("")
		}

		if text, isScalar := bound.Str(); isScalar {
			for j, p := range parts {
				parts[j] = p[:start] + text + p[end:]
			}
			continue
		}
		items, convertible := bound.StringSlice()
		if !convertible {
			continue
		}
		if didExpand {
			return value.Value{}, &ExpansionError{Input: s, First: expanded, Second: name}
		}
		p := parts[0]
		parts = make([]string, len(items))
		for j, item := range items {
			parts[j] = p[:start] + item + p[end:]
		}
		expanded, didExpand = name, true
	}
	if !didExpand {
		return value.Scalar(parts[0]), nil
	}
	return value.Strings(parts...), nil
}

// UnresolvedError lists placeholders left unbound by a strict resolution.
type UnresolvedError struct {
	Names []string
}

func newUnresolvedError(names []string) *UnresolvedError {
	seen := make(map[string]struct{}, len(names))
	unique := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		unique = append(unique, n)
	}
	sort.Strings(unique)
	return &UnresolvedError{Names: unique}
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("resolve: unbound references: %s", strings.Join(e.Names, ", "))
}

// ExpansionError is returned when one string references two sequence-valued
// names. Only a single sequence expansion per string is supported.
type ExpansionError struct {
	Input  string
	First  string
	Second string
}

func (e *ExpansionError) Error() string {
	return fmt.Sprintf("resolve: %q expands both sequences %s and %s; only one sequence placeholder per string is supported", e.Input, e.First, e.Second)
}
