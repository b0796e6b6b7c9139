// Package dep implements the qualifier suffixes carried by dependency names.
// A trailing `?` marks an optional dependency, a trailing `!` a demanded one,
// and a bare name a required one.
package dep

import "strings"

// Qualifier controls how a flow treats a dependency.
type Qualifier int

const (
	// Required dependencies must be resolvable before the module runs.
	Required Qualifier = iota
	// Optional dependencies may be absent; modules handle their absence.
	Optional
	// Demanded dependencies are always produced, even with no consumer.
	Demanded
)

const (
	optionalMarker = '?'
	demandedMarker = '!'
)

func (q Qualifier) String() string {
	switch q {
	case Optional:
		return "optional"
	case Demanded:
		return "demanded"
	default:
		return "required"
	}
}

// Marker returns the suffix encoding q.
func (q Qualifier) Marker() string {
	switch q {
	case Optional:
		return string(optionalMarker)
	case Demanded:
		return string(demandedMarker)
	default:
		return ""
	}
}

// MustExist reports whether a dependency with this qualifier has to be
// present once its producer has run.
func (q Qualifier) MustExist() bool {
	return q == Required || q == Demanded
}

// Decompose splits a qualified name into its base and qualifier.
func Decompose(name string) (string, Qualifier) {
	if name == "" {
		return "", Required
	}
	switch name[len(name)-1] {
	case optionalMarker:
		return name[:len(name)-1], Optional
	case demandedMarker:
		return name[:len(name)-1], Demanded
	default:
		return name, Required
	}
}

// Compose encodes base with q. Any marker already present on base is
// replaced.
func Compose(base string, q Qualifier) string {
	bare, _ := Decompose(base)
	return bare + q.Marker()
}

// Name is a decomposed dependency name.
type Name struct {
	Base      string
	Qualifier Qualifier
}

// Parse decomposes a textual dependency name.
func Parse(name string) Name {
	base, q := Decompose(strings.TrimSpace(name))
	return Name{Base: base, Qualifier: q}
}

// ParseAll decomposes a list of names, preserving order.
func ParseAll(names []string) []Name {
	out := make([]Name, len(names))
	for i, n := range names {
		out[i] = Parse(n)
	}
	return out
}

// String re-encodes the name.
func (n Name) String() string {
	return Compose(n.Base, n.Qualifier)
}

// Optional reports whether the dependency may be absent.
func (n Name) Optional() bool { return n.Qualifier == Optional }
