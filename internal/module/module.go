package module

import (
	"fmt"
	"iter"
	"sort"

	"github.com/kingrea/fpgaflow/internal/dep"
)

// Product declares an output artifact with optional documentation.
type Product struct {
	Name dep.Name
	Doc  string
}

// Descriptor is the static I/O contract of a module.
type Descriptor struct {
	Name     string
	Phases   int
	Takes    []dep.Name
	Produces []Product
	Values   []dep.Name
}

// Validate ensures the descriptor is well-formed.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return &ConfigError{Reason: "module name is required"}
	}
	if d.Phases <= 0 {
		return &ConfigError{Module: d.Name, Reason: fmt.Sprintf("phase count must be positive, got %d", d.Phases)}
	}
	if err := checkUnique(d.Name, "takes", d.Takes); err != nil {
		return err
	}
	products := make([]dep.Name, len(d.Produces))
	for i, p := range d.Produces {
		products[i] = p.Name
	}
	if err := checkUnique(d.Name, "produces", products); err != nil {
		return err
	}
	return checkUnique(d.Name, "values", d.Values)
}

func checkUnique(module, label string, names []dep.Name) error {
	seen := make(map[string]struct{}, len(names))
	for i, n := range names {
		if n.Base == "" {
			return &ConfigError{Module: module, Reason: fmt.Sprintf("%s[%d]: empty name", label, i)}
		}
		if _, exists := seen[n.Base]; exists {
			return &ConfigError{Module: module, Reason: fmt.Sprintf("%s[%d]: duplicate %s", label, i, n.Base)}
		}
		seen[n.Base] = struct{}{}
	}
	return nil
}

// Clone returns a copy that shares no slices with d.
func (d Descriptor) Clone() Descriptor {
	return Descriptor{
		Name:     d.Name,
		Phases:   d.Phases,
		Takes:    append([]dep.Name{}, d.Takes...),
		Produces: append([]Product{}, d.Produces...),
		Values:   append([]dep.Name{}, d.Values...),
	}
}

// Product looks up a declared product by base name.
func (d Descriptor) Product(base string) (Product, bool) {
	for _, p := range d.Produces {
		if p.Name.Base == base {
			return p, true
		}
	}
	return Product{}, false
}

// Extend appends the extension's takes, products and product docs. Docs
// may describe built-in products as well as extension ones.
func (d Descriptor) Extend(ext Extension) (Descriptor, error) {
	out := d.Clone()
	out.Takes = append(out.Takes, dep.ParseAll(ext.Takes)...)
	for _, name := range ext.Produces {
		out.Produces = append(out.Produces, Product{Name: dep.Parse(name)})
	}
	keys := make([]string, 0, len(ext.ProdMeta))
	for k := range ext.ProdMeta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		base, _ := dep.Decompose(key)
		found := false
		for i := range out.Produces {
			if out.Produces[i].Name.Base == base {
				out.Produces[i].Doc = ext.ProdMeta[key]
				found = true
				break
			}
		}
		if !found {
			return Descriptor{}, &ConfigError{Module: d.Name, Reason: fmt.Sprintf("documentation for undeclared product %s", base)}
		}
	}
	if err := out.Validate(); err != nil {
		return Descriptor{}, err
	}
	return out, nil
}

// Module is implemented by every pipeline stage.
type Module interface {
	Descriptor() Descriptor
	// Execute performs the stage. It yields one progress message per
	// declared phase, doing the phase's work after the yield returns. A
	// failure is delivered as a final ("", err) pair.
	Execute(ctx *Context) iter.Seq2[string, error]
}

// PathMapper is implemented by modules that can compute their output paths
// without running the tool.
type PathMapper interface {
	MapIO(ctx *Context) (map[string]string, error)
}

// DescribeProducts returns the documentation of every documented product,
// keyed by base name.
func DescribeProducts(desc Descriptor) map[string]string {
	docs := make(map[string]string)
	for _, p := range desc.Produces {
		if p.Doc != "" {
			docs[p.Name.Base] = p.Doc
		}
	}
	return docs
}
