package module

import (
	"fmt"
	"os"
)

// Progress describes one phase reported by a running module.
type Progress struct {
	Module  string
	Phase   int
	Phases  int
	Message string
}

// Run drains mod.Execute, reporting each phase to onProgress, then checks
// that every required and demanded product exists.
func Run(mod Module, ctx *Context, onProgress func(Progress)) error {
	desc := mod.Descriptor()
	phase := 0
	for msg, err := range mod.Execute(ctx) {
		if err != nil {
			return fmt.Errorf("module %s: %w", desc.Name, err)
		}
		phase++
		if onProgress != nil {
			onProgress(Progress{Module: desc.Name, Phase: phase, Phases: desc.Phases, Message: msg})
		}
	}
	if phase != desc.Phases {
		return fmt.Errorf("module %s: reported %d of %d phases", desc.Name, phase, desc.Phases)
	}
	return VerifyProducts(desc, ctx)
}

// VerifyProducts fails with *MissingProductError when a required or demanded
// product has no file at its output path. Optional products may be absent.
func VerifyProducts(desc Descriptor, ctx *Context) error {
	for _, p := range desc.Produces {
		if !p.Name.Qualifier.MustExist() {
			continue
		}
		path := ctx.Produce(p.Name.Base)
		if path == "" {
			return &MissingProductError{Module: desc.Name, Product: p.Name.Base}
		}
		if _, err := os.Stat(path); err != nil {
			return &MissingProductError{Module: desc.Name, Product: p.Name.Base, Path: path}
		}
	}
	return nil
}
