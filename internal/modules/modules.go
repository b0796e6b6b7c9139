package modules

import (
	"github.com/kingrea/fpgaflow/internal/module"
	"github.com/kingrea/fpgaflow/internal/modules/script"
	"github.com/kingrea/fpgaflow/internal/modules/yosys"
)

// RegisterBuiltins installs all of the built-in module factories into the
// provided registry.
func RegisterBuiltins(reg *module.Registry) {
	if reg == nil {
		return
	}
	script.Register(reg)
	yosys.Register(reg)
}
