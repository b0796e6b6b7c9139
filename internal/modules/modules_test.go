package modules_test

import (
	"testing"

	"github.com/kingrea/fpgaflow/internal/module"
	"github.com/kingrea/fpgaflow/internal/modules"
)

func TestRegisterBuiltins(t *testing.T) {
	reg := module.NewRegistry()
	modules.RegisterBuiltins(reg)
	names := reg.Names()
	if len(names) != 2 || names[0] != "script" || names[1] != "yosys" {
		t.Fatalf("unexpected builtins %v", names)
	}
	mod, err := reg.Resolve("yosys", module.Params{"pnrtool": "nextpnr"})
	if err != nil {
		t.Fatalf("resolve yosys: %v", err)
	}
	if mod.Descriptor().Phases != 3 {
		t.Fatalf("unexpected descriptor %+v", mod.Descriptor())
	}
	modules.RegisterBuiltins(nil)
}
