package plugins

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kingrea/fpgaflow/internal/module"
)

const sampleDefinition = `description: Pack the synthesized netlist with VPR
takes: [eblif, sdc?]
produces: [net]
prod_meta:
  net: Packed netlist
values: [device, build_dir]
steps:
  - message: Packing with VPR...
    command: vpr ${device} ${eblif} --pack
env:
  OUR_NOISY_WARNINGS: noisy_warnings-${device}_pack.log
outputs:
  net: ${build_dir}/${device}.net
`

func TestParseDefinitionYAML(t *testing.T) {
	def, err := ParseDefinitionYAML([]byte(sampleDefinition), "pack")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if def.Name != "pack" || def.Description != "Pack the synthesized netlist with VPR" {
		t.Fatalf("unexpected definition: %+v", def)
	}
	if _, ok := def.Params["name"]; ok {
		t.Fatalf("name must not leak into params")
	}
	if _, ok := def.Params["steps"]; !ok {
		t.Fatalf("steps missing from params: %+v", def.Params)
	}
}

func TestParseDefinitionYAMLErrors(t *testing.T) {
	cases := map[string]string{
		"empty":       "",
		"bad name":    "name: a/b\ncommand: [true]\n",
		"no command":  "name: x\n",
		"bad produce": "name: x\ncommand: [true]\noutputs: {net: a}\n",
	}
	for label, payload := range cases {
		if _, err := ParseDefinitionYAML([]byte(payload), ""); err == nil {
			t.Fatalf("%s: expected error", label)
		}
	}
}

func TestLoadDefinitionDir(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "pack.yaml")
	if err := os.WriteFile(path, []byte(sampleDefinition), 0644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "README.md"), []byte("ignored"), 0644); err != nil {
		t.Fatalf("write readme: %v", err)
	}
	defs, err := LoadDefinitionDir(root)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(defs) != 1 {
		t.Fatalf("expected 1 definition, got %d", len(defs))
	}
	if defs[0].Path != path {
		t.Fatalf("expected path %s, got %s", path, defs[0].Path)
	}
	if defs[0].Definition.Name != "pack" {
		t.Fatalf("file stem should name the module: %+v", defs[0].Definition)
	}
}

func TestLoadDefinitionDirMissing(t *testing.T) {
	defs, err := LoadDefinitionDir(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("missing dir should not error: %v", err)
	}
	if defs != nil {
		t.Fatalf("expected nil slice for missing dir, got %v", defs)
	}
}

func TestLocate(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "pack.yml")
	if err := os.WriteFile(path, []byte(sampleDefinition), 0644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	got, err := Locate(root, "pack")
	if err != nil || got != path {
		t.Fatalf("expected %s, got %q (%v)", path, got, err)
	}
	_, err = Locate(root, "route")
	var cfgErr *module.ConfigError
	if !errors.As(err, &cfgErr) || !errors.Is(err, module.ErrUnknownModule) {
		t.Fatalf("expected ConfigError wrapping ErrUnknownModule, got %v", err)
	}
}
