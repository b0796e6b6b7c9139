// Package plugins discovers script-backed module definitions in the modules
// directory (YAML files and yaegi-evaluated Go files) and registers them as
// modules.
package plugins

import (
	"fmt"

	"github.com/kingrea/fpgaflow/internal/module"
)

// RegisterScriptPlugins discovers YAML and Go module definitions under dir
// and registers one factory per definition. A definition may not reuse the
// name of an already registered module.
func RegisterScriptPlugins(reg *module.Registry, dir string) error {
	if reg == nil || dir == "" {
		return nil
	}
	defs, err := loadAllDefinitionFiles(dir)
	if err != nil {
		return err
	}
	seen := make(map[string]string)
	for _, file := range defs {
		def := file.Definition
		if existing, ok := seen[def.Name]; ok {
			return fmt.Errorf("plugin: duplicate module %s (%s and %s)", def.Name, existing, file.Path)
		}
		seen[def.Name] = file.Path
		if err := reg.Register(def.Name, def.Instantiate); err != nil {
			return fmt.Errorf("plugin: register %s from %s: %w", def.Name, file.Path, err)
		}
	}
	return nil
}

func loadAllDefinitionFiles(dir string) ([]DefinitionFile, error) {
	yamlDefs, err := LoadDefinitionDir(dir)
	if err != nil {
		return nil, err
	}
	goDefs, err := LoadGoDefinitionDir(dir)
	if err != nil {
		return nil, err
	}
	return append(yamlDefs, goDefs...), nil
}
