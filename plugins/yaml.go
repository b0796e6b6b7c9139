package plugins

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/fpgaflow/internal/module"
)

// DefinitionFile is a plugin definition together with the file it came from.
type DefinitionFile struct {
	Definition ModuleDefinition
	Path       string
}

// ParseDefinitionYAML decodes and validates a single plugin definition
// payload. fallbackName names the module when the payload does not.
func ParseDefinitionYAML(data []byte, fallbackName string) (ModuleDefinition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return ModuleDefinition{}, fmt.Errorf("plugin: definition payload is empty")
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return ModuleDefinition{}, fmt.Errorf("plugin: decode definition: %w", err)
	}
	def := DefinitionFromMap(raw, fallbackName)
	if err := def.Validate(); err != nil {
		return ModuleDefinition{}, err
	}
	return def, nil
}

// LoadDefinitionFile parses one definition file. The file stem is the
// module name unless the file sets one.
func LoadDefinitionFile(path string) (DefinitionFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefinitionFile{}, fmt.Errorf("plugin: read %s: %w", path, err)
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	def, err := ParseDefinitionYAML(data, stem)
	if err != nil {
		return DefinitionFile{}, fmt.Errorf("plugin: %s: %w", path, err)
	}
	return DefinitionFile{Definition: def, Path: filepath.Clean(path)}, nil
}

// LoadDefinitionDir parses every *.yaml and *.yml file directly under dir,
// ordered by path. An empty or missing dir yields no definitions.
func LoadDefinitionDir(dir string) ([]DefinitionFile, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, nil
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	paths, err := doublestar.Glob(os.DirFS(dir), "*.{yaml,yml}", doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("plugin: scan %s: %w", dir, err)
	}
	sort.Strings(paths)
	defs := make([]DefinitionFile, 0, len(paths))
	for _, rel := range paths {
		def, err := LoadDefinitionFile(filepath.Join(dir, rel))
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Locate maps a module name to its definition file in dir. A name with no
// definition is a *module.ConfigError wrapping module.ErrUnknownModule.
func Locate(dir, name string) (string, error) {
	name = strings.TrimSpace(name)
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(dir, name+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", &module.ConfigError{
		Module: name,
		Reason: fmt.Sprintf("no definition in %s", dir),
		Err:    module.ErrUnknownModule,
	}
}
