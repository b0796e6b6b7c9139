package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"gopkg.in/yaml.v3"
)

// goDefinitionFunc is the function a Go plugin file must declare:
//
//	func ModuleDefinitions() ([]map[string]any, error)
const goDefinitionFunc = "ModuleDefinitions"

// LoadGoDefinitionDir evaluates every .go file in dir with the yaegi
// interpreter and collects the definitions returned by ModuleDefinitions.
// Go definitions must set a name. A missing dir yields no definitions.
func LoadGoDefinitionDir(dir string) ([]DefinitionFile, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	paths, err := filepath.Glob(filepath.Join(trimmed, "*.go"))
	if err != nil {
		return nil, fmt.Errorf("plugin: scan %s: %w", trimmed, err)
	}
	sort.Strings(paths)
	var defs []DefinitionFile
	for _, path := range paths {
		if strings.HasSuffix(path, "_test.go") {
			continue
		}
		fileDefs, err := loadGoDefinitionFile(path)
		if err != nil {
			return nil, err
		}
		defs = append(defs, fileDefs...)
	}
	return defs, nil
}

func loadGoDefinitionFile(path string) ([]DefinitionFile, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plugin: read %s: %w", path, err)
	}
	if strings.TrimSpace(string(code)) == "" {
		return nil, fmt.Errorf("plugin: %s is empty", path)
	}
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("plugin: interpreter symbols: %w", err)
	}
	if _, err := i.EvalPath(path); err != nil {
		return nil, fmt.Errorf("plugin: interpret %s: %w", path, err)
	}
	fn, err := i.Eval(goDefinitionFunc)
	if err != nil {
		return nil, fmt.Errorf("plugin: %s must declare %s() ([]map[string]any, error): %w", path, goDefinitionFunc, err)
	}
	raws, err := callDefinitions(fn)
	if err != nil {
		return nil, fmt.Errorf("plugin: %s: %w", path, err)
	}
	files := make([]DefinitionFile, 0, len(raws))
	for idx, raw := range raws {
		// A YAML round trip turns interpreter values into plain decoded data.
		payload, err := yaml.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("plugin: %s definition %d: %w", path, idx+1, err)
		}
		def, err := ParseDefinitionYAML(payload, "")
		if err != nil {
			return nil, fmt.Errorf("plugin: %s definition %d: %w", path, idx+1, err)
		}
		files = append(files, DefinitionFile{Definition: def, Path: fmt.Sprintf("%s#%d", path, idx+1)})
	}
	return files, nil
}

func callDefinitions(fn reflect.Value) ([]any, error) {
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", goDefinitionFunc)
	}
	results := fn.Call(nil)
	switch len(results) {
	case 1:
	case 2:
		if errVal := results[1]; !errVal.IsNil() {
			if err, ok := errVal.Interface().(error); ok {
				return nil, err
			}
			return nil, fmt.Errorf("%s returned a non-error second value", goDefinitionFunc)
		}
	default:
		return nil, fmt.Errorf("%s must return ([]map[string]any, error)", goDefinitionFunc)
	}
	list := results[0]
	if list.Kind() != reflect.Slice {
		return nil, fmt.Errorf("%s must return a slice", goDefinitionFunc)
	}
	out := make([]any, list.Len())
	for idx := range out {
		out[idx] = list.Index(idx).Interface()
	}
	return out, nil
}
