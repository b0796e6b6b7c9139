package plugins

import (
	"fmt"
	"strings"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"

	"github.com/kingrea/fpgaflow/internal/module"
	"github.com/kingrea/fpgaflow/internal/modules/script"
)

// ModuleDefinition describes a script-backed module loaded from a plugin
// file. Everything except name and description is handed to the script
// module as params, so definitions use the same keys a flow stage would
// (command, steps, env, dir, echo_stdout, takes, produces, prod_meta,
// values, outputs).
type ModuleDefinition struct {
	Name        string        `yaml:"name" validate:"required,excludesall=/?!"`
	Description string        `yaml:"description,omitempty"`
	Params      module.Params `yaml:"-"`
}

var definitionValidator = validator.New(validator.WithRequiredStructEnabled())

// DefinitionFromMap splits a decoded plugin payload into a definition.
// fallbackName is used when the payload carries no name.
func DefinitionFromMap(raw map[string]any, fallbackName string) ModuleDefinition {
	def := ModuleDefinition{Params: module.Params{}}
	for key, val := range raw {
		switch strings.TrimSpace(key) {
		case "name":
			def.Name, _ = val.(string)
		case "description":
			def.Description, _ = val.(string)
		case "":
		default:
			def.Params[strings.TrimSpace(key)] = val
		}
	}
	if strings.TrimSpace(def.Name) == "" {
		def.Name = fallbackName
	}
	return def.Normalized()
}

// Normalized returns a trimmed copy of the definition.
func (def ModuleDefinition) Normalized() ModuleDefinition {
	clone := ModuleDefinition{
		Name:        strings.TrimSpace(def.Name),
		Description: strings.TrimSpace(def.Description),
		Params:      make(module.Params, len(def.Params)),
	}
	for key, val := range def.Params {
		clone.Params[key] = val
	}
	return clone
}

// Validate checks the definition and that it builds a working module.
func (def ModuleDefinition) Validate() error {
	normalized := def.Normalized()
	if err := definitionValidator.Struct(normalized); err != nil {
		return fmt.Errorf("plugin: name %q is invalid: %w", normalized.Name, err)
	}
	if _, err := normalized.Instantiate(nil); err != nil {
		return fmt.Errorf("plugin %s: %w", normalized.Name, err)
	}
	return nil
}

// Instantiate builds the module for one flow stage. Stage params override
// definition params key by key.
func (def ModuleDefinition) Instantiate(stage module.Params) (module.Module, error) {
	merged := module.Params{}
	for key, val := range stage {
		merged[key] = val
	}
	if err := mergo.Merge(&merged, def.Params); err != nil {
		return nil, fmt.Errorf("plugin %s: merge params: %w", def.Name, err)
	}
	merged["name"] = def.Name
	mod, err := script.New(merged)
	if err != nil {
		return nil, err
	}
	return mod, nil
}
