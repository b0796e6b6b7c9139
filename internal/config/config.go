// internal/config/config.go
//
// This package handles the flow file that describes a build: global values,
// per-target overrides and the stages (module instances) of each target.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/fpgaflow/internal/module"
	"github.com/kingrea/fpgaflow/internal/resolve"
	"github.com/kingrea/fpgaflow/internal/value"
)

// Names of the bindings every flow environment starts with.
const (
	BuiltinTarget   = "target"
	BuiltinDevice   = "device"
	BuiltinBuildDir = "buildDir"
	BuiltinShareDir = "shareDir"
)

// Stage configures one module instance within a target.
type Stage struct {
	Module string        `yaml:"module"`
	Params module.Params `yaml:"params,omitempty"`
	Values *value.Mapping `yaml:"values,omitempty"`
	// Outputs requests explicit paths for products, as templates.
	Outputs map[string]string `yaml:"outputs,omitempty"`
}

// Target is one device build with its own overrides and stages.
type Target struct {
	Device       string           `yaml:"device"`
	Values       *value.Mapping   `yaml:"values,omitempty"`
	Dependencies *value.Mapping   `yaml:"dependencies,omitempty"`
	Stages       map[string]Stage `yaml:"stages"`
}

// Flow models flow.yaml.
type Flow struct {
	DefaultTarget string            `yaml:"default_target,omitempty"`
	Values        *value.Mapping    `yaml:"values,omitempty"`
	Dependencies  *value.Mapping    `yaml:"dependencies,omitempty"`
	Targets       map[string]Target `yaml:"targets"`

	path string
}

// Builtins are the run-level bindings seeded before any configured value.
type Builtins struct {
	BuildDir string
	ShareDir string
}

// LoadFlow reads and validates a flow file.
func LoadFlow(path string) (*Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	flow, err := ParseFlow(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	flow.path = filepath.Clean(path)
	return flow, nil
}

// ParseFlow decodes and validates a flow payload.
func ParseFlow(data []byte) (*Flow, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.New("flow payload is empty")
	}
	var flow Flow
	if err := yaml.Unmarshal(data, &flow); err != nil {
		return nil, fmt.Errorf("parse flow: %w", err)
	}
	flow.normalize()
	if err := flow.validate(); err != nil {
		return nil, err
	}
	return &flow, nil
}

// Path returns the file the flow was loaded from.
func (f *Flow) Path() string {
	return f.path
}

func (f *Flow) normalize() {
	f.DefaultTarget = strings.TrimSpace(f.DefaultTarget)
	if f.Values == nil {
		f.Values = value.NewMapping()
	}
	if f.Dependencies == nil {
		f.Dependencies = value.NewMapping()
	}
	for name, target := range f.Targets {
		target.Device = strings.TrimSpace(target.Device)
		if target.Values == nil {
			target.Values = value.NewMapping()
		}
		if target.Dependencies == nil {
			target.Dependencies = value.NewMapping()
		}
		for stageName, stage := range target.Stages {
			stage.Module = strings.TrimSpace(stage.Module)
			if stage.Module == "" {
				stage.Module = stageName
			}
			if stage.Values == nil {
				stage.Values = value.NewMapping()
			}
			target.Stages[stageName] = stage
		}
		f.Targets[name] = target
	}
}

func (f *Flow) validate() error {
	if len(f.Targets) == 0 {
		return errors.New("at least one target is required")
	}
	if f.DefaultTarget != "" {
		if _, ok := f.Targets[f.DefaultTarget]; !ok {
			return fmt.Errorf("default_target %s is not defined", f.DefaultTarget)
		}
	}
	for name, target := range f.Targets {
		if target.Device == "" {
			return fmt.Errorf("targets[%s]: device is required", name)
		}
	}
	return nil
}

// TargetNames returns the configured targets sorted by name.
func (f *Flow) TargetNames() []string {
	names := make([]string, 0, len(f.Targets))
	for name := range f.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Target selects a target by name. An empty name selects the default
// target, or the only target when there is exactly one.
func (f *Flow) Target(name string) (string, Target, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = f.DefaultTarget
	}
	if name == "" {
		if len(f.Targets) != 1 {
			return "", Target{}, fmt.Errorf("config: no target selected and no default_target among %s", strings.Join(f.TargetNames(), ", "))
		}
		name = f.TargetNames()[0]
	}
	target, ok := f.Targets[name]
	if !ok {
		return "", Target{}, fmt.Errorf("config: unknown target %s", name)
	}
	return name, target, nil
}

// StageNames returns the stages of a target sorted by name.
func (t Target) StageNames() []string {
	names := make([]string, 0, len(t.Stages))
	for name := range t.Stages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stage looks up a stage of the target.
func (t Target) Stage(name string) (Stage, error) {
	stage, ok := t.Stages[name]
	if !ok {
		return Stage{}, fmt.Errorf("config: unknown stage %s (have %s)", name, strings.Join(t.StageNames(), ", "))
	}
	return stage, nil
}

// Env builds the master resolution environment for a target: builtins,
// then global values and dependencies, then the target's overrides.
func (f *Flow) Env(targetName string, builtins Builtins) (*resolve.Env, error) {
	name, target, err := f.Target(targetName)
	if err != nil {
		return nil, err
	}
	env := resolve.New()
	seed := value.NewMapping()
	seed.Set(BuiltinTarget, value.Scalar(name))
	seed.Set(BuiltinDevice, value.Scalar(target.Device))
	if builtins.BuildDir != "" {
		seed.Set(BuiltinBuildDir, value.Scalar(builtins.BuildDir))
	}
	if builtins.ShareDir != "" {
		seed.Set(BuiltinShareDir, value.Scalar(builtins.ShareDir))
	}
	layers := []struct {
		label  string
		values *value.Mapping
	}{
		{"builtins", seed},
		{"values", f.Values},
		{"dependencies", f.Dependencies},
		{"targets." + name + ".values", target.Values},
		{"targets." + name + ".dependencies", target.Dependencies},
	}
	for _, layer := range layers {
		if err := env.AddValues(layer.values); err != nil {
			return nil, fmt.Errorf("config: %s: %w", layer.label, err)
		}
	}
	return env, nil
}

// StageEnv layers a stage's values over a copy of the target environment.
func StageEnv(base *resolve.Env, stage Stage) (*resolve.Env, error) {
	env := base.Clone()
	if err := env.AddValues(stage.Values); err != nil {
		return nil, fmt.Errorf("config: stage %s values: %w", stage.Module, err)
	}
	return env, nil
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}
