package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes environment variables that override settings, e.g.
// FPGAFLOW_BUILD_DIR.
const EnvPrefix = "FPGAFLOW_"

// Settings are the run-level knobs of the CLI.
type Settings struct {
	Verbosity  int    `koanf:"verbosity" validate:"gte=0"`
	LogLevel   string `koanf:"log_level" validate:"oneof=debug info warn error"`
	LogJSON    bool   `koanf:"log_json"`
	FlowFile   string `koanf:"flow_file" validate:"required"`
	Target     string `koanf:"target"`
	BuildDir   string `koanf:"build_dir" validate:"required"`
	ModulesDir string `koanf:"modules_dir"`
	ShareDir   string `koanf:"share_dir"`
}

// DefaultSettings returns the settings used when nothing is overridden.
func DefaultSettings() Settings {
	return Settings{
		LogLevel:   "warn",
		FlowFile:   "flow.yaml",
		BuildDir:   "build",
		ModulesDir: "modules",
	}
}

// LoadSettings layers struct defaults, FPGAFLOW_* environment variables and
// finally overrides (usually CLI flags that were set) keyed by koanf tag.
// Relative paths are resolved against baseDir.
func LoadSettings(baseDir string, overrides map[string]any) (Settings, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(DefaultSettings(), "koanf"), nil); err != nil {
		return Settings{}, fmt.Errorf("config: load defaults: %w", err)
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: transformEnvKey,
	}), nil); err != nil {
		return Settings{}, fmt.Errorf("config: load environment: %w", err)
	}
	if len(overrides) > 0 {
		if err := k.Load(rawMap(overrides), nil); err != nil {
			return Settings{}, fmt.Errorf("config: load overrides: %w", err)
		}
	}

	var settings Settings
	if err := k.UnmarshalWithConf("", &settings, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &settings,
			TagName:          "koanf",
		},
	}); err != nil {
		return Settings{}, fmt.Errorf("config: decode settings: %w", err)
	}
	settings.normalize(baseDir)
	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// Validate checks the settings' field constraints.
func (s Settings) Validate() error {
	if err := settingsValidator.Struct(s); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("config: %s fails %s validation", strings.ToLower(fe.Field()), fe.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (s *Settings) normalize(baseDir string) {
	if baseDir == "" {
		if wd, err := os.Getwd(); err == nil {
			baseDir = wd
		}
	}
	s.LogLevel = strings.ToLower(strings.TrimSpace(s.LogLevel))
	s.Target = strings.TrimSpace(s.Target)
	s.FlowFile = resolvePath(baseDir, s.FlowFile)
	s.BuildDir = resolvePath(baseDir, s.BuildDir)
	s.ModulesDir = resolvePath(baseDir, s.ModulesDir)
	s.ShareDir = resolvePath(baseDir, s.ShareDir)
}

var settingsValidator = validator.New(validator.WithRequiredStructEnabled())

// transformEnvKey maps FPGAFLOW_BUILD_DIR to build_dir.
func transformEnvKey(key, val string) (string, any) {
	name := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if name == "" {
		return "", nil
	}
	return name, val
}

// rawMap adapts a plain map to a koanf.Provider.
type rawMap map[string]any

func (r rawMap) Read() (map[string]any, error) {
	return r, nil
}

func (r rawMap) ReadBytes() ([]byte, error) {
	return nil, errors.New("config: ReadBytes not supported")
}
