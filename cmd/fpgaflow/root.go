package main

import (
	"fmt"
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/kingrea/fpgaflow/internal/config"
	"github.com/kingrea/fpgaflow/internal/logging"
	"github.com/kingrea/fpgaflow/internal/module"
	"github.com/kingrea/fpgaflow/internal/modules"
	"github.com/kingrea/fpgaflow/internal/proc"
	"github.com/kingrea/fpgaflow/plugins"
)

// settingFlags maps CLI flags to the settings keys they override.
var settingFlags = map[string]string{
	"verbose":     "verbosity",
	"flow":        "flow_file",
	"target":      "target",
	"build-dir":   "build_dir",
	"modules-dir": "modules_dir",
	"share-dir":   "share_dir",
	"log-level":   "log_level",
	"log-json":    "log_json",
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	settings config.Settings
	logger   *charmlog.Logger
	registry *module.Registry

	sets  keyValueFlag
	plain bool
}

func execute(args []string, in io.Reader, out, errOut io.Writer) int {
	a := &app{in: in, out: out, errOut: errOut}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	err := root.Execute()
	if err == nil {
		return 0
	}
	if a.logger == nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
	} else {
		a.logger.Error("fpgaflow failed", "err", err, "exit", proc.ExitCode(err))
	}
	return proc.ExitCode(err)
}

func (a *app) rootCmd() *cobra.Command {
	defaults := config.DefaultSettings()
	root := &cobra.Command{
		Use:           "fpgaflow",
		Short:         "Run FPGA toolchain stages described in a flow file",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	flags := root.PersistentFlags()
	flags.CountP("verbose", "v", "increase output verbosity (repeatable)")
	flags.String("flow", defaults.FlowFile, "flow file")
	flags.StringP("target", "t", "", "flow target (defaults to default_target)")
	flags.String("build-dir", defaults.BuildDir, "build directory")
	flags.String("modules-dir", defaults.ModulesDir, "directory holding plugin module definitions")
	flags.String("share-dir", "", "toolchain share directory")
	flags.String("log-level", defaults.LogLevel, "diagnostic log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "emit diagnostic logs as JSON")

	root.AddCommand(
		a.runCmd(),
		a.pathsCmd(),
		a.describeCmd(),
		a.modulesCmd(),
		a.resolveCmd(),
	)
	return root
}

// setup loads settings (defaults, FPGAFLOW_* env, then changed flags) and
// builds the module registry.
func (a *app) setup(cmd *cobra.Command) error {
	overrides := map[string]any{}
	for flag, key := range settingFlags {
		if cmd.Flags().Changed(flag) {
			overrides[key] = cmd.Flags().Lookup(flag).Value.String()
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}
	settings, err := config.LoadSettings(wd, overrides)
	if err != nil {
		return err
	}
	a.settings = settings
	logCfg := logging.DefaultConfig()
	logCfg.Level = settings.LogLevel
	logCfg.JSON = settings.LogJSON
	logCfg.Output = a.errOut
	a.logger = logging.NewConsole(logCfg)
	a.logger.Debug("settings loaded", "flow", settings.FlowFile, "build_dir", settings.BuildDir)

	a.registry = module.NewRegistry()
	modules.RegisterBuiltins(a.registry)
	if err := plugins.RegisterScriptPlugins(a.registry, settings.ModulesDir); err != nil {
		return err
	}
	return nil
}
