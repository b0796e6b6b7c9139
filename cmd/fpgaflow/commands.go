package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/kingrea/fpgaflow/internal/config"
	"github.com/kingrea/fpgaflow/internal/logging"
	"github.com/kingrea/fpgaflow/internal/module"
	"github.com/kingrea/fpgaflow/internal/proc"
	"github.com/kingrea/fpgaflow/internal/resolve"
	"github.com/kingrea/fpgaflow/internal/tui"
	"github.com/kingrea/fpgaflow/internal/value"
	"github.com/kingrea/fpgaflow/internal/verbosity"
	"github.com/kingrea/fpgaflow/plugins"
)

var (
	headingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
)

// stage is a resolved flow stage ready to build a context for.
type stage struct {
	target string
	name   string
	config config.Stage
	env    *resolve.Env
	mod    module.Module
}

func (a *app) targetEnv() (*config.Flow, string, *resolve.Env, error) {
	flow, err := config.LoadFlow(a.settings.FlowFile)
	if err != nil {
		return nil, "", nil, err
	}
	name, _, err := flow.Target(a.settings.Target)
	if err != nil {
		return nil, "", nil, err
	}
	env, err := flow.Env(name, config.Builtins{BuildDir: a.settings.BuildDir, ShareDir: a.settings.ShareDir})
	if err != nil {
		return nil, "", nil, err
	}
	return flow, name, env, nil
}

func (a *app) prepareStage(name string) (*stage, error) {
	flow, targetName, env, err := a.targetEnv()
	if err != nil {
		return nil, err
	}
	_, target, _ := flow.Target(targetName)
	cfg, err := target.Stage(name)
	if err != nil {
		return nil, err
	}
	stageEnv, err := config.StageEnv(env, cfg)
	if err != nil {
		return nil, err
	}
	mod, err := a.resolveModule(cfg.Module, a.sets.apply(cfg.Params))
	if err != nil {
		return nil, err
	}
	a.logger.Debug("stage prepared", "target", targetName, "stage", name, "module", cfg.Module)
	return &stage{target: targetName, name: name, config: cfg, env: stageEnv, mod: mod}, nil
}

// resolveModule builds a registered module. Unknown names report the
// modules dir that was searched for a plugin definition.
func (a *app) resolveModule(name string, params module.Params) (module.Module, error) {
	mod, err := a.registry.Resolve(name, params)
	if errors.Is(err, module.ErrUnknownModule) {
		if _, locErr := plugins.Locate(a.settings.ModulesDir, name); locErr != nil {
			return nil, locErr
		}
	}
	return mod, err
}

func (a *app) runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <stage>",
		Short: "Run one stage of the selected target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(args[0])
		},
	}
	cmd.Flags().Var(&a.sets, "set", "module param override (key=value, repeatable)")
	cmd.Flags().BoolVar(&a.plain, "plain", false, "print progress lines instead of the interactive view")
	return cmd
}

func (a *app) run(stageName string) error {
	st, err := a.prepareStage(stageName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(a.settings.BuildDir, 0o755); err != nil {
		return fmt.Errorf("create build dir: %w", err)
	}
	logFile, err := logging.Open(a.settings.BuildDir)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logFile.Printf("run stage %s (target %s, module %s)", st.name, st.target, st.config.Module)

	interactive := !a.plain && isTerminal(a.out)
	gateOut := io.MultiWriter(a.out, logFile)
	if interactive {
		gateOut = logFile
	}
	gate := verbosity.New(gateOut)
	gate.SetLevel(a.settings.Verbosity)

	ctx, err := module.BuildContext(st.mod, st.env, module.BuildOptions{
		Explicit: st.config.Outputs,
		ShareDir: a.settings.ShareDir,
		Gate:     gate,
		Runner:   proc.NewExecRunner(io.MultiWriter(a.errOut, logFile)),
	})
	if err != nil {
		return err
	}

	if interactive {
		err = tui.Run(st.mod, ctx, a.in, a.out)
	} else {
		err = module.Run(st.mod, ctx, func(p module.Progress) {
			gate.Printf(0, "[%s %d/%d] %s", p.Module, p.Phase, p.Phases, p.Message)
		})
	}
	if err != nil {
		logFile.Printf("stage %s failed: %v", st.name, err)
		return err
	}
	for _, p := range st.mod.Descriptor().Produces {
		if path := ctx.Produce(p.Name.Base); path != "" {
			gate.Printf(1, "%s: %s", p.Name.Base, path)
		}
	}
	a.logger.Info("stage finished", "stage", st.name, "log", logFile.Path())
	return nil
}

func (a *app) pathsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paths <stage>",
		Short: "Show where a stage reads its inputs and writes its products",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.prepareStage(args[0])
			if err != nil {
				return err
			}
			ctx, err := module.BuildContext(st.mod, st.env, module.BuildOptions{
				Explicit: st.config.Outputs,
				ShareDir: a.settings.ShareDir,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			desc := st.mod.Descriptor()
			fmt.Fprintln(out, headingStyle.Render("takes"))
			for _, take := range desc.Takes {
				v, ok := ctx.Take(take.Base)
				if !ok {
					fmt.Fprintf(out, "  %-20s %s\n", take, mutedStyle.Render("(unbound)"))
					continue
				}
				fmt.Fprintf(out, "  %-20s %s\n", take, v.String())
			}
			fmt.Fprintln(out, headingStyle.Render("produces"))
			for _, p := range desc.Produces {
				path := ctx.Produce(p.Name.Base)
				note := ""
				if ctx.IsOutputExplicit(p.Name.Base) {
					note = " " + mutedStyle.Render("(explicit)")
				}
				if path == "" {
					path = mutedStyle.Render("(not produced)")
				}
				fmt.Fprintf(out, "  %-20s %s%s\n", p.Name, path, note)
			}
			return nil
		},
	}
	cmd.Flags().Var(&a.sets, "set", "module param override (key=value, repeatable)")
	return cmd
}

func (a *app) describeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe <module>",
		Short: "Print a module's I/O contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mod, err := a.resolveModule(args[0], a.sets.apply(nil))
			if err != nil {
				return err
			}
			printDescriptor(cmd.OutOrStdout(), mod.Descriptor())
			return nil
		},
	}
	cmd.Flags().Var(&a.sets, "set", "module param override (key=value, repeatable)")
	return cmd
}

func printDescriptor(out io.Writer, desc module.Descriptor) {
	fmt.Fprintf(out, "%s %s\n", headingStyle.Render(desc.Name), mutedStyle.Render(fmt.Sprintf("(%d phases)", desc.Phases)))
	fmt.Fprintln(out, headingStyle.Render("takes"))
	for _, take := range desc.Takes {
		fmt.Fprintf(out, "  %-20s %s\n", take, mutedStyle.Render(take.Qualifier.String()))
	}
	fmt.Fprintln(out, headingStyle.Render("produces"))
	docs := module.DescribeProducts(desc)
	for _, p := range desc.Produces {
		fmt.Fprintf(out, "  %-20s %s\n", p.Name, mutedStyle.Render(p.Name.Qualifier.String()))
		for _, line := range strings.Split(docs[p.Name.Base], "\n") {
			if strings.TrimSpace(line) != "" {
				fmt.Fprintf(out, "      %s\n", line)
			}
		}
	}
	fmt.Fprintln(out, headingStyle.Render("values"))
	for _, v := range desc.Values {
		fmt.Fprintf(out, "  %-20s %s\n", v, mutedStyle.Render(v.Qualifier.String()))
	}
}

func (a *app) modulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List built-in and plugin modules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range a.registry.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func (a *app) resolveCmd() *cobra.Command {
	var (
		stageName string
		strict    bool
	)
	cmd := &cobra.Command{
		Use:   "resolve <template>",
		Short: "Resolve a ${name} template against the target (or stage) environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flow, targetName, env, err := a.targetEnv()
			if err != nil {
				return err
			}
			if stageName != "" {
				_, target, _ := flow.Target(targetName)
				cfg, err := target.Stage(stageName)
				if err != nil {
					return err
				}
				if env, err = config.StageEnv(env, cfg); err != nil {
					return err
				}
			}
			var resolved value.Value
			if strict {
				resolved, err = env.ResolveStrict(value.Scalar(args[0]))
			} else {
				resolved, err = env.ResolveString(args[0], true)
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if items, ok := resolved.StringSlice(); ok && resolved.IsSequence() {
				for _, item := range items {
					fmt.Fprintln(out, item)
				}
				return nil
			}
			fmt.Fprintln(out, resolved.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&stageName, "stage", "", "layer this stage's values over the target environment")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on unbound names instead of substituting nothing")
	return cmd
}
