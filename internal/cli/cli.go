// Package cli builds the command-line surface of a smokehouse
// configuration binary: one root command with stage and target
// selection, wired to the pipeline.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"smokehouse/internal/version"
	"smokehouse/pkg/conda"
	"smokehouse/pkg/config"
	"smokehouse/pkg/errors"
	"smokehouse/pkg/execute"
	"smokehouse/pkg/logging"
	"smokehouse/pkg/pipeline"
	"smokehouse/pkg/project"
	"smokehouse/pkg/registry"
)

// TestFailureExitCode is the distinguished exit status signalling that
// one or more target test suites failed
const TestFailureExitCode = 23

// Main registers the targets, runs the root command, and returns the
// process exit code. Configuration binaries call this from their main:
//
//	os.Exit(cli.Main(source, umap, hvplot))
func Main(source project.Source, targets ...project.Target) int {
	reg := registry.New[project.Target]()
	for _, target := range targets {
		if err := reg.Register(target.Name(), target); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}

	rootCmd := NewRootCmd(source, reg)
	if err := rootCmd.Execute(); err != nil {
		if errors.IsErrorCode(err, errors.ErrTestsFailed) {
			return TestFailureExitCode
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		// propagate the failing command's own exit status when known
		if code, ok := errors.GetErrorDetails(err)["exit_code"].(int); ok && code > 0 {
			return code
		}
		return 1
	}
	return 0
}

// NewRootCmd creates the root command for the given source and target
// registry
func NewRootCmd(source project.Source, targets registry.Registry[project.Target]) *cobra.Command {
	var (
		verbosity   int
		stageNames  []string
		targetNames []string
	)

	rootCmd := &cobra.Command{
		Use:   "smokehouse",
		Short: "Smoke out the bugs that break dependent packages",
		Long: `smokehouse installs a source package next to each of its downstream
targets in an isolated conda environment and runs the targets' test
suites, so regressions in the source surface before a release does.`,
		Version: version.Version,
		Args:    cobra.NoArgs,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			stages, err := pipeline.ParseStages(stageNames)
			if err != nil {
				return err
			}
			selected, err := selectTargets(targets, targetNames)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			execute.Echo(out, "stages are: '%s'", strings.Join(stageNames, ", "))
			execute.Echo(out, "targets are: '%s'", strings.Join(selected, ", "))

			cfg, err := config.Load("")
			if err != nil {
				return err
			}

			runner := execute.NewShellRunner()
			runner.Out = out

			pipe := pipeline.New(pipeline.Options{
				Source:  source,
				Targets: targets,
				Conda:   conda.New(runner, cfg),
				BaseDir: cfg.Run.BaseDir,
				Out:     out,
			})

			report, err := pipe.Run(stages, selected)
			if err != nil {
				if errors.IsErrorCode(err, errors.ErrTestsFailed) {
					pterm.Error.Printfln("Failed targets: %s", strings.Join(report.Failed(), ", "))
				}
				return err
			}
			if stages.Has(pipeline.StageTests) {
				pterm.Success.Printfln("All %d target(s) passed", len(selected))
			}
			return nil
		},
	}

	rootCmd.Flags().StringSliceVarP(&stageNames, "stages", "s", pipeline.StageNames(),
		"stages to run (subset of: "+strings.Join(pipeline.StageNames(), ", ")+")")
	rootCmd.Flags().StringSliceVarP(&targetNames, "targets", "t", nil,
		"targets to run (default: all registered targets)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v",
		"Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")

	return rootCmd
}

// selectTargets resolves the requested target names against the
// registry, defaulting to all of them. Unknown names are rejected here,
// before any stage runs.
func selectTargets(targets registry.Registry[project.Target], requested []string) ([]string, error) {
	available := targets.List()
	if len(requested) == 0 {
		return available, nil
	}
	for _, name := range requested {
		if !targets.Has(name) {
			return nil, errors.Newf(errors.ErrInvalidInput,
				"unknown target '%s' (choose from %v)", name, available)
		}
	}
	return requested, nil
}
