// Package pipeline orchestrates the five-stage run over the selected
// targets: bootstrap the isolated runtime, provision each target's
// environment, install the source and the target into it, then run the
// target's tests. Targets are processed one at a time; a test failure is
// recorded and the run continues, so one broken dependent never blocks
// validation of the others. Everything else is fatal.
package pipeline

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"smokehouse/pkg/conda"
	"smokehouse/pkg/errors"
	"smokehouse/pkg/execute"
	"smokehouse/pkg/logging"
	"smokehouse/pkg/project"
	"smokehouse/pkg/registry"
)

// Options configures a Runner
type Options struct {
	Source  project.Source
	Targets registry.Registry[project.Target]
	Conda   *conda.Conda
	// BaseDir anchors every target's checkout directory
	BaseDir string
	// Out receives operator-facing echo lines; defaults to stdout
	Out io.Writer
}

// Runner executes the stage sequence across targets and owns the run's
// Report
type Runner struct {
	source  project.Source
	targets registry.Registry[project.Target]
	conda   *conda.Conda
	baseDir string
	out     io.Writer
	logger  zerolog.Logger
}

// New creates a Runner
func New(opts Options) *Runner {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Runner{
		source:  opts.Source,
		targets: opts.Targets,
		conda:   opts.Conda,
		baseDir: opts.BaseDir,
		out:     out,
		logger:  logging.GetLogger("pipeline"),
	}
}

// Run processes the named targets through the active stages. It returns
// the Report together with a TESTS_FAILED error when the tests stage was
// active and at least one target failed; any other error aborts the run
// where it happened.
func (r *Runner) Run(stages StageSet, targetNames []string) (*Report, error) {
	report := &Report{}

	// bootstrap runs once, before the per-target loop; when skipped the
	// search-path injection still happens so a previously provisioned
	// runtime stays reachable
	if stages.Has(StageBootstrap) {
		if err := r.conda.Bootstrap(); err != nil {
			return report, err
		}
	} else {
		if err := r.conda.InjectPath(); err != nil {
			return report, err
		}
	}

	names := append([]string(nil), targetNames...)
	sort.Strings(names)

	for _, name := range names {
		target, err := r.targets.Get(name)
		if err != nil {
			return report, err
		}
		if err := r.runTarget(target, stages, report); err != nil {
			return report, err
		}
	}

	if !stages.Has(StageTests) {
		return report, nil
	}
	if !report.OK() {
		execute.Echo(r.out, "The following tests failed: '%s'", strings.Join(report.Failed(), ", "))
		return report, errors.Newf(errors.ErrTestsFailed,
			"integration tests failed for %d target(s)", len(report.Failed())).
			WithDetail("targets", report.Failed())
	}
	execute.Echo(r.out, "All integration tests successful")
	return report, nil
}

func (r *Runner) runTarget(target project.Target, stages StageSet, report *Report) error {
	name := target.Name()
	r.logger.Info().Str("target", name).Msg("Processing target")

	// each target gets its own directory under the base dir; commands
	// receive it explicitly, so no directory state leaks between targets
	dir := r.baseDir
	if target.NeedsClone() {
		dir = filepath.Join(r.baseDir, name)
	}

	if stages.Has(StageEnvironment) {
		if err := r.setupEnvironment(target); err != nil {
			return err
		}
	}

	if stages.Has(StageInstallSource) {
		if err := r.source.Install(r.conda, name, r.baseDir); err != nil {
			return err
		}
	}

	if stages.Has(StageInstallTarget) {
		if err := target.Checkout(r.conda.Runner(), dir); err != nil {
			return err
		}
		if err := target.Install(r.conda, name, dir); err != nil {
			return err
		}
	}

	if err := r.printDiagnostics(target, name); err != nil {
		return err
	}

	if stages.Has(StageTests) {
		if err := target.Test(r.conda, name, dir); err != nil {
			// only a failing test command is recoverable; it is recorded
			// and the remaining targets still run
			if !errors.IsErrorCode(err, errors.ErrCommandFailed) {
				return err
			}
			r.logger.Warn().Str("target", name).Err(err).Msg("Tests failed")
			execute.Echo(r.out, "tests for '%s' failed", name)
			report.AddFailure(name)
		}
	}

	return nil
}

// setupEnvironment provisions the target's isolated environment. The
// idempotence check is existence-only: an environment already present is
// presumed fully provisioned, so changing declared dependencies has no
// effect until the environment is deleted. Known staleness limitation,
// preserved deliberately.
func (r *Runner) setupEnvironment(target project.Target) error {
	name := target.Name()

	envs, err := r.conda.Environments()
	if err != nil {
		return err
	}
	if _, exists := envs[name]; exists {
		r.logger.Debug().Str("env", name).Msg("Environment exists, skipping setup")
		return nil
	}

	if err := r.conda.CreateEnv(name); err != nil {
		return err
	}
	for _, dep := range target.CondaDependencies() {
		if err := r.conda.Install(name, dep); err != nil {
			return err
		}
	}
	for _, dep := range target.PipDependencies() {
		if err := r.conda.PipInstall(name, dep); err != nil {
			return err
		}
	}
	return nil
}

// printDiagnostics runs regardless of stage selection so the operator
// always sees what each environment holds
func (r *Runner) printDiagnostics(target project.Target, env string) error {
	if err := r.conda.Export(env); err != nil {
		return err
	}
	if diag, ok := r.source.(project.Diagnostic); ok {
		return diag.Diagnostics(r.conda, env)
	}
	return nil
}
