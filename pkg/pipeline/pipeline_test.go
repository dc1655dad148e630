package pipeline

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smokehouse/pkg/conda"
	"smokehouse/pkg/config"
	"smokehouse/pkg/errors"
	"smokehouse/pkg/execute"
	"smokehouse/pkg/project"
	"smokehouse/pkg/registry"
	"smokehouse/pkg/testutil"
)

const emptyEnvListing = `{"envs": ["/ci/miniconda3"]}`

type fixture struct {
	runner  *testutil.FakeRunner
	targets registry.Registry[project.Target]
	out     *bytes.Buffer
	pipe    *Runner
}

func newFixture(t *testing.T, targets ...project.Target) *fixture {
	t.Helper()
	t.Setenv("PATH", "/usr/bin")

	runner := testutil.NewFakeRunner()
	runner.Outputs["conda env list --json"] = emptyEnvListing

	reg := registry.New[project.Target]()
	for _, target := range targets {
		require.NoError(t, reg.Register(target.Name(), target))
	}

	source, err := project.NewCondaSource(project.CondaSourceConfig{
		Name: "numba", Package: "numba",
	})
	require.NoError(t, err)

	cfg := &config.Config{
		Miniconda: config.Miniconda{
			MirrorURL:     "https://repo.continuum.io/miniconda/",
			InstallerFile: "miniconda.sh",
			Prefix:        "miniconda3",
			CondaPin:      "4.7",
		},
		Run: config.Run{BaseDir: t.TempDir()},
	}

	out := &bytes.Buffer{}
	pipe := New(Options{
		Source:  source,
		Targets: reg,
		Conda:   conda.New(runner, cfg),
		BaseDir: cfg.Run.BaseDir,
		Out:     out,
	})
	return &fixture{runner: runner, targets: reg, out: out, pipe: pipe}
}

func condaTarget(t *testing.T, name string) project.Target {
	t.Helper()
	target, err := project.NewCondaTarget(project.CondaTargetConfig{
		Name:              name,
		Package:           name,
		CondaDependencies: []string{"numpy"},
		TestCommand:       "pytest --pyargs " + name,
	})
	require.NoError(t, err)
	return target
}

func allButBootstrap() StageSet {
	return NewStageSet(StageEnvironment, StageInstallSource, StageInstallTarget, StageTests)
}

func TestRunHappyPath(t *testing.T) {
	f := newFixture(t, condaTarget(t, "umap"))

	report, err := f.pipe.Run(allButBootstrap(), []string{"umap"})

	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, []string{
		"conda env list --json",
		"conda create -y -n umap",
		"conda install -y -n umap numpy",
		"conda install -y -n umap numba",
		"conda install -y -n umap umap",
		"conda env export -n umap",
		"conda run -n umap pytest --pyargs umap",
	}, f.runner.Commands())
	assert.Contains(t, f.out.String(), "All integration tests successful")
}

func TestRunIsolatesTestFailures(t *testing.T) {
	// scenario: one passing and one failing target; both must be
	// processed and only the failing one reported
	f := newFixture(t, condaTarget(t, "broken"), condaTarget(t, "umap"))
	f.runner.Errors["conda run -n broken pytest --pyargs broken"] =
		errors.New(errors.ErrCommandFailed, "exit status 1").WithDetail("exit_code", 1)

	report, err := f.pipe.Run(allButBootstrap(), []string{"broken", "umap"})

	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrTestsFailed))
	assert.Equal(t, []string{"broken"}, report.Failed())

	// the passing target still ran its tests after the failure
	assert.True(t, f.runner.Ran("conda run -n umap pytest --pyargs umap"))
	assert.Contains(t, f.out.String(), "The following tests failed: 'broken'")
}

func TestRunNonTestErrorAborts(t *testing.T) {
	f := newFixture(t, condaTarget(t, "broken"), condaTarget(t, "umap"))
	f.runner.Errors["conda create -y -n broken"] =
		errors.New(errors.ErrCommandFailed, "exit status 1")

	_, err := f.pipe.Run(allButBootstrap(), []string{"broken", "umap"})

	require.Error(t, err)
	// environment setup failure is fatal; the second target never runs
	assert.False(t, f.runner.RanWithPrefix("conda create -y -n umap"))
}

func TestRunSkipsProvisionedEnvironment(t *testing.T) {
	// scenario: the environment already exists, so creation and every
	// dependency install must be skipped entirely
	f := newFixture(t, condaTarget(t, "umap"))
	f.runner.Outputs["conda env list --json"] = `{"envs": ["/ci/miniconda3", "/ci/miniconda3/envs/umap"]}`

	report, err := f.pipe.Run(allButBootstrap(), []string{"umap"})

	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.False(t, f.runner.RanWithPrefix("conda create"))
	assert.False(t, f.runner.RanWithPrefix("conda install -y -n umap numpy"))
}

func TestRunExcludedTestsStage(t *testing.T) {
	// scenario: tests deselected; every other stage still executes and
	// no test command is ever invoked
	f := newFixture(t, condaTarget(t, "umap"))

	report, err := f.pipe.Run(
		NewStageSet(StageEnvironment, StageInstallSource, StageInstallTarget),
		[]string{"umap"},
	)

	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.False(t, f.runner.RanWithPrefix("conda run -n umap pytest"))
	assert.True(t, f.runner.Ran("conda create -y -n umap"))
	assert.True(t, f.runner.Ran("conda env export -n umap"))
	assert.NotContains(t, f.out.String(), "All integration tests successful")
}

func TestRunSelectedTargetsOnly(t *testing.T) {
	f := newFixture(t, condaTarget(t, "umap"), condaTarget(t, "hvplot"))

	_, err := f.pipe.Run(allButBootstrap(), []string{"hvplot"})

	require.NoError(t, err)
	assert.True(t, f.runner.Ran("conda create -y -n hvplot"))
	assert.False(t, f.runner.RanWithPrefix("conda create -y -n umap"))
}

func TestRunUnknownTarget(t *testing.T) {
	f := newFixture(t, condaTarget(t, "umap"))

	_, err := f.pipe.Run(allButBootstrap(), []string{"nope"})

	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
}

func TestRunBootstrapOnce(t *testing.T) {
	f := newFixture(t, condaTarget(t, "umap"), condaTarget(t, "hvplot"))
	f.runner.Outputs["uname -sm"] = "Linux x86_64\n"

	_, err := f.pipe.Run(NewStageSet(AllStages...), []string{"umap", "hvplot"})

	require.NoError(t, err)

	unameCalls := 0
	for _, command := range f.runner.Commands() {
		if command == "uname -sm" {
			unameCalls++
		}
	}
	assert.Equal(t, 1, unameCalls)
	// bootstrap precedes all per-target work
	assert.Equal(t, "uname -sm", f.runner.Commands()[0])
}

func TestRunInjectsPathWhenBootstrapSkipped(t *testing.T) {
	f := newFixture(t, condaTarget(t, "umap"))

	_, err := f.pipe.Run(allButBootstrap(), []string{"umap"})

	require.NoError(t, err)
	assert.False(t, f.runner.Ran("uname -sm"))
	// previously bootstrapped runtimes must stay reachable
	assert.True(t, strings.Contains(os.Getenv("PATH"), "miniconda3/bin"))
}

func TestRunGitTargetUsesCheckoutDirectory(t *testing.T) {
	target, err := project.NewGitTarget(project.GitTargetConfig{
		Name:           "umap",
		CloneURL:       "https://example.com/umap",
		Ref:            func(execute.Runner) (string, error) { return "0.5.3", nil },
		InstallCommand: "pip install -e .",
		TestCommand:    "pytest",
	})
	require.NoError(t, err)
	f := newFixture(t, target)

	_, err = f.pipe.Run(allButBootstrap(), []string{"umap"})

	require.NoError(t, err)
	dir := filepath.Join(f.pipe.baseDir, "umap")
	assert.True(t, f.runner.Ran("git clone -b 0.5.3 https://example.com/umap --depth=1 "+dir))

	// install and test commands run with the checkout as working dir
	for _, call := range f.runner.Calls {
		if call.Command == "conda run -n umap pip install -e ." || call.Command == "conda run -n umap pytest" {
			assert.Equal(t, dir, call.Opts.Dir)
		}
	}
}
