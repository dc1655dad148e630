package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smokehouse/pkg/errors"
	"smokehouse/pkg/project"
	"smokehouse/pkg/registry"
)

func testSource(t *testing.T) project.Source {
	t.Helper()
	source, err := project.NewCondaSource(project.CondaSourceConfig{Name: "numba", Package: "numba"})
	require.NoError(t, err)
	return source
}

func testRegistry(t *testing.T, names ...string) registry.Registry[project.Target] {
	t.Helper()
	reg := registry.New[project.Target]()
	for _, name := range names {
		target, err := project.NewCondaTarget(project.CondaTargetConfig{
			Name: name, Package: name, TestCommand: "pytest",
		})
		require.NoError(t, err)
		require.NoError(t, reg.Register(name, target))
	}
	return reg
}

func executeCommand(t *testing.T, reg registry.Registry[project.Target], args ...string) error {
	t.Helper()
	rootCmd := NewRootCmd(testSource(t), reg)
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestUnknownStageRejected(t *testing.T) {
	err := executeCommand(t, testRegistry(t, "umap"), "--stages", "compile")

	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
	assert.Contains(t, err.Error(), "compile")
}

func TestUnknownTargetRejected(t *testing.T) {
	err := executeCommand(t, testRegistry(t, "umap"), "--targets", "nope")

	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
	assert.Contains(t, err.Error(), "nope")
}

func TestPositionalArgumentsRejected(t *testing.T) {
	err := executeCommand(t, testRegistry(t, "umap"), "umap")

	assert.Error(t, err)
}

func TestStagesDefaultToAll(t *testing.T) {
	rootCmd := NewRootCmd(testSource(t), testRegistry(t, "umap"))

	flag := rootCmd.Flags().Lookup("stages")
	require.NotNil(t, flag)
	assert.Equal(t, "[bootstrap,environment,install_source,install_target,tests]", flag.DefValue)
}

func TestSelectTargetsDefaultsToAll(t *testing.T) {
	reg := testRegistry(t, "umap", "hvplot", "awkward")

	selected, err := selectTargets(reg, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"awkward", "hvplot", "umap"}, selected)
}

func TestSelectTargetsSubset(t *testing.T) {
	reg := testRegistry(t, "umap", "hvplot")

	selected, err := selectTargets(reg, []string{"hvplot"})

	require.NoError(t, err)
	assert.Equal(t, []string{"hvplot"}, selected)
}

func TestMainRejectsDuplicateTargetNames(t *testing.T) {
	target, err := project.NewCondaTarget(project.CondaTargetConfig{
		Name: "umap", Package: "umap", TestCommand: "pytest",
	})
	require.NoError(t, err)

	// two targets sharing a name would share a checkout and environment
	code := Main(testSource(t), target, target)

	assert.Equal(t, 1, code)
}

func TestSelectTargetsUnknown(t *testing.T) {
	reg := testRegistry(t, "umap")

	_, err := selectTargets(reg, []string{"umap", "nope"})

	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}
