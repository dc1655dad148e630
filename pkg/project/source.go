package project

import (
	"os"
	"path/filepath"
	"slices"

	"smokehouse/pkg/conda"
	"smokehouse/pkg/errors"
	"smokehouse/pkg/execute"
	"smokehouse/pkg/git"
)

// GitSourceConfig configures a source installed from a git checkout
type GitSourceConfig struct {
	Name              string
	CloneURL          string
	Ref               RefFunc
	CondaDependencies []string
	// InstallCommand runs inside the target environment with the
	// checkout root as working directory
	InstallCommand string
	// DiagnosticsCommand, when set, is run inside the environment after
	// each target for operator visibility (e.g. "numba -s")
	DiagnosticsCommand string
}

// GitSource installs the library under test from a fresh git checkout
type GitSource struct {
	cfg GitSourceConfig
}

// NewGitSource validates the configuration and creates the descriptor
func NewGitSource(cfg GitSourceConfig) (*GitSource, error) {
	switch {
	case cfg.Name == "":
		return nil, errors.New(errors.ErrConfigValid, "git source needs a name")
	case cfg.CloneURL == "":
		return nil, errors.Newf(errors.ErrConfigValid, "git source '%s' needs a clone URL", cfg.Name)
	case cfg.Ref == nil:
		return nil, errors.Newf(errors.ErrConfigValid, "git source '%s' needs a ref resolver", cfg.Name)
	case cfg.InstallCommand == "":
		return nil, errors.Newf(errors.ErrConfigValid, "git source '%s' needs an install command", cfg.Name)
	}
	return &GitSource{cfg: cfg}, nil
}

// Name implements Source
func (s *GitSource) Name() string {
	return s.cfg.Name
}

// Install implements Source: the source's own dependencies go into the
// environment first, then the checkout is created if absent and the
// install command runs inside it.
func (s *GitSource) Install(c *conda.Conda, env, baseDir string) error {
	for _, dep := range s.cfg.CondaDependencies {
		if err := c.Install(env, dep); err != nil {
			return err
		}
	}

	dir := filepath.Join(baseDir, s.cfg.Name)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		ref, err := s.cfg.Ref(c.Runner())
		if err != nil {
			return err
		}
		if err := git.CloneRef(c.Runner(), s.cfg.CloneURL, ref, dir); err != nil {
			return err
		}
	}

	return c.RunIn(env, s.cfg.InstallCommand, execute.Options{Dir: dir})
}

// Diagnostics implements Diagnostic
func (s *GitSource) Diagnostics(c *conda.Conda, env string) error {
	if s.cfg.DiagnosticsCommand == "" {
		return nil
	}
	return c.RunIn(env, s.cfg.DiagnosticsCommand, execute.Options{})
}

// CondaSourceConfig configures a source installed straight from the
// package manager
type CondaSourceConfig struct {
	Name string
	// Package is the spec handed to conda install; it may carry channel
	// qualifiers
	Package            string
	DiagnosticsCommand string
}

// CondaSource installs the library under test as a released package
type CondaSource struct {
	cfg CondaSourceConfig
}

// NewCondaSource validates the configuration and creates the descriptor
func NewCondaSource(cfg CondaSourceConfig) (*CondaSource, error) {
	switch {
	case cfg.Name == "":
		return nil, errors.New(errors.ErrConfigValid, "conda source needs a name")
	case cfg.Package == "":
		return nil, errors.Newf(errors.ErrConfigValid, "conda source '%s' needs a package spec", cfg.Name)
	}
	return &CondaSource{cfg: cfg}, nil
}

// Name implements Source
func (s *CondaSource) Name() string {
	return s.cfg.Name
}

// Install implements Source
func (s *CondaSource) Install(c *conda.Conda, env, baseDir string) error {
	return c.Install(env, s.cfg.Package)
}

// Diagnostics implements Diagnostic
func (s *CondaSource) Diagnostics(c *conda.Conda, env string) error {
	if s.cfg.DiagnosticsCommand == "" {
		return nil
	}
	return c.RunIn(env, s.cfg.DiagnosticsCommand, execute.Options{})
}

// cloneDeps is shared by the target shapes' list accessors so callers
// cannot mutate descriptor configuration through a returned slice
func cloneDeps(deps []string) []string {
	return slices.Clone(deps)
}
