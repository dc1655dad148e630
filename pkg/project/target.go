package project

import (
	"os"

	"smokehouse/pkg/conda"
	"smokehouse/pkg/errors"
	"smokehouse/pkg/execute"
	"smokehouse/pkg/git"
)

// GitTargetConfig configures a target tested from a git checkout
type GitTargetConfig struct {
	Name              string
	CloneURL          string
	Ref               RefFunc
	CondaDependencies []string
	PipDependencies   []string
	// InstallCommand and TestCommand run inside the target's
	// environment with the checkout root as working directory
	InstallCommand string
	TestCommand    string
}

// GitTarget is a downstream project cloned at a pinned ref and tested
// from its own working tree
type GitTarget struct {
	cfg GitTargetConfig
}

// NewGitTarget validates the configuration and creates the descriptor
func NewGitTarget(cfg GitTargetConfig) (*GitTarget, error) {
	switch {
	case cfg.Name == "":
		return nil, errors.New(errors.ErrConfigValid, "git target needs a name")
	case cfg.CloneURL == "":
		return nil, errors.Newf(errors.ErrConfigValid, "git target '%s' needs a clone URL", cfg.Name)
	case cfg.Ref == nil:
		return nil, errors.Newf(errors.ErrConfigValid, "git target '%s' needs a ref resolver", cfg.Name)
	case cfg.InstallCommand == "":
		return nil, errors.Newf(errors.ErrConfigValid, "git target '%s' needs an install command", cfg.Name)
	case cfg.TestCommand == "":
		return nil, errors.Newf(errors.ErrConfigValid, "git target '%s' needs a test command", cfg.Name)
	}
	return &GitTarget{cfg: cfg}, nil
}

// Name implements Target
func (t *GitTarget) Name() string {
	return t.cfg.Name
}

// CondaDependencies implements Target
func (t *GitTarget) CondaDependencies() []string {
	return cloneDeps(t.cfg.CondaDependencies)
}

// PipDependencies implements Target
func (t *GitTarget) PipDependencies() []string {
	return cloneDeps(t.cfg.PipDependencies)
}

// NeedsClone implements Target
func (t *GitTarget) NeedsClone() bool {
	return true
}

// Checkout implements Target: clone-if-absent at the resolved ref. An
// existing checkout is reused as-is; re-pinning requires deleting it.
func (t *GitTarget) Checkout(runner execute.Runner, dir string) error {
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	ref, err := t.cfg.Ref(runner)
	if err != nil {
		return err
	}
	return git.CloneRef(runner, t.cfg.CloneURL, ref, dir)
}

// Install implements Target
func (t *GitTarget) Install(c *conda.Conda, env, dir string) error {
	return c.RunIn(env, t.cfg.InstallCommand, execute.Options{Dir: dir})
}

// Test implements Target
func (t *GitTarget) Test(c *conda.Conda, env, dir string) error {
	return c.RunIn(env, t.cfg.TestCommand, execute.Options{Dir: dir})
}

// CondaTargetConfig configures a target whose tests ship inside its
// released package, so no checkout is needed
type CondaTargetConfig struct {
	Name              string
	Package           string
	CondaDependencies []string
	PipDependencies   []string
	TestCommand       string
}

// CondaTarget is a downstream project installed from the package
// manager and tested in place
type CondaTarget struct {
	cfg CondaTargetConfig
}

// NewCondaTarget validates the configuration and creates the descriptor
func NewCondaTarget(cfg CondaTargetConfig) (*CondaTarget, error) {
	switch {
	case cfg.Name == "":
		return nil, errors.New(errors.ErrConfigValid, "conda target needs a name")
	case cfg.Package == "":
		return nil, errors.Newf(errors.ErrConfigValid, "conda target '%s' needs a package spec", cfg.Name)
	case cfg.TestCommand == "":
		return nil, errors.Newf(errors.ErrConfigValid, "conda target '%s' needs a test command", cfg.Name)
	}
	return &CondaTarget{cfg: cfg}, nil
}

// Name implements Target
func (t *CondaTarget) Name() string {
	return t.cfg.Name
}

// CondaDependencies implements Target
func (t *CondaTarget) CondaDependencies() []string {
	return cloneDeps(t.cfg.CondaDependencies)
}

// PipDependencies implements Target
func (t *CondaTarget) PipDependencies() []string {
	return cloneDeps(t.cfg.PipDependencies)
}

// NeedsClone implements Target
func (t *CondaTarget) NeedsClone() bool {
	return false
}

// Checkout implements Target as a no-op
func (t *CondaTarget) Checkout(runner execute.Runner, dir string) error {
	return nil
}

// Install implements Target
func (t *CondaTarget) Install(c *conda.Conda, env, dir string) error {
	return c.Install(env, t.cfg.Package)
}

// Test implements Target
func (t *CondaTarget) Test(c *conda.Conda, env, dir string) error {
	return c.RunIn(env, t.cfg.TestCommand, execute.Options{Dir: dir})
}
