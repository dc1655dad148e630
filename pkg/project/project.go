// Package project defines the descriptor contracts a downstream user
// implements to wire their library and its dependent projects into the
// harness, plus the four shipped shapes: git-sourced and conda-sourced
// variants of both the source and target roles.
//
// Descriptors are plain configuration: constructors validate required
// fields up front and the accessors are pure and repeatable, since the
// pipeline reads them multiple times across stages.
package project

import (
	"smokehouse/pkg/conda"
	"smokehouse/pkg/execute"
)

// RefFunc resolves the git ref (branch or tag) a descriptor should
// check out, typically by inspecting the remote's tags
type RefFunc func(runner execute.Runner) (string, error)

// Source describes the library under test. Install puts it, at the
// revision of interest, into the named isolated environment.
type Source interface {
	Name() string
	Install(c *conda.Conda, env, baseDir string) error
}

// Target describes a downstream consumer of the source whose test suite
// detects regressions. Name uniquely identifies both the checkout
// directory and the isolated environment.
type Target interface {
	Name() string

	// CondaDependencies lists the dependency specs installed into the
	// target's environment via the primary package manager
	CondaDependencies() []string

	// PipDependencies lists dependency specs unavailable in the primary
	// manager, installed through the environment's own pip
	PipDependencies() []string

	// NeedsClone reports whether the target ships as a git checkout
	NeedsClone() bool

	// Checkout ensures the target's working tree exists at dir. It is a
	// no-op when the checkout is already present or not needed.
	Checkout(runner execute.Runner, dir string) error

	// Install installs the target into its environment, with dir as the
	// working directory for any install command
	Install(c *conda.Conda, env, dir string) error

	// Test runs the target's test suite inside its environment
	Test(c *conda.Conda, env, dir string) error
}

// Diagnostic is implemented by descriptors that print extra
// environment details after a target has been processed
type Diagnostic interface {
	Diagnostics(c *conda.Conda, env string) error
}
