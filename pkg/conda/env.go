package conda

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"smokehouse/pkg/errors"
	"smokehouse/pkg/execute"
)

// envList mirrors the JSON shape of `conda env list --json`
type envList struct {
	Envs []string `json:"envs"`
}

// Environments returns the existing isolated environments as a mapping
// from short name (basename of the environment path) to absolute path.
// A malformed listing is a fatal error; there are no partial results.
func (c *Conda) Environments() (map[string]string, error) {
	out, err := c.runner.Capture("conda env list --json", execute.Options{})
	if err != nil {
		return nil, err
	}

	var listing envList
	if err := json.Unmarshal(out, &listing); err != nil {
		return nil, errors.Wrap(err, errors.ErrEnvListParse, "cannot parse conda environment listing")
	}

	envs := make(map[string]string, len(listing.Envs))
	for _, path := range listing.Envs {
		envs[filepath.Base(path)] = path
	}
	return envs, nil
}

// CreateEnv creates a new empty named environment. Callers are expected
// to consult Environments first; creation of an existing environment is
// a conda-level error.
func (c *Conda) CreateEnv(name string) error {
	return c.runner.Run(fmt.Sprintf("conda create -y -n %s", name), execute.Options{})
}

// Install installs one dependency specification into the named
// environment. The spec may name several packages and carry channel
// qualifiers; it is passed to conda verbatim.
func (c *Conda) Install(env, spec string) error {
	return c.runner.Run(fmt.Sprintf("conda install -y -n %s %s", env, spec), execute.Options{})
}

// PipInstall installs a pip dependency specification into the named
// environment. pip is invoked through `conda run` so it binds to the
// environment's interpreter rather than any ambient one.
func (c *Conda) PipInstall(env, spec string) error {
	return c.RunIn(env, fmt.Sprintf("pip install %s", spec), execute.Options{})
}

// RunIn executes an arbitrary command inside the named environment via
// the package manager's run wrapper
func (c *Conda) RunIn(env, command string, opts execute.Options) error {
	return c.runner.Run(fmt.Sprintf("conda run -n %s %s", env, command), opts)
}

// Export prints the environment's package listing for operator
// visibility
func (c *Conda) Export(env string) error {
	return c.runner.Run(fmt.Sprintf("conda env export -n %s", env), execute.Options{})
}
