// Package conda drives the conda package manager: bootstrapping a
// self-contained miniconda runtime, enumerating and creating isolated
// environments, and installing packages into them. All side effects
// happen inside spawned conda processes; this package keeps no state of
// its own beyond configuration.
package conda

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"smokehouse/pkg/config"
	"smokehouse/pkg/errors"
	"smokehouse/pkg/execute"
	"smokehouse/pkg/logging"
)

// Platform identifies a supported miniconda installer build
type Platform string

// The closed set of supported platforms
const (
	PlatformLinuxX86   Platform = "Linux-x86"
	PlatformLinuxX8664 Platform = "Linux-x86_64"
	PlatformMacOSX8664 Platform = "MacOSX-x86_64"
)

const installerTemplate = "Miniconda3-latest-%s.sh"

// DetectPlatform identifies the host by running uname and matching the
// result against the supported platform set. Anything else is a fatal
// configuration error.
func DetectPlatform(runner execute.Runner) (Platform, error) {
	out, err := runner.Capture("uname -sm", execute.Options{})
	if err != nil {
		return "", err
	}
	ident := strings.Join(strings.Fields(string(out)), " ")
	switch ident {
	case "Linux x86_64":
		return PlatformLinuxX8664, nil
	case "Linux i686":
		return PlatformLinuxX86, nil
	case "Darwin x86_64":
		return PlatformMacOSX8664, nil
	}
	return "", errors.Newf(errors.ErrUnsupportedPlatform, "unsupported platform '%s'", ident)
}

// Conda invokes the conda CLI through a command runner
type Conda struct {
	runner execute.Runner
	cfg    *config.Config
	logger zerolog.Logger
}

// New creates a Conda bound to the given runner and configuration
func New(runner execute.Runner, cfg *config.Config) *Conda {
	return &Conda{
		runner: runner,
		cfg:    cfg,
		logger: logging.GetLogger("conda"),
	}
}

// Runner exposes the underlying command runner for collaborators that
// invoke other external tools (git, project commands)
func (c *Conda) Runner() execute.Runner {
	return c.runner
}

// InstallerURL returns the download URL of the miniconda installer for
// the given platform
func (c *Conda) InstallerURL(platform Platform) string {
	return c.cfg.Miniconda.MirrorURL + fmt.Sprintf(installerTemplate, platform)
}

// Bootstrap provisions the isolated miniconda runtime. Every step is
// idempotent: the installer is downloaded only if not already on disk,
// and run only if the installation prefix does not exist. Afterwards the
// runtime's binaries are put on the search path and conda is updated to
// the pinned version. Any failure is fatal; there is no partial-bootstrap
// recovery.
func (c *Conda) Bootstrap() error {
	platform, err := DetectPlatform(c.runner)
	if err != nil {
		return err
	}
	c.logger.Info().Str("platform", string(platform)).Msg("Bootstrapping miniconda")

	installer := c.cfg.InstallerPath()
	if _, err := os.Stat(installer); os.IsNotExist(err) {
		url := c.InstallerURL(platform)
		if err := c.runner.Run(fmt.Sprintf("wget %s -O %s", url, installer), execute.Options{}); err != nil {
			return err
		}
	} else {
		c.logger.Debug().Str("installer", installer).Msg("Installer already downloaded")
	}

	prefix := c.cfg.PrefixDir()
	if _, err := os.Stat(prefix); os.IsNotExist(err) {
		if err := c.runner.Run(fmt.Sprintf("bash %s -b -p %s", installer, prefix), execute.Options{}); err != nil {
			return err
		}
	} else {
		c.logger.Debug().Str("prefix", prefix).Msg("Miniconda already installed")
	}

	if err := c.InjectPath(); err != nil {
		return err
	}
	return c.UpdateConda()
}

// InjectPath prepends the miniconda bin directories to the process's
// PATH so subsequent commands resolve to the isolated runtime. This is
// the only PATH mutation the harness performs, and the pipeline calls it
// even when the bootstrap stage is skipped so pre-provisioned runtimes
// stay reachable.
func (c *Conda) InjectPath() error {
	sep := string(os.PathListSeparator)
	path := strings.Join([]string{c.cfg.BinDir(), c.cfg.CondabinDir(), os.Getenv("PATH")}, sep)
	if err := os.Setenv("PATH", path); err != nil {
		return errors.Wrap(err, errors.ErrConfigLoad, "cannot update PATH")
	}
	c.logger.Debug().Str("bin", c.cfg.BinDir()).Msg("Injected miniconda onto PATH")
	return nil
}

// UpdateConda updates conda itself and then pins it to the configured
// compatible version
func (c *Conda) UpdateConda() error {
	if err := c.runner.Run("conda update -y -n base -c defaults conda", execute.Options{}); err != nil {
		return err
	}
	if pin := c.cfg.Miniconda.CondaPin; pin != "" {
		return c.runner.Run(fmt.Sprintf("conda install -y conda=%s", pin), execute.Options{})
	}
	return nil
}
