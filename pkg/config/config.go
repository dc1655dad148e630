// Package config loads the harness configuration: built-in defaults,
// then an optional smokehouse.toml in the working directory, then
// SMOKEHOUSE_* environment variables, each layer overriding the last.
package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"smokehouse/pkg/errors"
)

//go:embed defaults.toml
var defaultConfig []byte

// ConfigFileName is looked up in the working directory
const ConfigFileName = "smokehouse.toml"

// Miniconda configures the isolated-runtime bootstrap
type Miniconda struct {
	// MirrorURL is the base URL installers are fetched from
	MirrorURL string `koanf:"mirror_url"`
	// InstallerFile is the local download name for the installer script
	InstallerFile string `koanf:"installer_file"`
	// Prefix is the installation directory, relative to the base dir
	Prefix string `koanf:"prefix"`
	// CondaPin is the conda version the bootstrap pins after updating
	CondaPin string `koanf:"conda_pin"`
}

// Run configures pipeline execution
type Run struct {
	// BaseDir anchors checkouts and the miniconda prefix. Empty means
	// the current working directory at load time.
	BaseDir string `koanf:"base_dir"`
}

// Config is the root configuration
type Config struct {
	Miniconda Miniconda `koanf:"miniconda"`
	Run       Run       `koanf:"run"`
}

// rawBytesProvider implements koanf provider for raw bytes
type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New(errors.ErrConfigLoad, "rawBytesProvider does not support Read")
}

// Load builds the configuration for the given directory. An empty dir
// means the current working directory.
func Load(dir string) (*Config, error) {
	k := koanf.New(".")

	// 1. Built-in defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load defaults")
	}

	// 2. Optional config file
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigLoad, "failed to load config from %s", path)
		}
	}

	// 3. Environment overrides: SMOKEHOUSE_MINICONDA_CONDA_PIN etc.
	err := k.Load(env.Provider("SMOKEHOUSE_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "SMOKEHOUSE_"))
		for _, section := range []string{"miniconda", "run"} {
			if strings.HasPrefix(key, section+"_") {
				return section + "." + strings.TrimPrefix(key, section+"_")
			}
		}
		return key
	}), nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load environment overrides")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to unmarshal configuration")
	}

	if cfg.Run.BaseDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigLoad, "cannot determine working directory")
		}
		cfg.Run.BaseDir = cwd
	}

	return &cfg, nil
}

// Default returns the built-in configuration, anchored at the current
// working directory. It panics if the embedded defaults are malformed,
// which is a build defect.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(err)
	}
	return cfg
}

// PrefixDir returns the absolute miniconda installation directory
func (c *Config) PrefixDir() string {
	return filepath.Join(c.Run.BaseDir, c.Miniconda.Prefix)
}

// BinDir returns the bin directory of the miniconda installation
func (c *Config) BinDir() string {
	return filepath.Join(c.PrefixDir(), "bin")
}

// CondabinDir returns the condabin directory of the miniconda installation
func (c *Config) CondabinDir() string {
	return filepath.Join(c.PrefixDir(), "condabin")
}

// InstallerPath returns the local download path of the installer script
func (c *Config) InstallerPath() string {
	return filepath.Join(c.Run.BaseDir, c.Miniconda.InstallerFile)
}
