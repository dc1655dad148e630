// The smokehouse binary is the harness's own system-test configuration:
// it validates the latest released numba against the latest released
// umap. Failures here usually mean a bug in the harness itself.
// Downstream users build their own binary the same way, registering
// their source and targets with cli.Main.
package main

import (
	"fmt"
	"os"
	"strings"

	"smokehouse/internal/cli"
	"smokehouse/pkg/execute"
	"smokehouse/pkg/git"
	"smokehouse/pkg/project"
)

const umapCloneURL = "https://github.com/lmcinnes/umap"

func main() {
	source, err := project.NewCondaSource(project.CondaSourceConfig{
		Name:               "numba",
		Package:            "numba",
		DiagnosticsCommand: "numba -s",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	umap, err := project.NewGitTarget(project.GitTargetConfig{
		Name:     "umap",
		CloneURL: umapCloneURL,
		Ref: func(runner execute.Runner) (string, error) {
			// umap releases carry no v prefix; drop the odd tag that does
			return git.LatestTag(runner, umapCloneURL, git.TagOptions{
				Exclude: func(tag string) bool { return strings.HasPrefix(tag, "v") },
			})
		},
		CondaDependencies: []string{
			"numpy pytest nose scikit-learn pynndescent scipy pandas bokeh " +
				"matplotlib datashader holoviews tensorflow scikit-image",
		},
		InstallCommand: "pip install -e .",
		TestCommand:    "pytest",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	os.Exit(cli.Main(source, umap))
}
