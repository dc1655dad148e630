// Package git wraps the git CLI operations the harness needs: shallow
// clones at a ref and remote tag listing/selection. git is treated as an
// opaque external collaborator; its output formats are the contract.
package git

import (
	"fmt"
	"path"
	"strings"

	"github.com/Masterminds/semver/v3"

	"smokehouse/pkg/errors"
	"smokehouse/pkg/execute"
)

// CloneRef makes a shallow clone of url at the given branch or tag into dir
func CloneRef(runner execute.Runner, url, ref, dir string) error {
	return runner.Run(fmt.Sprintf("git clone -b %s %s --depth=1 %s", ref, url, dir), execute.Options{})
}

// LsRemoteTags lists the remote's tag names in the order the remote
// reports them. Each response line is "hash\trefs/tags/NAME"; empty
// lines are dropped.
func LsRemoteTags(runner execute.Runner, url string) ([]string, error) {
	out, err := runner.Capture(fmt.Sprintf("git ls-remote --tags --refs %s", url), execute.Options{})
	if err != nil {
		return nil, err
	}

	var tags []string
	for _, line := range strings.Split(string(out), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 2 {
			return nil, errors.Newf(errors.ErrCommandFailed, "malformed ls-remote line '%s'", line)
		}
		tags = append(tags, path.Base(fields[1]))
	}
	return tags, nil
}

// TagOptions controls tag selection in LatestTag
type TagOptions struct {
	// VPrefix selects the tag convention: when true only tags with a
	// leading "v" are considered, when false only tags without one
	VPrefix bool

	// Exclude drops tags for which it returns true
	Exclude func(tag string) bool
}

// LatestTag returns the remote's highest version tag under the given
// options. Tags are ordered by semantic version; tags that do not parse
// as versions are ignored. Descriptors typically use this to pin a
// target to its latest release.
func LatestTag(runner execute.Runner, url string, opts TagOptions) (string, error) {
	tags, err := LsRemoteTags(runner, url)
	if err != nil {
		return "", err
	}

	var best string
	var bestVersion *semver.Version
	for _, tag := range tags {
		if opts.Exclude != nil && opts.Exclude(tag) {
			continue
		}
		if strings.HasPrefix(tag, "v") != opts.VPrefix {
			continue
		}
		version, err := semver.NewVersion(strings.TrimPrefix(tag, "v"))
		if err != nil {
			continue
		}
		if bestVersion == nil || version.GreaterThan(bestVersion) {
			best = tag
			bestVersion = version
		}
	}

	if best == "" {
		return "", errors.Newf(errors.ErrNotFound, "no suitable tag found at %s", url)
	}
	return best, nil
}
