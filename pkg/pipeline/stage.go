package pipeline

import (
	"smokehouse/pkg/errors"
)

// Stage identifies one phase of the pipeline
type Stage string

// The five stages, in execution order
const (
	StageBootstrap     Stage = "bootstrap"
	StageEnvironment   Stage = "environment"
	StageInstallSource Stage = "install_source"
	StageInstallTarget Stage = "install_target"
	StageTests         Stage = "tests"
)

// AllStages is the fixed total order. Deselecting a stage skips it; it
// never reorders the rest.
var AllStages = []Stage{
	StageBootstrap,
	StageEnvironment,
	StageInstallSource,
	StageInstallTarget,
	StageTests,
}

// StageSet is the set of stages active for a run
type StageSet map[Stage]struct{}

// NewStageSet builds a set from the given stages
func NewStageSet(stages ...Stage) StageSet {
	set := make(StageSet, len(stages))
	for _, stage := range stages {
		set[stage] = struct{}{}
	}
	return set
}

// Has reports whether the stage is active
func (s StageSet) Has(stage Stage) bool {
	_, ok := s[stage]
	return ok
}

// ParseStages converts stage names into a StageSet, rejecting unknown
// names so selection errors surface at the command line rather than
// mid-run
func ParseStages(names []string) (StageSet, error) {
	set := make(StageSet, len(names))
	for _, name := range names {
		stage := Stage(name)
		if !knownStage(stage) {
			return nil, errors.Newf(errors.ErrInvalidInput,
				"unknown stage '%s' (choose from %v)", name, StageNames())
		}
		set[stage] = struct{}{}
	}
	return set, nil
}

// StageNames returns the stage names in execution order
func StageNames() []string {
	names := make([]string, len(AllStages))
	for i, stage := range AllStages {
		names[i] = string(stage)
	}
	return names
}

func knownStage(stage Stage) bool {
	for _, known := range AllStages {
		if stage == known {
			return true
		}
	}
	return false
}
