// Package testutil provides shared test doubles for the harness packages.
package testutil

import (
	"strings"

	"smokehouse/pkg/execute"
)

// Call records one invocation observed by a FakeRunner
type Call struct {
	Command  string
	Opts     execute.Options
	Captured bool
}

// FakeRunner is an execute.Runner that records commands instead of
// spawning processes. Outputs and Errors script its behavior per exact
// command string; ErrorFor allows pattern-based failures.
type FakeRunner struct {
	Calls   []Call
	Outputs map[string]string
	Errors  map[string]error

	// ErrorFor, when set, is consulted before Errors
	ErrorFor func(command string) error
}

// NewFakeRunner creates an empty fake
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		Outputs: make(map[string]string),
		Errors:  make(map[string]error),
	}
}

// Run implements execute.Runner
func (f *FakeRunner) Run(command string, opts execute.Options) error {
	f.Calls = append(f.Calls, Call{Command: command, Opts: opts})
	return f.errorFor(command)
}

// Capture implements execute.Runner
func (f *FakeRunner) Capture(command string, opts execute.Options) ([]byte, error) {
	f.Calls = append(f.Calls, Call{Command: command, Opts: opts, Captured: true})
	if err := f.errorFor(command); err != nil {
		return nil, err
	}
	return []byte(f.Outputs[command]), nil
}

func (f *FakeRunner) errorFor(command string) error {
	if f.ErrorFor != nil {
		if err := f.ErrorFor(command); err != nil {
			return err
		}
	}
	return f.Errors[command]
}

// Commands returns every command seen, in order
func (f *FakeRunner) Commands() []string {
	commands := make([]string, 0, len(f.Calls))
	for _, call := range f.Calls {
		commands = append(commands, call.Command)
	}
	return commands
}

// Ran reports whether the exact command was invoked
func (f *FakeRunner) Ran(command string) bool {
	for _, call := range f.Calls {
		if call.Command == command {
			return true
		}
	}
	return false
}

// RanWithPrefix reports whether any invoked command starts with prefix
func (f *FakeRunner) RanWithPrefix(prefix string) bool {
	for _, call := range f.Calls {
		if strings.HasPrefix(call.Command, prefix) {
			return true
		}
	}
	return false
}
