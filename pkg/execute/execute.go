// Package execute runs the external collaborator commands the harness
// drives (conda, git, wget, uname). Every invocation is echoed to the
// operator with a fixed prefix before it is spawned, and a non-zero exit
// becomes a structured COMMAND_FAILED error carrying the command text and
// exit code. There are no retries and no timeouts: a failed command is an
// immediate hard failure, and a hung subprocess hangs the pipeline.
package execute

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/rs/zerolog"
	"mvdan.cc/sh/v3/shell"

	"smokehouse/pkg/errors"
	"smokehouse/pkg/logging"
)

// Prefix marks every operator-facing diagnostic line
const Prefix = "::>>"

// Options carries per-invocation settings. Working directories are passed
// explicitly here instead of mutating the process-wide current directory,
// so no directory state can leak between targets.
type Options struct {
	// Dir is the working directory for the command. Empty means the
	// process's current directory.
	Dir string
}

// Runner abstracts external command execution so callers can be tested
// without spawning real processes
type Runner interface {
	// Run spawns the command and blocks until it exits
	Run(command string, opts Options) error

	// Capture spawns the command and returns its raw stdout bytes on success
	Capture(command string, opts Options) ([]byte, error)
}

// ShellRunner executes command lines after tokenizing them with
// shell-style quoting rules
type ShellRunner struct {
	// Out receives the echo lines and the commands' standard output
	Out io.Writer

	logger zerolog.Logger
}

// NewShellRunner creates a runner writing to stdout
func NewShellRunner() *ShellRunner {
	return &ShellRunner{
		Out:    os.Stdout,
		logger: logging.GetLogger("execute"),
	}
}

// Echo writes an operator-facing diagnostic line with the fixed prefix
func Echo(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "%s %s\n", Prefix, fmt.Sprintf(format, args...))
}

// Run implements Runner
func (r *ShellRunner) Run(command string, opts Options) error {
	cmd, err := r.prepare(command, opts)
	if err != nil {
		return err
	}
	cmd.Stdout = r.Out
	cmd.Stderr = os.Stderr
	return r.wait(cmd, command)
}

// Capture implements Runner. The command's stderr still goes to the
// process's stderr; only stdout is captured.
func (r *ShellRunner) Capture(command string, opts Options) ([]byte, error) {
	cmd, err := r.prepare(command, opts)
	if err != nil {
		return nil, err
	}
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr
	if err := r.wait(cmd, command); err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}

func (r *ShellRunner) prepare(command string, opts Options) (*exec.Cmd, error) {
	Echo(r.Out, "running: '%s'", command)

	argv, err := shell.Fields(command, nil)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidInput, "cannot tokenize command '%s'", command)
	}
	if len(argv) == 0 {
		return nil, errors.New(errors.ErrInvalidInput, "empty command")
	}

	r.logger.Debug().
		Str("command", argv[0]).
		Strs("args", argv[1:]).
		Str("dir", opts.Dir).
		Msg("Executing command")

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = opts.Dir
	cmd.Stdin = os.Stdin
	return cmd, nil
}

func (r *ShellRunner) wait(cmd *exec.Cmd, command string) error {
	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		return errors.Wrapf(err, errors.ErrCommandFailed,
			"command '%s' exited with status %d", command, exitErr.ExitCode()).
			WithDetail("command", command).
			WithDetail("exit_code", exitErr.ExitCode())
	}
	return errors.Wrapf(err, errors.ErrCommandFailed, "command '%s' could not be started", command).
		WithDetail("command", command)
}
