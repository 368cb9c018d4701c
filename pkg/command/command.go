// Package command runs the external dvc and git tools.
package command

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"os/exec"
	"strings"

	"github.com/go-logr/logr"

	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/errors"
)

type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes a command to completion. A non zero exit is reported as a
// COMMAND_FAILED error carrying the captured stderr.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

var _ Runner = &ExecRunner{}

type ExecRunner struct {
	// Dir is the working directory, the current one when empty.
	Dir string
	// Env is appended to the process environment.
	Env []string
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	log := logr.FromContextOrDiscard(ctx)
	cmdline := strings.Join(append([]string{name}, args...), " ")
	log.V(1).Info("running command", "command", cmdline, "dir", r.Dir)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	if len(r.Env) != 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exiterr *exec.ExitError
		if stderrors.As(err, &exiterr) {
			result.ExitCode = exiterr.ExitCode()
			return result, errors.NewCommandFailedError(cmdline, result.ExitCode, result.Stderr)
		}
		// not started at all, e.g. the binary is not installed
		result.ExitCode = -1
		return result, errors.NewCommandFailedError(cmdline, result.ExitCode, err.Error())
	}
	return result, nil
}
