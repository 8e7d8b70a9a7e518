// Package task launches pipeline tasks on the remote job flow.
package task

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"pipeline-acceptance/internal/config"
	"pipeline-acceptance/internal/fixture"
)

const DefaultBinary = "remote-task"

var ErrTaskFailed = errors.New("pipeline task failed")

// Runner executes a command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

type ExitError struct {
	Args   []string
	Output string
	Err    error
}

func (e *ExitError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s: %v", ErrTaskFailed, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", ErrTaskFailed, e.Err, e.Output)
}

func (e *ExitError) Is(target error) bool { return target == ErrTaskFailed }

func (e *ExitError) Unwrap() error { return e.Err }

type Launcher struct {
	Binary     string
	Config     config.AcceptanceConfig
	Identifier string
	Override   fixture.TaskOverride
	Timeout    time.Duration
	Runner     Runner
}

func NewLauncher(binary string, h *fixture.Harness, timeout time.Duration) *Launcher {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Launcher{
		Binary:     binary,
		Config:     h.Config,
		Identifier: h.Identifier,
		Override:   h.TaskConfigOverride(),
		Timeout:    timeout,
		Runner:     ExecRunner{},
	}
}

// RunTask runs a named pipeline task with its arguments and waits for it to finish.
func (l *Launcher) RunTask(ctx context.Context, name string, args ...string) (string, error) {
	return l.launch(ctx, append([]string{name}, args...))
}

// RunHive executes a Hive statement on the job flow.
func (l *Launcher) RunHive(ctx context.Context, statement string) (string, error) {
	return l.launch(ctx, []string{"--", "hive", "-e", statement})
}

func (l *Launcher) launch(ctx context.Context, tail []string) (string, error) {
	overridePath, err := l.writeOverride()
	if err != nil {
		return "", err
	}
	defer os.Remove(overridePath)

	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	args := append(l.connectionArgs(overridePath), tail...)
	runner := l.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	out, err := runner.Run(ctx, l.Binary, args...)
	output := strings.TrimSpace(string(out))
	if err != nil {
		return output, &ExitError{Args: args, Output: output, Err: err}
	}
	return output, nil
}

func (l *Launcher) connectionArgs(overridePath string) []string {
	return []string{
		"--job-flow-name", l.Config.JobFlowName(),
		"--repo", l.Config.TasksRepo(),
		"--branch", l.Config.TasksBranch(),
		"--remote-name", l.Identifier,
		"--user", l.Config.ConnectionUser(),
		"--log-path", l.Config.TasksLogPath(),
		"--override-config", overridePath,
		"--wait",
	}
}

func (l *Launcher) writeOverride() (string, error) {
	text, err := fixture.RenderOverride(l.Override)
	if err != nil {
		return "", err
	}
	f, err := os.CreateTemp("", "acceptance-override-*.cfg")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(text); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
