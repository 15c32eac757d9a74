package icp

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/apex/log"
)

// Command describes a single external tool invocation
type Command struct {
	Name string
	Args []string
	Dir  string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// CommandResult holds the captured output of a finished process
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner runs external processes. The error is reserved for processes
// that could not be started; a non-zero exit is reported through ExitCode.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) (*CommandResult, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

// Run blocks until the process exits. No timeout is applied beyond ctx.
func (ExecRunner) Run(ctx context.Context, c Command) (*CommandResult, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	if c.Dir != "" {
		cmd.Dir = c.Dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.FromContext(ctx).WithFields(log.Fields{"cmd": c.String(), "dir": c.Dir}).Debug("running")

	err := cmd.Run()
	result := &CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, newError(KindToolLaunch, "run", c.Name, err)
	}
	return result, nil
}
