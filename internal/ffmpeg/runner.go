package ffmpeg

import (
	"context"
	"os/exec"
)

// Runner starts the encoder as a child process and waits for it to exit.
type Runner interface {
	// Run returns nil on exit status zero. Output of the process is not
	// surfaced.
	Run(ctx context.Context, name string, args ...string) error
}

// CommandRunner runs commands through os/exec with stdout and stderr
// discarded.
type CommandRunner struct{}

// NewCommandRunner returns a CommandRunner.
func NewCommandRunner() *CommandRunner {
	return &CommandRunner{}
}

func (r *CommandRunner) Run(ctx context.Context, name string, args ...string) error {
	// Stdout and Stderr stay nil, so the child writes to the null device.
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.Run()
}
