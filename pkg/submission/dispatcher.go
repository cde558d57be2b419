package submission

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Dispatcher hands a task to whatever executes it. Implementations may run
// the task in-process or ship it across a process or machine boundary; the
// task carries everything the far side needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, task Task) (Result, error)
}

// LocalDispatcher executes tasks in the current process.
type LocalDispatcher struct{}

func (LocalDispatcher) Dispatch(ctx context.Context, task Task) (Result, error) {
	return Execute(ctx, task)
}

var _ Dispatcher = LocalDispatcher{}

// ExecDispatcher executes tasks in a separate process. The task is written as
// JSON to the command's stdin and the result is read from its stdout, so the
// executing side shares no memory with the host.
type ExecDispatcher struct {
	Command string
	Args    []string
}

func (d ExecDispatcher) Dispatch(ctx context.Context, task Task) (Result, error) {
	var in, out bytes.Buffer
	if err := task.Encode(&in); err != nil {
		return Result{}, err
	}

	cmd := exec.CommandContext(ctx, d.Command, d.Args...)
	cmd.Stdin = &in
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return Result{}, fmt.Errorf("task process failed: %w", err)
	}

	return decodeResult(&out)
}

var _ Dispatcher = ExecDispatcher{}
