package commands

import (
	"os"

	"github.com/halmci/halm-reporter/pkg/submission"
)

// ExecTaskCmd is the far side of the process boundary: it reads one
// serialized task from stdin, executes it and writes the result to stdout.
// Submission failures travel back in the result; a non-zero exit is reserved
// for tasks that could not be executed at all.
type ExecTaskCmd struct{}

func (c *ExecTaskCmd) Run(ctx *cliCtx) error {
	task, err := submission.DecodeTask(os.Stdin)
	if err != nil {
		return err
	}

	result, err := submission.Execute(ctx, task)
	if err != nil {
		return err
	}
	return result.Encode(os.Stdout)
}
