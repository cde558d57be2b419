package submission

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/halmci/halm-reporter/testutl"
	"github.com/stretchr/testify/require"
)

// TestMain doubles as the task process: with the guard variable set, the test
// binary reads one task from stdin, executes it and writes the result to
// stdout, the same contract the exec-task command fulfils.
func TestMain(m *testing.M) {
	if os.Getenv("HALM_TASK_PROCESS") == "1" {
		task, err := DecodeTask(os.Stdin)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		result, err := Execute(context.Background(), task)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if err := result.Encode(os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func taskProcess(t *testing.T) ExecDispatcher {
	t.Helper()
	t.Setenv("HALM_TASK_PROCESS", "1")
	return ExecDispatcher{Command: os.Args[0]}
}

func TestExecDispatcher_RoundTrip(t *testing.T) {
	server := testutl.NewALMServer()
	url := server.Start(t).URL

	result, err := taskProcess(t).Dispatch(context.Background(), testTask(t, url))
	require.NoError(t, err)
	assert.Equal(t, "", result.ErrorText)

	// The child process really submitted to the server.
	submitted := server.LastSubmit()
	assert.Equal(t, "17", submitted.Number)
	assert.Equal(t, "nightly-build", submitted.JobName)
}

func TestExecDispatcher_ErrorTextTravelsBack(t *testing.T) {
	server := testutl.NewALMServer()
	server.SubmitError = "suite not found"
	url := server.Start(t).URL

	result, err := taskProcess(t).Dispatch(context.Background(), testTask(t, url))
	require.NoError(t, err)
	assert.Equal(t, "suite not found", result.ErrorText)
}

func TestExecDispatcher_ProcessFailure(t *testing.T) {
	server := testutl.NewALMServer()
	task := testTask(t, server.Start(t).URL)
	task.AuthType = "kerberos"

	_, err := taskProcess(t).Dispatch(context.Background(), task)
	assert.Error(t, err)
	require.Contains(t, err.Error(), "task process failed")
}
