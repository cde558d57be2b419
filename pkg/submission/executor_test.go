package submission

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/halmci/halm-reporter/testutl"
	"github.com/stretchr/testify/require"
)

func testTask(t *testing.T, apiURL string) Task {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "results.xml")
	require.NoError(t, os.WriteFile(path, []byte(`<testsuite/>`), 0600))

	return Task{
		URL:          apiURL,
		AuthType:     "basic",
		UserID:       "reporter",
		Secret:       "hunter2",
		ProjectID:    "p1",
		SuiteID:      "7",
		ReportFormat: "junit",
		ReportFiles:  []string{path},
		BuildNumber:  "17",
		JobName:      "nightly-build",
		Env:          map[string]string{"JOB_NAME": "nightly-build", "HOME": "/home/ci"},
		Parameters:   []Parameter{{Name: "TARGET", Text: "linux"}},
	}
}

func TestExecute_Success(t *testing.T) {
	server := testutl.NewALMServer()
	url := server.Start(t).URL

	result, err := Execute(context.Background(), testTask(t, url))
	assert.NoError(t, err)
	assert.Equal(t, "", result.ErrorText)

	submitted := server.LastSubmit()
	assert.Equal(t, "17", submitted.Number)
	assert.Equal(t, SourceName, submitted.SourceOverride)
	require.Equal(t, 1, len(submitted.ReportFiles))
	assert.Equal(t, "results.xml", submitted.ReportFiles[0].Name)
	assert.Equal(t, []byte(`<testsuite/>`), submitted.ReportFiles[0].Content)
}

func TestExecute_UsesIssuedToken(t *testing.T) {
	server := testutl.NewALMServer()
	url := server.Start(t).URL

	task := testTask(t, url)
	task.TokenType = "Bearer"
	task.AccessToken = "tok-abc"

	result, err := Execute(context.Background(), task)
	assert.NoError(t, err)
	assert.Equal(t, "", result.ErrorText)
	assert.Equal(t, "Bearer tok-abc", server.LastSubmitAuth())
}

func TestExecute_ServerReportedError(t *testing.T) {
	server := testutl.NewALMServer()
	server.SubmitError = "suite not found"
	url := server.Start(t).URL

	result, err := Execute(context.Background(), testTask(t, url))
	assert.NoError(t, err)
	assert.Equal(t, "suite not found", result.ErrorText)
}

func TestExecute_TransportErrorInResult(t *testing.T) {
	server := testutl.NewALMServer()
	server.SubmitStatus = 500
	url := server.Start(t).URL

	result, err := Execute(context.Background(), testTask(t, url))
	assert.NoError(t, err)
	assert.NotEqual(t, "", result.ErrorText)
}

func TestExecute_VanishedReportFile(t *testing.T) {
	server := testutl.NewALMServer()
	url := server.Start(t).URL

	task := testTask(t, url)
	task.ReportFiles = []string{filepath.Join(t.TempDir(), "gone.xml")}

	result, err := Execute(context.Background(), task)
	assert.NoError(t, err)
	require.Contains(t, result.ErrorText, "a test result file was not found")
}

func TestExecute_MalformedURLIsDefect(t *testing.T) {
	task := testTask(t, "ftp://alm.example.com")
	_, err := Execute(context.Background(), task)
	assert.Error(t, err)
}

func TestExecute_InvalidAuthTypeIsDefect(t *testing.T) {
	server := testutl.NewALMServer()
	task := testTask(t, server.Start(t).URL)
	task.AuthType = "kerberos"
	_, err := Execute(context.Background(), task)
	assert.Error(t, err)
}

func TestTask_RoundTrip(t *testing.T) {
	task := Task{
		URL:         "https://alm.example.com/api",
		AuthType:    "apiKey",
		UserID:      "id",
		Secret:      "sec",
		PEMCerts:    []string{"-----BEGIN CERTIFICATE-----\nAA==\n-----END CERTIFICATE-----\n"},
		TokenType:   "Bearer",
		AccessToken: "tok-abc",
		ProjectID:   "p1",
		SuiteID:     "7",
		ReportFiles: []string{"/ws/a.xml"},
		BuildNumber: "9",
		JobName:     "job",
		RunSetID:    3,
		Env:         map[string]string{"WORKSPACE": "/ws"},
		Parameters:  []Parameter{{Name: "TARGET", Text: "linux"}},
	}

	var buf bytes.Buffer
	require.NoError(t, task.Encode(&buf))
	decoded, err := DecodeTask(&buf)
	require.NoError(t, err)
	assert.Equal(t, task, decoded)
}

func TestDisplayCase(t *testing.T) {
	assert.Equal(t, "Build tag", displayCase("BUILD_TAG"))
	assert.Equal(t, "Java home", displayCase("JAVA_HOME"))
	assert.Equal(t, "Workspace", displayCase("WORKSPACE"))
}

func TestBuildProperties(t *testing.T) {
	props := buildProperties(map[string]string{
		"BUILD_TAG": "jenkins-job-4",
		"HOME":      "/home/ci",
	})

	byName := map[string]string{}
	for _, p := range props {
		byName[p.Name] = p.Value
	}
	assert.Equal(t, "jenkins-job-4", byName["Build tag"])
	require.Contains(t, byName["Environment Variables"], "BUILD_TAG=jenkins-job-4")
	require.Contains(t, byName["Environment Variables"], "HOME=/home/ci")
	// Variables outside the allow list only appear in the full dump.
	_, ok := byName["Home"]
	assert.False(t, ok)
}
