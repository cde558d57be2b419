package submission

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/halmci/halm-reporter/pkg/almrest"
	"github.com/halmci/halm-reporter/pkg/connections"
)

// Environment variables extracted into named build properties.
var propertyEnvVars = []string{"BUILD_TAG", "JOB_NAME", "NODE_NAME", "WORKSPACE", "JAVA_HOME"}

// SourceName identifies this reporter in submitted build metadata.
const SourceName = "Helix ALM CI Reporter"

// Execute performs the publish described by the task, wherever it was
// dispatched to. Exactly one submit attempt is made, or none. Failures the
// server or transport reports come back in Result.ErrorText; the returned
// error is reserved for defects in the task itself, such as a malformed URL.
func Execute(ctx context.Context, task Task) (Result, error) {
	auth, err := authInfoFor(connections.AuthType(task.AuthType), task.UserID, task.Secret)
	if err != nil {
		return Result{}, err
	}
	client, err := almrest.Connect(task.URL, auth, task.PEMCerts)
	if err != nil {
		return Result{}, err
	}
	if task.AccessToken != "" {
		client = client.WithAuth(almrest.TokenAuth{TokenType: task.TokenType, AccessToken: task.AccessToken})
	}

	files := make([]almrest.ReportFile, 0, len(task.ReportFiles))
	for _, path := range task.ReportFiles {
		content, err := os.ReadFile(path)
		if err != nil {
			return Result{ErrorText: fmt.Sprintf("a test result file was not found: %s", path)}, nil
		}
		files = append(files, almrest.ReportFile{Name: filepath.Base(path), Content: content})
	}

	params := make([]almrest.BuildParameter, 0, len(task.Parameters))
	for _, p := range task.Parameters {
		params = append(params, almrest.BuildParameter{Name: p.Name, Text: p.Text})
	}

	req := almrest.SubmitBuildRequest{
		Number:          task.BuildNumber,
		JobName:         task.JobName,
		PendingRunID:    task.PendingRunID,
		Branch:          task.Branch,
		Description:     task.Description,
		ExternalURL:     task.ExternalURL,
		SourceOverride:  SourceName,
		TestRunSetID:    task.RunSetID,
		TestRunSetLabel: task.RunSetLabel,
		ReportFormat:    task.ReportFormat,
		ReportFiles:     files,
		Properties:      buildProperties(task.Env),
		BuildParameters: params,
	}

	errText, err := client.SubmitBuild(ctx, task.ProjectID, task.SuiteID, req)
	if err != nil {
		return Result{ErrorText: err.Error()}, nil
	}
	return Result{ErrorText: errText}, nil
}

func authInfoFor(authType connections.AuthType, userID, secret string) (almrest.AuthInfo, error) {
	switch authType {
	case connections.AuthTypeAPIKey:
		return almrest.APIKeyAuth{ID: userID, Secret: secret}, nil
	case connections.AuthTypeBasic, "":
		return almrest.BasicAuth{Username: userID, Password: secret}, nil
	default:
		return nil, fmt.Errorf("the authentication type %q is invalid for the connection", authType)
	}
}

// buildProperties extracts a fixed allow list of environment variables into
// display-cased properties and attaches the full environment snapshot.
func buildProperties(env map[string]string) []almrest.NameValue {
	props := []almrest.NameValue{{Name: "os.type", Value: osName()}}
	for _, name := range propertyEnvVars {
		if value := env[name]; value != "" {
			props = append(props, almrest.NameValue{Name: displayCase(name), Value: value})
		}
	}
	props = append(props, almrest.NameValue{Name: "Environment Variables", Value: envDump(env)})
	return props
}

func osName() string {
	switch runtime.GOOS {
	case "darwin":
		return "Mac OS X"
	case "windows":
		return "Windows"
	default:
		return "Linux"
	}
}

// displayCase turns "BUILD_TAG" into "Build tag".
func displayCase(name string) string {
	s := strings.ReplaceAll(strings.ToLower(name), "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func envDump(env map[string]string) string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+env[k])
	}
	return strings.Join(lines, "\n")
}
