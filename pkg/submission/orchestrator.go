package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/halmci/halm-reporter/pkg/almrest"
	"github.com/halmci/halm-reporter/pkg/certtrust"
	"github.com/halmci/halm-reporter/pkg/cihost"
	"github.com/halmci/halm-reporter/pkg/connections"
	"github.com/halmci/halm-reporter/pkg/credentials"
)

var (
	// ErrMissingField indicates a required setting was not configured.
	ErrMissingField = errors.New("required setting is missing")
	// ErrNoReportFiles indicates the file pattern matched nothing.
	ErrNoReportFiles = errors.New("no test result files were generated by the build")
	// ErrReportFileMissing indicates a matched file disappeared before it was read.
	ErrReportFileMissing = errors.New("a test result file was not found")
)

// ConnectionFinder resolves a connection name or ID.
type ConnectionFinder interface {
	Find(nameOrID string) (connections.Connection, error)
}

// Request holds the configured inputs of one publish operation.
type Request struct {
	Connection      string
	ProjectID       string
	SuiteID         int64
	SuiteName       string
	TestFilePattern string
	ReportFormat    string
	RunSetID        int64
	RunSetLabel     string
	Branch          string
	Description     string
	ExternalURL     string
}

// Orchestrator coordinates one publish: resolve the connection, enumerate
// report files, establish trust, authenticate, build the task, dispatch it
// and interpret the result.
type Orchestrator struct {
	Connections ConnectionFinder
	Credentials *credentials.Resolver
	Trust       *certtrust.Manager
	Dispatcher  Dispatcher
	Logger      *slog.Logger
}

// Run performs the publish for the given build. Publishing is auxiliary to
// the build itself: every failure is written to the build log and degrades
// the build to unstable rather than failing it. The failure is also returned
// for callers that want to inspect it.
func (o *Orchestrator) Run(ctx context.Context, build cihost.Build, ws cihost.Workspace, req Request) error {
	if err := o.run(ctx, build, ws, req); err != nil {
		build.Logf("An error occurred when submitting the build: %s", err)
		build.MarkUnstable()
		return err
	}
	return nil
}

func (o *Orchestrator) run(ctx context.Context, build cihost.Build, ws cihost.Workspace, req Request) error {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := validateRequest(req); err != nil {
		return err
	}

	conn, err := o.Connections.Find(req.Connection)
	if err != nil {
		if errors.Is(err, connections.ErrNotFound) {
			return fmt.Errorf("the selected connection no longer exists: %w", err)
		}
		return err
	}

	details, err := o.Credentials.Resolve(conn.CredentialRef)
	if err != nil {
		return err
	}

	// Enumerate report files before any network traffic: when there is
	// nothing to publish, the server is never contacted.
	paths, err := enumerateFiles(build, ws, req.TestFilePattern)
	if err != nil {
		return err
	}
	for _, path := range paths {
		build.Logf("Found result file at %s", path)
	}

	certs, err := o.Trust.EnsureTrusted(ctx, conn)
	if err != nil {
		return err
	}

	auth, err := authInfoFor(conn.AuthType, details.UserID, details.Secret)
	if err != nil {
		return err
	}
	client, err := almrest.Connect(conn.APIAddress, auth, certs)
	if err != nil {
		return err
	}
	token, err := client.GetAuthToken(ctx, req.ProjectID)
	if err != nil {
		return classifyAuthError(err)
	}

	cache := newLabelCache(client)
	suiteID := req.SuiteID
	if suiteID <= 0 {
		suiteID, err = cache.suiteIDByName(ctx, req.ProjectID, req.SuiteName)
		if err != nil {
			return err
		}
	}
	runSetLabel := req.RunSetLabel
	if req.RunSetID > 0 && runSetLabel == "" {
		runSetLabel, err = cache.runSetLabel(ctx, req.ProjectID, req.RunSetID)
		if err != nil {
			return err
		}
		if runSetLabel == "" {
			build.Logf("No test run set with ID %d was found in the project; submitting without a label.", req.RunSetID)
		}
	}

	task := buildTask(conn, details, certs, token, req, suiteID, runSetLabel, build, paths)

	build.Logf("Submitting build files to the Helix ALM connection %s...", conn.Name)
	logger.Info("dispatching submission task",
		"connection", conn.Name, "project", req.ProjectID, "suite", suiteID, "files", len(paths))

	result, err := o.Dispatcher.Dispatch(ctx, task)
	if err != nil {
		return fmt.Errorf("submitting the build failed: %w", err)
	}
	if result.ErrorText != "" {
		return errors.New(result.ErrorText)
	}

	build.Logf("Build files submitted successfully.")
	return nil
}

func validateRequest(req Request) error {
	if req.Connection == "" {
		return fmt.Errorf("%w: a connection must be selected", ErrMissingField)
	}
	if req.ProjectID == "" {
		return fmt.Errorf("%w: a project must be selected", ErrMissingField)
	}
	if req.SuiteID <= 0 && req.SuiteName == "" {
		return fmt.Errorf("%w: an automation suite must be selected", ErrMissingField)
	}
	if req.TestFilePattern == "" {
		return fmt.Errorf("%w: a test file pattern must be provided", ErrMissingField)
	}
	return nil
}

// enumerateFiles expands the configured pattern (environment references
// included) against the workspace. Zero matches, or a match that has already
// vanished, fails the whole submission; no subset is ever published.
func enumerateFiles(build cihost.Build, ws cihost.Workspace, pattern string) ([]string, error) {
	expanded := os.Expand(pattern, func(key string) string {
		return build.Env()[key]
	})
	paths, err := ws.List(expanded)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, ErrNoReportFiles
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrReportFileMissing, path)
		}
	}
	return paths, nil
}

func buildTask(conn connections.Connection, details credentials.Details, certs []string,
	token almrest.TokenAuth, req Request, suiteID int64, runSetLabel string,
	build cihost.Build, paths []string) Task {

	env := make(map[string]string, len(build.Env()))
	for k, v := range build.Env() {
		env[k] = v
	}

	// Sensitive parameters never leave the host.
	var params []Parameter
	for _, p := range build.Parameters() {
		if p.Sensitive {
			continue
		}
		params = append(params, Parameter{Name: p.Name, Text: p.Value})
	}

	externalURL := req.ExternalURL
	if externalURL == "" {
		externalURL = env["BUILD_URL"]
	}

	return Task{
		URL:          conn.APIAddress,
		AuthType:     string(conn.AuthType),
		UserID:       details.UserID,
		Secret:       details.Secret,
		PEMCerts:     append([]string(nil), certs...),
		TokenType:    token.TokenType,
		AccessToken:  token.AccessToken,
		ProjectID:    req.ProjectID,
		SuiteID:      strconv.FormatInt(suiteID, 10),
		ReportFormat: req.ReportFormat,
		ReportFiles:  append([]string(nil), paths...),
		BuildNumber:  strconv.Itoa(build.Number()),
		JobName:      build.JobName(),
		PendingRunID: build.PendingRunID(),
		Branch:       req.Branch,
		Description:  req.Description,
		ExternalURL:  externalURL,
		RunSetID:     req.RunSetID,
		RunSetLabel:  runSetLabel,
		Env:          env,
		Parameters:   params,
	}
}

func classifyAuthError(err error) error {
	var statusErr *almrest.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusInternalServerError:
			return fmt.Errorf("the specified credentials are invalid: %w", err)
		}
	}
	return err
}
