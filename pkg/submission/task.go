// Package submission builds and dispatches the self-contained unit of work
// that publishes one build's test results to the REST API.
package submission

import (
	"encoding/json"
	"io"
)

// Parameter is a non-sensitive build parameter carried by a task.
type Parameter struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// Task describes one publish operation. It is constructed once, carries only
// primitive values (no sockets, file handles or references to the host's live
// build objects) and may be serialized and executed in a different process or
// on a different machine than where it was built. All collections are copies
// owned by the task.
type Task struct {
	URL      string   `json:"url"`
	AuthType string   `json:"authType"`
	UserID   string   `json:"userId"`
	Secret   string   `json:"secret"`
	PEMCerts []string `json:"pemCerts,omitempty"`

	// Token issued during the pre-flight authentication; when present the
	// executor submits with it instead of re-sending the raw credentials.
	TokenType   string `json:"tokenType,omitempty"`
	AccessToken string `json:"accessToken,omitempty"`

	ProjectID string `json:"projectId"`
	SuiteID   string `json:"suiteId"`

	ReportFormat string   `json:"reportFormat"`
	ReportFiles  []string `json:"reportFiles"`

	BuildNumber  string `json:"buildNumber"`
	JobName      string `json:"jobName"`
	PendingRunID string `json:"pendingRunId,omitempty"`
	Branch       string `json:"branch,omitempty"`
	Description  string `json:"description,omitempty"`
	ExternalURL  string `json:"externalUrl,omitempty"`

	RunSetID    int64  `json:"runSetId,omitempty"`
	RunSetLabel string `json:"runSetLabel,omitempty"`

	Env        map[string]string `json:"env,omitempty"`
	Parameters []Parameter       `json:"parameters,omitempty"`
}

// Result is the outcome of executing a task. A non-empty ErrorText means the
// submission failed for a reason worth showing to the operator.
type Result struct {
	ErrorText string `json:"errorText,omitempty"`
}

// Encode writes the task as JSON.
func (t Task) Encode(w io.Writer) error {
	return json.NewEncoder(w).Encode(t)
}

// DecodeTask reads a JSON-encoded task.
func DecodeTask(r io.Reader) (Task, error) {
	var t Task
	err := json.NewDecoder(r).Decode(&t)
	return t, err
}

// Encode writes the result as JSON.
func (r Result) Encode(w io.Writer) error {
	return json.NewEncoder(w).Encode(r)
}

func decodeResult(rd io.Reader) (Result, error) {
	var r Result
	err := json.NewDecoder(rd).Decode(&r)
	return r, err
}
