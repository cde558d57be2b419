package almrest

// Project is a Helix ALM project visible to the authenticated user.
type Project struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// AutomationSuite groups submitted builds on the server side.
type AutomationSuite struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// MenuItem is one entry of a server-side menu, such as the test run set menu.
type MenuItem struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// VersionInfo reports the versions of the REST API server and the Helix ALM
// server behind it.
type VersionInfo struct {
	RESTAPIServer  string `json:"restAPIServer"`
	HelixALMServer string `json:"helixALMServer"`
}

// NameValue is a displayable build property.
type NameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ReportFile is one test result file, content included, as submitted.
type ReportFile struct {
	Name    string `json:"name"`
	Content []byte `json:"content"`
}

// BuildParameter is a non-sensitive CI build parameter.
type BuildParameter struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// SubmitBuildRequest carries everything the server needs to record one
// automation build and its test results.
type SubmitBuildRequest struct {
	Number          string           `json:"number"`
	JobName         string           `json:"jobName"`
	PendingRunID    string           `json:"pendingRunId,omitempty"`
	Branch          string           `json:"branch,omitempty"`
	Description     string           `json:"description,omitempty"`
	ExternalURL     string           `json:"externalUrl,omitempty"`
	SourceOverride  string           `json:"sourceOverride,omitempty"`
	TestRunSetID    int64            `json:"testRunSetId,omitempty"`
	TestRunSetLabel string           `json:"testRunSetLabel,omitempty"`
	ReportFormat    string           `json:"reportFormat"`
	ReportFiles     []ReportFile     `json:"reportFiles"`
	Properties      []NameValue      `json:"properties,omitempty"`
	BuildParameters []BuildParameter `json:"buildParameters,omitempty"`
}

type projectListResponse struct {
	Projects []Project `json:"projects"`
}

type suiteListResponse struct {
	Suites []AutomationSuite `json:"automationSuites"`
}

type menuResponse struct {
	Items []MenuItem `json:"items"`
}

type tokenResponse struct {
	TokenType   string `json:"tokenType"`
	AccessToken string `json:"accessToken"`
}

type submitBuildResponse struct {
	ErrorMessage string `json:"errorMessage"`
}
