// Package almrest is the Helix ALM REST API client. The rest of the module
// treats its request and response shapes as opaque.
package almrest

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// RunSetMenuID identifies the test run set menu on the server.
const RunSetMenuID = "2147483637"

// MinimumAPIVersion is the oldest REST API server version the reporter supports.
var MinimumAPIVersion = []int{2022, 2, 0}

// StatusError is a non-2xx response from the REST API.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned HTTP status code %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server returned HTTP status code %d", e.StatusCode)
}

// Client is a connected REST API client. Create one with Connect.
type Client struct {
	baseURL *url.URL
	auth    AuthInfo
	http    *http.Client
}

// Connect builds a client for the REST API at rawURL. pemCerts extends the
// system trust roots with previously accepted certificates; the call does not
// touch the network.
func Connect(rawURL string, auth AuthInfo, pemCerts []string) (*Client, error) {
	baseURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REST API address %q: %w", rawURL, err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid REST API address %q: scheme must be http or https", rawURL)
	}

	roots, err := x509.SystemCertPool()
	if err != nil {
		roots = x509.NewCertPool()
	}
	for _, pemText := range pemCerts {
		if !roots.AppendCertsFromPEM([]byte(pemText)) {
			return nil, fmt.Errorf("accepted certificate for %s is not valid PEM", rawURL)
		}
	}

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: roots},
		},
	}
	return &Client{baseURL: baseURL, auth: auth, http: httpClient}, nil
}

// WithAuth returns a client for the same server using different credentials.
func (c *Client) WithAuth(auth AuthInfo) *Client {
	return &Client{baseURL: c.baseURL, auth: auth, http: c.http}
}

// GetVersions reports the server version information.
func (c *Client) GetVersions(ctx context.Context) (VersionInfo, error) {
	var out VersionInfo
	err := c.do(ctx, http.MethodGet, []string{"versions"}, nil, &out)
	return out, err
}

// GetAuthToken exchanges the client's credentials for a project-scoped token.
func (c *Client) GetAuthToken(ctx context.Context, projectID string) (TokenAuth, error) {
	var out tokenResponse
	if err := c.do(ctx, http.MethodGet, []string{projectID, "token"}, nil, &out); err != nil {
		return TokenAuth{}, err
	}
	tokenType := out.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return TokenAuth{TokenType: tokenType, AccessToken: out.AccessToken}, nil
}

// GetProjects lists the projects the authenticated user can access.
func (c *Client) GetProjects(ctx context.Context) ([]Project, error) {
	var out projectListResponse
	if err := c.do(ctx, http.MethodGet, []string{"projects"}, nil, &out); err != nil {
		return nil, err
	}
	return out.Projects, nil
}

// GetAutomationSuites lists the automation suites of a project.
func (c *Client) GetAutomationSuites(ctx context.Context, projectID string) ([]AutomationSuite, error) {
	var out suiteListResponse
	if err := c.do(ctx, http.MethodGet, []string{projectID, "automationSuites"}, nil, &out); err != nil {
		return nil, err
	}
	return out.Suites, nil
}

// GetRunSetMenu lists the entries of the project's test run set menu.
func (c *Client) GetRunSetMenu(ctx context.Context, projectID string) ([]MenuItem, error) {
	var out menuResponse
	if err := c.do(ctx, http.MethodGet, []string{projectID, "menus", RunSetMenuID}, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// SubmitBuild submits one automation build. A non-empty returned string is the
// server's error text for a submission the server rejected; err covers
// transport and HTTP failures.
func (c *Client) SubmitBuild(ctx context.Context, projectID string, suiteID string, req SubmitBuildRequest) (string, error) {
	var out submitBuildResponse
	path := []string{projectID, "automationSuites", suiteID, "builds"}
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return "", err
	}
	return out.ErrorMessage, nil
}

// CheckMinimumVersion verifies the REST API server is recent enough and that
// it can reach the Helix ALM server behind it. The debug server version "."
// skips the version gate.
func CheckMinimumVersion(info VersionInfo) error {
	if info.RESTAPIServer != "." {
		if err := compareVersions(MinimumAPIVersion, info.RESTAPIServer); err != nil {
			return err
		}
	}

	parts := strings.Split(info.HelixALMServer, ".")
	if info.HelixALMServer == "<unknown>" || len(parts) < 2 {
		return fmt.Errorf("connected to the REST API server, but it cannot connect to the Helix ALM server; " +
			"make sure the Helix ALM server is running and the REST API server is configured to connect to it")
	}
	return nil
}

func compareVersions(minimum []int, version string) error {
	parts := strings.Split(version, ".")
	if len(parts) < len(minimum) {
		return nil
	}
	for i, minPart := range minimum {
		cur, err := strconv.Atoi(parts[i])
		if err != nil {
			return fmt.Errorf("could not determine the REST API server version: %w", err)
		}
		if cur > minPart {
			return nil
		}
		if cur < minPart {
			minText := make([]string, len(minimum))
			for j, v := range minimum {
				minText[j] = strconv.Itoa(v)
			}
			return fmt.Errorf("the REST API server version is not supported; version %s or later is required",
				strings.Join(minText, "."))
		}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method string, path []string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path...).String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.auth != nil {
		req.Header.Set("Authorization", c.auth.AuthorizationHeader())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
