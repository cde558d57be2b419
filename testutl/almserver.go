// Package testutl provides an in-process fake Helix ALM REST API server for tests.
package testutl

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/halmci/halm-reporter/pkg/almrest"
)

// ALMServer is a configurable fake REST API server. Zero values give a
// healthy server with one project and one automation suite.
type ALMServer struct {
	Versions almrest.VersionInfo
	Projects []almrest.Project
	Suites   map[string][]almrest.AutomationSuite
	RunSets  map[string][]almrest.MenuItem

	// SubmitError is returned as the errorMessage of submit responses.
	SubmitError string
	// SubmitStatus, when non-zero, is the HTTP status for submit responses.
	SubmitStatus int

	mu       sync.Mutex
	requests []string
	lastBody almrest.SubmitBuildRequest
	lastAuth string
}

// NewALMServer creates a fake server with one project "p1" and suite 7.
func NewALMServer() *ALMServer {
	return &ALMServer{
		Versions: almrest.VersionInfo{RESTAPIServer: "2023.1.0", HelixALMServer: "2023.1.0"},
		Projects: []almrest.Project{{UUID: "p1", Name: "Project One"}},
		Suites: map[string][]almrest.AutomationSuite{
			"p1": {{ID: 7, Name: "Nightly"}},
		},
		RunSets: map[string][]almrest.MenuItem{
			"p1": {{ID: 3, Label: "Sprint 12"}},
		},
	}
}

// Start runs the fake server over plain HTTP.
func (s *ALMServer) Start(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(s.handler())
	t.Cleanup(srv.Close)
	return srv
}

// StartTLS runs the fake server with httptest's self-signed certificate, so
// clients see an untrusted chain until they accept it.
func (s *ALMServer) StartTLS(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewTLSServer(s.handler())
	t.Cleanup(srv.Close)
	return srv
}

// RequestCount reports how many API requests the server has seen.
func (s *ALMServer) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns the "METHOD /path" log of all requests seen.
func (s *ALMServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// LastSubmit returns the body of the most recent build submission.
func (s *ALMServer) LastSubmit() almrest.SubmitBuildRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastBody
}

// LastSubmitAuth returns the Authorization header of the most recent build
// submission.
func (s *ALMServer) LastSubmitAuth() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuth
}

func (s *ALMServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()

		if r.Header.Get("Authorization") == "" {
			http.Error(w, "missing credentials", http.StatusUnauthorized)
			return
		}

		segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		switch {
		case len(segments) == 1 && segments[0] == "versions":
			writeJSON(w, s.Versions)
		case len(segments) == 1 && segments[0] == "projects":
			writeJSON(w, map[string]any{"projects": s.Projects})
		case len(segments) == 2 && segments[1] == "token":
			writeJSON(w, map[string]string{"tokenType": "Bearer", "accessToken": "tok-" + segments[0]})
		case len(segments) == 2 && segments[1] == "automationSuites":
			writeJSON(w, map[string]any{"automationSuites": s.Suites[segments[0]]})
		case len(segments) == 3 && segments[1] == "menus":
			writeJSON(w, map[string]any{"items": s.RunSets[segments[0]]})
		case len(segments) == 4 && segments[1] == "automationSuites" && segments[3] == "builds" && r.Method == http.MethodPost:
			var body almrest.SubmitBuildRequest
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			s.mu.Lock()
			s.lastBody = body
			s.lastAuth = r.Header.Get("Authorization")
			s.mu.Unlock()
			if s.SubmitStatus != 0 {
				http.Error(w, "submission rejected", s.SubmitStatus)
				return
			}
			writeJSON(w, map[string]string{"errorMessage": s.SubmitError})
		default:
			http.NotFound(w, r)
		}
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
