package almrest_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/halmci/halm-reporter/pkg/almrest"
	"github.com/halmci/halm-reporter/testutl"
)

func TestClient_AgainstFakeServer(t *testing.T) {
	fake := testutl.NewALMServer()
	srv := fake.Start(t)

	client, err := almrest.Connect(srv.URL, almrest.BasicAuth{Username: "u", Password: "p"}, nil)
	assert.NoError(t, err)
	ctx := context.Background()

	t.Run("versions", func(t *testing.T) {
		info, err := client.GetVersions(ctx)
		assert.NoError(t, err)
		assert.Equal(t, "2023.1.0", info.RESTAPIServer)
		assert.NoError(t, almrest.CheckMinimumVersion(info))
	})

	t.Run("projects", func(t *testing.T) {
		projects, err := client.GetProjects(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 1, len(projects))
		assert.Equal(t, "p1", projects[0].UUID)
	})

	t.Run("auth token", func(t *testing.T) {
		token, err := client.GetAuthToken(ctx, "p1")
		assert.NoError(t, err)
		assert.Equal(t, "Bearer tok-p1", token.AuthorizationHeader())
	})

	t.Run("automation suites and run sets", func(t *testing.T) {
		suites, err := client.GetAutomationSuites(ctx, "p1")
		assert.NoError(t, err)
		assert.Equal(t, int64(7), suites[0].ID)

		items, err := client.GetRunSetMenu(ctx, "p1")
		assert.NoError(t, err)
		assert.Equal(t, "Sprint 12", items[0].Label)
	})

	t.Run("submit success", func(t *testing.T) {
		errText, err := client.SubmitBuild(ctx, "p1", "7", almrest.SubmitBuildRequest{Number: "42"})
		assert.NoError(t, err)
		assert.Equal(t, "", errText)
		assert.Equal(t, "42", fake.LastSubmit().Number)
	})

	t.Run("submit rejected by server", func(t *testing.T) {
		fake.SubmitError = "suite not found"
		defer func() { fake.SubmitError = "" }()

		errText, err := client.SubmitBuild(ctx, "p1", "7", almrest.SubmitBuildRequest{Number: "43"})
		assert.NoError(t, err)
		assert.Equal(t, "suite not found", errText)
	})

	t.Run("http error carries status code", func(t *testing.T) {
		fake.SubmitStatus = 403
		defer func() { fake.SubmitStatus = 0 }()

		_, err := client.SubmitBuild(ctx, "p1", "7", almrest.SubmitBuildRequest{Number: "44"})
		var statusErr *almrest.StatusError
		assert.True(t, errors.As(err, &statusErr))
		assert.Equal(t, 403, statusErr.StatusCode)
	})
}

func TestClient_MissingAuthIsUnauthorized(t *testing.T) {
	fake := testutl.NewALMServer()
	srv := fake.Start(t)

	client, err := almrest.Connect(srv.URL, nil, nil)
	assert.NoError(t, err)

	_, err = client.GetProjects(context.Background())
	var statusErr *almrest.StatusError
	assert.True(t, errors.As(err, &statusErr))
	assert.Equal(t, 401, statusErr.StatusCode)
}

func TestConnect_RejectsMalformedURL(t *testing.T) {
	_, err := almrest.Connect("not a url", nil, nil)
	assert.Error(t, err)

	_, err = almrest.Connect("ftp://alm.example", nil, nil)
	assert.Error(t, err)
}

func TestAuthHeaders(t *testing.T) {
	assert.Equal(t, "Basic dTpw", almrest.BasicAuth{Username: "u", Password: "p"}.AuthorizationHeader())
	assert.Equal(t, "APIKey aWQ6c2Vj", almrest.APIKeyAuth{ID: "id", Secret: "sec"}.AuthorizationHeader())
	assert.Equal(t, "Bearer abc", almrest.TokenAuth{TokenType: "Bearer", AccessToken: "abc"}.AuthorizationHeader())
}

func TestCheckMinimumVersion(t *testing.T) {
	ok := almrest.VersionInfo{RESTAPIServer: "2022.2.0", HelixALMServer: "2022.2.0"}
	assert.NoError(t, almrest.CheckMinimumVersion(ok))

	newer := almrest.VersionInfo{RESTAPIServer: "2024.1.0", HelixALMServer: "2024.1.0"}
	assert.NoError(t, almrest.CheckMinimumVersion(newer))

	debug := almrest.VersionInfo{RESTAPIServer: ".", HelixALMServer: "2022.2.0"}
	assert.NoError(t, almrest.CheckMinimumVersion(debug))

	old := almrest.VersionInfo{RESTAPIServer: "2021.1.0", HelixALMServer: "2022.2.0"}
	assert.Error(t, almrest.CheckMinimumVersion(old))

	down := almrest.VersionInfo{RESTAPIServer: "2022.2.0", HelixALMServer: "<unknown>"}
	assert.Error(t, almrest.CheckMinimumVersion(down))
}
