package certtrust

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/halmci/halm-reporter/pkg/connections"
)

func testConn(accept bool) connections.Connection {
	return connections.Connection{
		ID:                 "c1",
		Name:               "Test ALM",
		APIAddress:         "https://alm.example:8443",
		CredentialRef:      "cred",
		AcceptInvalidCerts: accept,
	}
}

func TestEnsureTrusted_PlainHTTPSkipsTrust(t *testing.T) {
	m := NewManager(NewStore(t.TempDir(), nil), nil)
	conn := testConn(false)
	conn.APIAddress = "http://alm.example:8080"

	certs, err := m.EnsureTrusted(context.Background(), conn)
	assert.NoError(t, err)
	assert.Zero(t, certs)
}

func TestEnsureTrusted_InvalidNeverPersists(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	m := NewManager(store, nil)
	m.probe = func(ctx context.Context, rawURL string, accepted []string) (Decision, error) {
		return Decision{Status: StatusInvalid}, nil
	}

	_, err := m.EnsureTrusted(context.Background(), testConn(true))
	assert.IsError(t, err, ErrCertificateInvalid)

	saved, err := store.Load("c1", "Test ALM")
	assert.NoError(t, err)
	assert.Zero(t, saved)
}

func TestEnsureTrusted_DownloadableRespectsPolicy(t *testing.T) {
	cert := fakePEMCert(t, "server cert")

	t.Run("policy off reports rejection", func(t *testing.T) {
		store := NewStore(t.TempDir(), nil)
		m := NewManager(store, nil)
		m.probe = func(ctx context.Context, rawURL string, accepted []string) (Decision, error) {
			return Decision{Status: StatusInvalidDownloadable, PEMCerts: []string{cert}}, nil
		}

		_, err := m.EnsureTrusted(context.Background(), testConn(false))
		assert.IsError(t, err, ErrCertificateRejected)

		saved, err := store.Load("c1", "Test ALM")
		assert.NoError(t, err)
		assert.Zero(t, saved)
	})

	t.Run("policy on persists and trusts", func(t *testing.T) {
		store := NewStore(t.TempDir(), nil)
		m := NewManager(store, nil)
		m.probe = func(ctx context.Context, rawURL string, accepted []string) (Decision, error) {
			if len(accepted) > 0 {
				return Decision{Status: StatusTrusted}, nil
			}
			return Decision{Status: StatusInvalidDownloadable, PEMCerts: []string{cert}}, nil
		}

		certs, err := m.EnsureTrusted(context.Background(), testConn(true))
		assert.NoError(t, err)
		assert.Equal(t, []string{cert}, certs)

		// Second check sees the persisted set and comes back trusted.
		decision, err := m.Check(context.Background(), testConn(true))
		assert.NoError(t, err)
		assert.Equal(t, StatusTrusted, decision.Status)
	})
}

func TestEnsureTrusted_ConcurrentAcceptsDoNotRace(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	m := NewManager(store, nil)
	cert := fakePEMCert(t, "server cert")
	m.probe = func(ctx context.Context, rawURL string, accepted []string) (Decision, error) {
		if len(accepted) > 0 {
			return Decision{Status: StatusTrusted}, nil
		}
		return Decision{Status: StatusInvalidDownloadable, PEMCerts: []string{cert}}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			certs, err := m.EnsureTrusted(context.Background(), testConn(true))
			assert.NoError(t, err)
			assert.Equal(t, []string{cert}, certs)
		}()
	}
	wg.Wait()

	saved, err := store.Load("c1", "Test ALM")
	assert.NoError(t, err)
	assert.Equal(t, []string{cert}, saved)
}

// Exercises the real probe against a server whose certificate no system root
// vouches for.
func TestTrustOnFirstUse_EndToEnd(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := NewStore(t.TempDir(), nil)
	m := NewManager(store, nil)
	conn := connections.Connection{
		ID:            "e2e",
		Name:          "Self Signed",
		APIAddress:    srv.URL,
		CredentialRef: "cred",
	}

	t.Run("first check is invalid but downloadable", func(t *testing.T) {
		decision, err := m.Check(context.Background(), conn)
		assert.NoError(t, err)
		assert.Equal(t, StatusInvalidDownloadable, decision.Status)
		assert.True(t, len(decision.PEMCerts) > 0)
	})

	t.Run("policy off refuses to submit", func(t *testing.T) {
		_, err := m.EnsureTrusted(context.Background(), conn)
		assert.IsError(t, err, ErrCertificateRejected)
	})

	t.Run("policy on accepts, then trusts", func(t *testing.T) {
		conn.AcceptInvalidCerts = true
		certs, err := m.EnsureTrusted(context.Background(), conn)
		assert.NoError(t, err)
		assert.True(t, len(certs) > 0)

		decision, err := m.Check(context.Background(), conn)
		assert.NoError(t, err)
		assert.Equal(t, StatusTrusted, decision.Status)
	})
}
