package certtrust

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/halmci/halm-reporter/pkg/connections"
)

var (
	// ErrCertificateInvalid means the server certificate is invalid and could
	// not be retrieved for acceptance.
	ErrCertificateInvalid = errors.New("the SSL certificate used by the REST API server is invalid and cannot be used")
	// ErrCertificateRejected means the certificate could be accepted, but the
	// connection's policy does not allow accepting invalid certificates.
	ErrCertificateRejected = errors.New("the SSL certificate used by the REST API server is invalid; " +
		"to use it anyway, enable 'accept invalid certificates' on the connection and try again")
)

// probeFunc matches Probe; replaceable for tests.
type probeFunc func(ctx context.Context, rawURL string, acceptedPEM []string) (Decision, error)

// Manager combines the trust probe, the certificate store and the
// per-connection accept policy. Trust evaluation and persistence for one
// connection form a single critical section keyed by connection ID, so two
// concurrent submissions cannot interleave a download-and-persist.
type Manager struct {
	store  *Store
	probe  probeFunc
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a Manager over the given store.
func NewManager(store *Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  store,
		probe:  Probe,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (m *Manager) connLock(connID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[connID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[connID] = lock
	}
	return lock
}

// Check runs one trust check for the connection without changing any stored
// state. Accepted certificates are loaded (migrating legacy files as needed)
// and offered to the probe.
func (m *Manager) Check(ctx context.Context, conn connections.Connection) (Decision, error) {
	if !conn.IsHTTPS() {
		return Decision{Status: StatusValid}, nil
	}
	lock := m.connLock(conn.ID)
	lock.Lock()
	defer lock.Unlock()
	return m.check(ctx, conn)
}

func (m *Manager) check(ctx context.Context, conn connections.Connection) (Decision, error) {
	accepted, err := m.store.Load(conn.ID, conn.Name)
	if err != nil {
		return Decision{}, err
	}
	return m.probe(ctx, conn.APIAddress, accepted)
}

// EnsureTrusted returns the PEM certificates a client should pin for this
// connection, accepting and persisting the server's certificates first if the
// chain is invalid and the connection opts in. Trust is never silently
// assumed: an invalid chain without an opt-in fails.
func (m *Manager) EnsureTrusted(ctx context.Context, conn connections.Connection) ([]string, error) {
	if !conn.IsHTTPS() {
		return nil, nil
	}
	lock := m.connLock(conn.ID)
	lock.Lock()
	defer lock.Unlock()

	decision, err := m.check(ctx, conn)
	if err != nil {
		return nil, err
	}

	switch decision.Status {
	case StatusValid, StatusTrusted:
		return m.store.Load(conn.ID, conn.Name)
	case StatusInvalidDownloadable:
		if !conn.AcceptInvalidCerts {
			return nil, ErrCertificateRejected
		}
		if err := m.store.Save(conn.ID, decision.PEMCerts); err != nil {
			return nil, fmt.Errorf("failed to store accepted certificates: %w", err)
		}
		m.logger.Info("accepted server certificates for connection",
			"connection", conn.Name, "certs", len(decision.PEMCerts))
		return decision.PEMCerts, nil
	default:
		return nil, ErrCertificateInvalid
	}
}
