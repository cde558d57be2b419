package certtrust

import (
	"encoding/pem"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Store persists accepted certificate sets, one PEM file per connection,
// named by the connection's stable ID. Older releases keyed the file by an
// encoded form of the display name; those files are still read and are
// promoted to the ID-keyed name on first load. The legacy file is left in
// place so the migration stays idempotent.
type Store struct {
	root   string
	logger *slog.Logger
}

// NewStore creates a Store rooted at the given directory.
func NewStore(root string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{root: root, logger: logger}
}

// Save writes the accepted certificate set for a connection, replacing any
// previous set.
func (s *Store) Save(connID string, pemCerts []string) error {
	if err := os.MkdirAll(s.root, 0700); err != nil {
		return err
	}
	var b strings.Builder
	for _, cert := range pemCerts {
		b.WriteString(cert)
		if !strings.HasSuffix(cert, "\n") {
			b.WriteString("\n")
		}
	}
	return os.WriteFile(s.pathForID(connID), []byte(b.String()), 0600)
}

// Load reads the accepted certificate set for a connection. If no ID-keyed
// file exists it falls back to the deprecated name-keyed file and, when found,
// rewrites the contents under the ID-keyed name. A connection with no stored
// set yields a nil slice and no error.
func (s *Store) Load(connID, connName string) ([]string, error) {
	certs, err := readCertFile(s.pathForID(connID))
	if err != nil {
		return nil, err
	}
	if certs != nil {
		return certs, nil
	}

	legacyPath := filepath.Join(s.root, LegacyFileName(connName))
	certs, err = readCertFile(legacyPath)
	if err != nil || certs == nil {
		return nil, err
	}

	s.logger.Info("migrating stored certificates from name-keyed file",
		"connection", connName, "from", legacyPath, "to", s.pathForID(connID))
	if err := s.Save(connID, certs); err != nil {
		return nil, fmt.Errorf("failed to migrate certificate file %s: %w", legacyPath, err)
	}
	return certs, nil
}

// Delete removes the stored certificate set for a connection, if any.
func (s *Store) Delete(connID string) error {
	err := os.Remove(s.pathForID(connID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Store) pathForID(connID string) string {
	return filepath.Join(s.root, connID+".pem")
}

// LegacyFileName derives the deprecated storage file name from a connection's
// display name.
func LegacyFileName(connName string) string {
	encoded := url.QueryEscape(connName)
	encoded = strings.ReplaceAll(encoded, "+", "%20")
	encoded = strings.ReplaceAll(encoded, ".", "%2E")
	encoded = strings.ReplaceAll(encoded, "*", "%2A")
	return encoded + ".pem"
}

// readCertFile returns the PEM certificates in the file, one string per
// certificate, in file order. A missing file yields (nil, nil).
func readCertFile(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var certs []string
	rest := raw
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		certs = append(certs, string(pem.EncodeToMemory(block)))
	}
	if certs == nil {
		return nil, fmt.Errorf("contents of the certificate storage file at %s were not as expected", path)
	}
	return certs, nil
}
