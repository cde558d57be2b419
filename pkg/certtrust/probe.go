package certtrust

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"
)

const probeTimeout = 15 * time.Second

// Probe issues a lightweight TLS connection to the server behind rawURL using
// the previously accepted certificates plus system trust roots, and classifies
// the result. An error is returned only for transport failures (unreachable
// host, bad URL); certificate problems come back as a Decision.
func Probe(ctx context.Context, rawURL string, acceptedPEM []string) (Decision, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Decision{}, fmt.Errorf("invalid server address %q: %w", rawURL, err)
	}
	if u.Scheme != "https" {
		return Decision{Status: StatusValid}, nil
	}
	addr := u.Host
	if u.Port() == "" {
		addr = net.JoinHostPort(u.Hostname(), "443")
	}

	roots, accepted, err := buildTrustPool(acceptedPEM)
	if err != nil {
		return Decision{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	dialer := &tls.Dialer{Config: &tls.Config{RootCAs: roots}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err == nil {
		state := conn.(*tls.Conn).ConnectionState()
		conn.Close()
		if chainMatchesAccepted(state.PeerCertificates, accepted) {
			return Decision{Status: StatusTrusted}, nil
		}
		return Decision{Status: StatusValid}, nil
	}

	var verifyErr *tls.CertificateVerificationError
	if !errors.As(err, &verifyErr) {
		return Decision{}, fmt.Errorf("cannot connect to the REST API server at %s: %w", rawURL, err)
	}

	// The chain is invalid under current trust. Retrieve the presented
	// certificates directly from a second handshake so they can be offered
	// for acceptance.
	certs, err := fetchPresentedCerts(ctx, addr)
	if err != nil || len(certs) == 0 {
		return Decision{Status: StatusInvalid}, nil
	}
	return Decision{Status: StatusInvalidDownloadable, PEMCerts: certs}, nil
}

func buildTrustPool(acceptedPEM []string) (*x509.CertPool, []*x509.Certificate, error) {
	roots, err := x509.SystemCertPool()
	if err != nil {
		roots = x509.NewCertPool()
	}
	var accepted []*x509.Certificate
	for _, pemText := range acceptedPEM {
		if !roots.AppendCertsFromPEM([]byte(pemText)) {
			return nil, nil, fmt.Errorf("stored certificate is not valid PEM")
		}
		rest := []byte(pemText)
		for {
			var block *pem.Block
			block, rest = pem.Decode(rest)
			if block == nil {
				break
			}
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, nil, fmt.Errorf("stored certificate is not parseable: %w", err)
			}
			accepted = append(accepted, cert)
		}
	}
	return roots, accepted, nil
}

// chainMatchesAccepted reports whether the presented leaf is one of the
// certificates that was explicitly accepted earlier. A chain that merely
// verifies against system roots is VALID, not TRUSTED.
func chainMatchesAccepted(presented, accepted []*x509.Certificate) bool {
	if len(presented) == 0 || len(accepted) == 0 {
		return false
	}
	for _, cert := range accepted {
		if cert.Equal(presented[0]) {
			return true
		}
	}
	return false
}

func fetchPresentedCerts(ctx context.Context, addr string) ([]string, error) {
	dialer := &tls.Dialer{Config: &tls.Config{InsecureSkipVerify: true}} // #nosec G402 -- retrieval only, nothing is sent
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	certs := make([]string, 0, len(state.PeerCertificates))
	for _, cert := range state.PeerCertificates {
		block := &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw}
		certs = append(certs, string(pem.EncodeToMemory(block)))
	}
	return certs, nil
}
