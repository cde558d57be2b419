// Package certtrust decides whether a REST API server's TLS certificate
// chain can be trusted and manages the per-connection set of accepted
// certificates (trust on first use).
package certtrust

// Status classifies the outcome of one trust check. It is produced fresh on
// every check and never persisted; only accepted certificate bytes are.
type Status int

const (
	// StatusValid means the chain verified against system trust roots.
	StatusValid Status = iota
	// StatusTrusted means the chain matched certificates accepted previously.
	StatusTrusted
	// StatusInvalid means the chain is invalid and the server's certificates
	// could not be retrieved.
	StatusInvalid
	// StatusInvalidDownloadable means the chain is invalid under current trust
	// but the presented certificates were retrieved from the handshake.
	StatusInvalidDownloadable
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "VALID"
	case StatusTrusted:
		return "TRUSTED"
	case StatusInvalid:
		return "INVALID"
	case StatusInvalidDownloadable:
		return "INVALID_DOWNLOADABLE"
	}
	return "UNKNOWN"
}

// Decision is the transient result of one trust check. PEMCerts is only
// populated for StatusInvalidDownloadable, in handshake presentation order.
type Decision struct {
	Status   Status
	PEMCerts []string
}
