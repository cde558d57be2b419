// Package connections holds the named registry of Helix ALM REST API
// connection definitions.
package connections

import "strings"

// AuthType selects how resolved credentials are presented to the REST API.
type AuthType string

const (
	AuthTypeBasic  AuthType = "basic"
	AuthTypeAPIKey AuthType = "apiKey"
)

// Connection is a single REST API connection definition. The ID is generated
// once and never changes; the Name is chosen by an administrator and may be
// edited, so it is not guaranteed unique outside of save-time validation.
type Connection struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	APIAddress         string   `json:"apiAddress"`
	CredentialRef      string   `json:"credentialRef"`
	AuthType           AuthType `json:"authType"`
	AcceptInvalidCerts bool     `json:"acceptInvalidCerts"`
}

// IsHTTPS reports whether the connection's address requires TLS trust handling.
func (c Connection) IsHTTPS() bool {
	return strings.HasPrefix(c.APIAddress, "https://")
}
