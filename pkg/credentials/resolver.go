// Package credentials resolves stored credential references into the
// user ID / secret pair the REST API authenticates with.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/halmci/halm-reporter/pkg/secretstore"
)

var (
	// ErrNotFound indicates the credential reference does not resolve to a stored credential.
	ErrNotFound = errors.New("credentials not found")
	// ErrMalformed indicates a secret-text credential without the required <id>:<secret> layout.
	ErrMalformed = errors.New("invalid credential format")
	// ErrUnsupportedShape indicates a stored credential of a kind this resolver does not recognize.
	ErrUnsupportedShape = errors.New("unsupported credential type")
)

// Kind discriminates the two recognized credential shapes.
type Kind string

const (
	// KindSecretText is a single opaque blob expected to contain "<id>:<secret>".
	KindSecretText Kind = "secretText"
	// KindUsernamePassword is a separate username and password pair.
	KindUsernamePassword Kind = "usernamePassword"
)

// Credential is the stored shape, serialized as JSON in the secret store.
// Exactly one shape's fields are populated depending on Kind.
type Credential struct {
	Kind     Kind   `json:"kind"`
	Secret   string `json:"secret,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// Details is a resolved credential, valid for the scope of one submission.
type Details struct {
	UserID string
	Secret string
}

// Resolver looks up credential references in a secret store. It never
// persists resolved credential content.
type Resolver struct {
	store   secretstore.Store
	service string
}

// NewResolver creates a Resolver backed by the given store under the
// default keyring service namespace.
func NewResolver(store secretstore.Store) *Resolver {
	return &Resolver{store: store, service: secretstore.DefaultService}
}

// Save stores a credential under the given reference.
func (r *Resolver) Save(ref string, cred Credential) error {
	switch cred.Kind {
	case KindSecretText, KindUsernamePassword:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedShape, cred.Kind)
	}
	raw, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	return r.store.Set(r.service, ref, string(raw))
}

// Delete removes a stored credential.
func (r *Resolver) Delete(ref string) error {
	return r.store.Delete(r.service, ref)
}

// Resolve turns a credential reference into a (user ID, secret) pair.
// Expected failures come back as wrapped ErrNotFound, ErrMalformed or
// ErrUnsupportedShape so callers can surface a reason without a stack trace.
func (r *Resolver) Resolve(ref string) (Details, error) {
	raw, err := r.store.Get(r.service, ref)
	if err != nil {
		if errors.Is(err, secretstore.ErrNotFound) {
			return Details{}, fmt.Errorf("could not find credentials with ID %s: %w", ref, ErrNotFound)
		}
		return Details{}, err
	}

	var cred Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		return Details{}, fmt.Errorf("%w: stored credential %s is not readable: %v", ErrMalformed, ref, err)
	}

	switch cred.Kind {
	case KindSecretText:
		parts := strings.SplitN(cred.Secret, ":", 2)
		if len(parts) != 2 {
			return Details{}, fmt.Errorf("%w: secret text credentials must have a user ID and "+
				"user secret separated by a ':' character", ErrMalformed)
		}
		return Details{UserID: parts[0], Secret: parts[1]}, nil
	case KindUsernamePassword:
		return Details{UserID: cred.Username, Secret: cred.Password}, nil
	default:
		return Details{}, fmt.Errorf("%w: credentials must be either 'Username with password' or 'Secret text'", ErrUnsupportedShape)
	}
}
