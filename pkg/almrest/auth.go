package almrest

import "encoding/base64"

// AuthInfo renders credentials into an Authorization header value.
type AuthInfo interface {
	AuthorizationHeader() string
}

// BasicAuth authenticates with a username and password.
type BasicAuth struct {
	Username string
	Password string
}

func (a BasicAuth) AuthorizationHeader() string {
	token := base64.StdEncoding.EncodeToString([]byte(a.Username + ":" + a.Password))
	return "Basic " + token
}

// APIKeyAuth authenticates with an API key ID and secret.
type APIKeyAuth struct {
	ID     string
	Secret string
}

func (a APIKeyAuth) AuthorizationHeader() string {
	token := base64.StdEncoding.EncodeToString([]byte(a.ID + ":" + a.Secret))
	return "APIKey " + token
}

// TokenAuth authenticates with a token previously issued by the server.
type TokenAuth struct {
	TokenType   string
	AccessToken string
}

func (a TokenAuth) AuthorizationHeader() string {
	return a.TokenType + " " + a.AccessToken
}
