package commands

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/halmci/halm-reporter/pkg/almrest"
	"github.com/halmci/halm-reporter/pkg/certtrust"
	"github.com/halmci/halm-reporter/pkg/connections"
	"github.com/halmci/halm-reporter/pkg/credentials"
)

type ConnectionCmd struct {
	Add    ConnectionAddCmd    `cmd:"" help:"Add a Helix ALM connection"`
	List   ConnectionListCmd   `cmd:"" help:"List configured connections"`
	Remove ConnectionRemoveCmd `cmd:"" help:"Remove a connection and its stored secrets"`
	Test   ConnectionTestCmd   `cmd:"" help:"Verify a connection end to end"`
}

type ConnectionAddCmd struct {
	Name string `arg:"" help:"Connection name"`
	URL  string `required:"" help:"Helix ALM REST API address"`

	AuthType   string `help:"Authentication type" enum:"basic,apiKey" default:"basic"`
	SecretText string `help:"Credential as a single 'id:secret' value" xor:"cred"`
	Username   string `help:"Username for the REST API" xor:"cred"`
	Password   string `help:"Password for the REST API"`

	AcceptInvalidCerts bool `help:"Accept certificates the system does not trust"`
}

func (c *ConnectionAddCmd) Run(ctx *cliCtx) error {
	cred, err := c.credential()
	if err != nil {
		return err
	}

	dir, err := openDirectory(ctx)
	if err != nil {
		return err
	}
	defer dir.Close()

	ref := uuid.NewString()
	resolver := newResolver(ctx)
	if err := resolver.Save(ref, cred); err != nil {
		return fmt.Errorf("storing the credential failed: %w", err)
	}

	conn := connections.Connection{
		Name:               c.Name,
		APIAddress:         c.URL,
		CredentialRef:      ref,
		AuthType:           connections.AuthType(c.AuthType),
		AcceptInvalidCerts: c.AcceptInvalidCerts,
	}
	if err := dir.Save(&conn); err != nil {
		// Don't leave an orphaned secret behind.
		_ = resolver.Delete(ref)
		return err
	}

	ctx.Logger.Info("connection added", "id", conn.ID, "name", conn.Name)
	fmt.Printf("Added connection %s (%s)\n", conn.Name, conn.ID)
	return nil
}

func (c *ConnectionAddCmd) credential() (credentials.Credential, error) {
	switch {
	case c.SecretText != "":
		if !strings.Contains(c.SecretText, ":") {
			return credentials.Credential{}, fmt.Errorf("--secret-text must be of the form 'id:secret'")
		}
		return credentials.Credential{Kind: credentials.KindSecretText, Secret: c.SecretText}, nil
	case c.Username != "":
		return credentials.Credential{
			Kind:     credentials.KindUsernamePassword,
			Username: c.Username,
			Password: c.Password,
		}, nil
	default:
		return credentials.Credential{}, fmt.Errorf("either --secret-text or --username/--password is required")
	}
}

type ConnectionListCmd struct{}

func (c *ConnectionListCmd) Run(ctx *cliCtx) error {
	dir, err := openDirectory(ctx)
	if err != nil {
		return err
	}
	defer dir.Close()

	conns, err := dir.List()
	if err != nil {
		return err
	}
	if len(conns) == 0 {
		fmt.Println("No connections configured.")
		return nil
	}
	for _, conn := range conns {
		fmt.Printf("%s\t%s\t%s\t%s\n", conn.ID, conn.Name, conn.APIAddress, conn.AuthType)
	}
	return nil
}

type ConnectionRemoveCmd struct {
	Connection string `arg:"" help:"Connection name or ID"`
}

func (c *ConnectionRemoveCmd) Run(ctx *cliCtx) error {
	dir, err := openDirectory(ctx)
	if err != nil {
		return err
	}
	defer dir.Close()

	conn, err := dir.Find(c.Connection)
	if err != nil {
		return err
	}

	if err := dir.Delete(conn.ID); err != nil {
		return err
	}
	if err := newResolver(ctx).Delete(conn.CredentialRef); err != nil {
		ctx.Logger.Warn("stored credential could not be removed", "ref", conn.CredentialRef, "error", err)
	}
	store := certtrust.NewStore(certsDir(ctx), ctx.Logger)
	if err := store.Delete(conn.ID); err != nil {
		ctx.Logger.Warn("accepted certificates could not be removed", "connection", conn.ID, "error", err)
	}

	fmt.Printf("Removed connection %s\n", conn.Name)
	return nil
}

type ConnectionTestCmd struct {
	Connection string `arg:"" help:"Connection name or ID"`
}

// Run verifies the whole chain: stored credential, certificate trust, server
// version and project visibility.
func (c *ConnectionTestCmd) Run(ctx *cliCtx) error {
	dir, err := openDirectory(ctx)
	if err != nil {
		return err
	}
	defer dir.Close()

	conn, err := dir.Find(c.Connection)
	if err != nil {
		return err
	}
	details, err := newResolver(ctx).Resolve(conn.CredentialRef)
	if err != nil {
		return fmt.Errorf("resolving the stored credential failed: %w", err)
	}

	trust := newTrustManager(ctx)
	decision, err := trust.Check(ctx, conn)
	if err != nil {
		return err
	}
	fmt.Printf("Certificate status: %s\n", decision.Status)
	certs, err := trust.EnsureTrusted(ctx, conn)
	if err != nil {
		return err
	}

	auth, err := authInfo(conn.AuthType, details)
	if err != nil {
		return err
	}
	client, err := almrest.Connect(conn.APIAddress, auth, certs)
	if err != nil {
		return err
	}

	versions, err := client.GetVersions(ctx)
	if err != nil {
		return fmt.Errorf("the REST API could not be reached: %w", err)
	}
	if err := almrest.CheckMinimumVersion(versions); err != nil {
		return err
	}
	fmt.Printf("REST API server: %s\nHelix ALM server: %s\n", versions.RESTAPIServer, versions.HelixALMServer)

	projects, err := client.GetProjects(ctx)
	if err != nil {
		return fmt.Errorf("the specified credentials are invalid: %w", err)
	}
	fmt.Printf("Connection successful, %d project(s) visible.\n", len(projects))
	return nil
}

func authInfo(authType connections.AuthType, details credentials.Details) (almrest.AuthInfo, error) {
	switch authType {
	case connections.AuthTypeAPIKey:
		return almrest.APIKeyAuth{ID: details.UserID, Secret: details.Secret}, nil
	case connections.AuthTypeBasic, "":
		return almrest.BasicAuth{Username: details.UserID, Password: details.Secret}, nil
	default:
		return nil, fmt.Errorf("the authentication type %q is invalid for the connection", authType)
	}
}
