package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/halmci/halm-reporter/pkg/certtrust"
	"github.com/halmci/halm-reporter/pkg/connections"
	"github.com/halmci/halm-reporter/pkg/credentials"
	"github.com/halmci/halm-reporter/pkg/secretstore"
)

type cliCtx struct {
	context.Context
	Logger  *slog.Logger
	Secrets secretstore.Store

	Debug    bool
	StateDir string
}

type cli struct {
	Connection ConnectionCmd `cmd:"" help:"Manage Helix ALM connections"`
	Publish    PublishCmd    `cmd:"" help:"Publish build test results to Helix ALM"`
	ExecTask   ExecTaskCmd   `cmd:"" help:"Execute a serialized submission task from stdin" hidden:""`

	Debug    bool             `help:"Enable debug logging"`
	StateDir string           `help:"Directory holding connections and accepted certificates" env:"HALM_REPORTER_STATE_DIR"`
	Version  kong.VersionFlag `help:"Show version"`
}

func Execute(version string) {
	var cli cli
	ctx := kong.Parse(&cli,
		kong.UsageOnError(),
		kong.Name("halm-reporter"),
		kong.Description("halm-reporter publishes CI build test results to Helix ALM"),
		kong.Vars{"version": version},
	)

	level := slog.LevelInfo
	if cli.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	stateDir := cli.StateDir
	if stateDir == "" {
		base, err := os.UserConfigDir()
		ctx.FatalIfErrorf(err)
		stateDir = filepath.Join(base, "halm-reporter")
	}

	err := ctx.Run(&cliCtx{
		Context:  context.Background(),
		Logger:   logger,
		Secrets:  secretstore.NewKeyringStore(),
		Debug:    cli.Debug,
		StateDir: stateDir,
	})
	ctx.FatalIfErrorf(err)
}

// openDirectory opens the connection directory under the state directory,
// creating it on first use.
func openDirectory(ctx *cliCtx) (*connections.Directory, error) {
	if err := os.MkdirAll(ctx.StateDir, 0o700); err != nil {
		return nil, err
	}
	return connections.NewDirectory(filepath.Join(ctx.StateDir, "connections.db"))
}

func newResolver(ctx *cliCtx) *credentials.Resolver {
	return credentials.NewResolver(ctx.Secrets)
}

func certsDir(ctx *cliCtx) string {
	return filepath.Join(ctx.StateDir, "certs")
}

func newTrustManager(ctx *cliCtx) *certtrust.Manager {
	store := certtrust.NewStore(certsDir(ctx), ctx.Logger)
	return certtrust.NewManager(store, ctx.Logger)
}
