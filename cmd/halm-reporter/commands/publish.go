package commands

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/halmci/halm-reporter/pkg/cihost"
	"github.com/halmci/halm-reporter/pkg/submission"
	"github.com/joho/godotenv"
)

type PublishCmd struct {
	Connection string `required:"" help:"Connection name or ID"`
	Project    string `required:"" help:"Helix ALM project UUID"`
	Suite      int64  `help:"Automation suite ID" xor:"suite"`
	SuiteName  string `help:"Automation suite name, resolved on the server" xor:"suite"`
	Pattern    string `required:"" help:"Glob pattern matching the test result files"`
	Format     string `help:"Report file format" default:"junit"`

	RunSet      int64  `help:"Test run set menu item ID"`
	Branch      string `help:"Branch the build was produced from"`
	Description string `help:"Build description"`
	ExternalURL string `help:"Link back to the build page"`

	BuildNumber  int    `help:"CI build number" env:"BUILD_NUMBER"`
	JobName      string `help:"CI job name" env:"JOB_NAME"`
	PendingRunID string `help:"Pending manual run to attach the build to"`
	Workspace    string `help:"Workspace directory the pattern is resolved against" default:"."`

	ParamsFile string   `help:"dotenv file of build parameters to attach"`
	Sensitive  []string `help:"Parameter names that must never be transmitted"`

	Fork bool `help:"Execute the submission in a separate process"`
}

func (c *PublishCmd) Run(ctx *cliCtx) error {
	dir, err := openDirectory(ctx)
	if err != nil {
		return err
	}
	defer dir.Close()

	build, err := c.localBuild()
	if err != nil {
		return err
	}

	var dispatcher submission.Dispatcher = submission.LocalDispatcher{}
	if c.Fork {
		self, err := os.Executable()
		if err != nil {
			return err
		}
		dispatcher = submission.ExecDispatcher{Command: self, Args: []string{"exec-task"}}
	}

	orch := &submission.Orchestrator{
		Connections: dir,
		Credentials: newResolver(ctx),
		Trust:       newTrustManager(ctx),
		Dispatcher:  dispatcher,
		Logger:      ctx.Logger,
	}

	err = orch.Run(ctx, build, cihost.DirWorkspace{Root: c.Workspace}, submission.Request{
		Connection:      c.Connection,
		ProjectID:       c.Project,
		SuiteID:         c.Suite,
		SuiteName:       c.SuiteName,
		TestFilePattern: c.Pattern,
		ReportFormat:    c.Format,
		RunSetID:        c.RunSet,
		Branch:          c.Branch,
		Description:     c.Description,
		ExternalURL:     c.ExternalURL,
	})
	if err != nil {
		return err
	}
	if build.Unstable {
		return fmt.Errorf("the submission left the build unstable")
	}
	return nil
}

// localBuild snapshots the process environment and the optional parameters
// file into a build the orchestrator can publish.
func (c *PublishCmd) localBuild() (*cihost.LocalBuild, error) {
	env := map[string]string{}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}

	var params []cihost.Parameter
	if c.ParamsFile != "" {
		values, err := godotenv.Read(c.ParamsFile)
		if err != nil {
			return nil, fmt.Errorf("reading the parameters file failed: %w", err)
		}
		for name, value := range values {
			params = append(params, cihost.Parameter{
				Name:      name,
				Value:     value,
				Sensitive: slices.Contains(c.Sensitive, name),
			})
		}
		slices.SortFunc(params, func(a, b cihost.Parameter) int {
			return strings.Compare(a.Name, b.Name)
		})
	}

	return &cihost.LocalBuild{
		BuildNumber: c.BuildNumber,
		Job:         c.JobName,
		RunID:       c.PendingRunID,
		Environment: env,
		Params:      params,
		Out:         os.Stdout,
	}, nil
}
