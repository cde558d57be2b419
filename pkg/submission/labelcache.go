package submission

import (
	"context"
	"fmt"

	"github.com/halmci/halm-reporter/pkg/almrest"
)

// labelCache is a lookup cache for suite and run set labels, scoped to one
// orchestrator invocation. It reloads whenever the project changes; it is
// never shared across invocations.
type labelCache struct {
	client    *almrest.Client
	projectID string
	loaded    bool
	suites    []almrest.AutomationSuite
	runSets   []almrest.MenuItem
}

func newLabelCache(client *almrest.Client) *labelCache {
	return &labelCache{client: client}
}

func (c *labelCache) ensure(ctx context.Context, projectID string) error {
	if c.loaded && c.projectID == projectID {
		return nil
	}
	suites, err := c.client.GetAutomationSuites(ctx, projectID)
	if err != nil {
		return err
	}
	runSets, err := c.client.GetRunSetMenu(ctx, projectID)
	if err != nil {
		return err
	}
	c.projectID = projectID
	c.suites = suites
	c.runSets = runSets
	c.loaded = true
	return nil
}

func (c *labelCache) suiteIDByName(ctx context.Context, projectID, name string) (int64, error) {
	if err := c.ensure(ctx, projectID); err != nil {
		return 0, err
	}
	for _, suite := range c.suites {
		if suite.Name == name {
			return suite.ID, nil
		}
	}
	return 0, fmt.Errorf("no automation suite named %q exists in the project", name)
}

func (c *labelCache) runSetLabel(ctx context.Context, projectID string, id int64) (string, error) {
	if err := c.ensure(ctx, projectID); err != nil {
		return "", err
	}
	for _, item := range c.runSets {
		if item.ID == id {
			return item.Label, nil
		}
	}
	return "", nil
}
