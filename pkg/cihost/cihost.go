// Package cihost is the boundary to the CI system hosting the reporter:
// build identity, workspace file listing, environment, parameters, logging
// and the build outcome.
package cihost

import (
	"fmt"
	"io"
	"path/filepath"
)

// Parameter is one CI build parameter. Sensitive parameters must never leave
// the host.
type Parameter struct {
	Name      string
	Value     string
	Sensitive bool
}

// Build exposes the running CI build to the reporter.
type Build interface {
	// Number is the build number within the job.
	Number() int
	// JobName is the name of the job that produced the build.
	JobName() string
	// PendingRunID identifies the queued run on the CI side, if any.
	PendingRunID() string
	// Env is a snapshot of the build's environment variables.
	Env() map[string]string
	// Parameters lists the build's parameters, sensitive ones included.
	Parameters() []Parameter
	// Logf writes a human-readable progress or error message to the build log.
	Logf(format string, args ...any)
	// MarkUnstable degrades the build outcome without failing it outright.
	MarkUnstable()
}

// Workspace lists files produced by the build.
type Workspace interface {
	// List expands a glob pattern against the workspace and returns the
	// matching paths.
	List(pattern string) ([]string, error)
}

// LocalBuild is a Build backed by the local process, for CLI use.
type LocalBuild struct {
	BuildNumber int
	Job         string
	RunID       string
	Environment map[string]string
	Params      []Parameter
	Out         io.Writer

	Unstable bool
}

func (b *LocalBuild) Number() int             { return b.BuildNumber }
func (b *LocalBuild) JobName() string         { return b.Job }
func (b *LocalBuild) PendingRunID() string    { return b.RunID }
func (b *LocalBuild) Env() map[string]string  { return b.Environment }
func (b *LocalBuild) Parameters() []Parameter { return b.Params }

func (b *LocalBuild) Logf(format string, args ...any) {
	if b.Out == nil {
		return
	}
	fmt.Fprintf(b.Out, format+"\n", args...)
}

func (b *LocalBuild) MarkUnstable() { b.Unstable = true }

var _ Build = (*LocalBuild)(nil)

// DirWorkspace is a Workspace rooted at a local directory.
type DirWorkspace struct {
	Root string
}

func (w DirWorkspace) List(pattern string) ([]string, error) {
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(w.Root, pattern)
	}
	return filepath.Glob(pattern)
}

var _ Workspace = DirWorkspace{}
