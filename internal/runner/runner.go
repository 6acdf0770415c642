// Package runner drives the remote side of an experiment batch: setup,
// submission, status, monitoring, fetch and cancel. Every remote effect
// goes through a remote.Channel and every record through a registry.
package runner

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sourceplane/slurmster/internal/errors"
	"github.com/sourceplane/slurmster/internal/git"
	"github.com/sourceplane/slurmster/internal/logger"
	"github.com/sourceplane/slurmster/internal/model"
	"github.com/sourceplane/slurmster/internal/planner"
	"github.com/sourceplane/slurmster/internal/registry"
	"github.com/sourceplane/slurmster/internal/remote"
	"github.com/sourceplane/slurmster/internal/render"
	"github.com/sourceplane/slurmster/internal/scheduler"
)

// Options configure a Runner
type Options struct {
	WorkDir     string // anchors relative files.push and requirements paths
	ConfigFile  string // recorded in plan metadata
	Parallelism int    // status probes in flight at once
	QueryRate   float64
	Stdout      io.Writer // progress lines
	Logger      *zap.SugaredLogger
}

// Runner executes experiment operations against one remote scope
type Runner struct {
	cfg    *model.Config
	ch     remote.Channel
	reg    *registry.Registry
	cmds   scheduler.Commands
	opts   Options
	logger *zap.SugaredLogger

	mu        sync.Mutex
	remoteDir string
}

// New creates a runner for a normalised config. ch may be nil for
// operations that never touch the remote host (Plan, Runs).
func New(cfg *model.Config, ch remote.Channel, reg *registry.Registry, opts Options) *Runner {
	if opts.WorkDir == "" {
		opts.WorkDir = "."
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	return &Runner{
		cfg:    cfg,
		ch:     ch,
		reg:    reg,
		cmds:   scheduler.FromConfig(cfg.Slurm),
		opts:   opts,
		logger: logger.OrNop(opts.Logger),
	}
}

// Registry returns the registry the runner records into
func (r *Runner) Registry() *registry.Registry {
	return r.reg
}

func (r *Runner) printf(format string, args ...interface{}) {
	fmt.Fprintf(r.opts.Stdout, format, args...)
}

// RemoteDir returns base_dir as the remote shell sees it. A home-relative
// base_dir is resolved once against the remote $HOME, since scheduler
// directives do not expand "~".
func (r *Runner) RemoteDir(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.remoteDir != "" {
		return r.remoteDir, nil
	}

	base := r.cfg.Remote.BaseDir
	if base != "~" && !strings.HasPrefix(base, "~/") {
		r.remoteDir = base
		return base, nil
	}

	res, err := r.ch.Run(ctx, `printf '%s' "$HOME"`)
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve remote home directory")
	}
	home := strings.TrimSpace(res.Stdout)
	if !res.OK() || !strings.HasPrefix(home, "/") {
		return "", errors.RemoteIOf(errors.Newf("unexpected output %q", res.Combined()), "failed to resolve remote home directory")
	}

	r.remoteDir = path.Join(home, strings.TrimPrefix(strings.TrimPrefix(base, "~"), "/"))
	r.logger.Debugw("Resolved remote directory",
		logger.FieldRemoteDir, r.remoteDir)
	return r.remoteDir, nil
}

// Plan expands and renders every run against remoteDir without touching
// the remote host
func (r *Runner) Plan(remoteDir string) (*model.Plan, error) {
	runs, err := planner.NewRunPlanner(r.cfg, remoteDir, r.logger).PlanRuns()
	if err != nil {
		return nil, err
	}

	prov := r.provenance()
	return render.NewRenderer().NewPlan(model.Metadata{
		ConfigFile:  r.opts.ConfigFile,
		RemoteDir:   remoteDir,
		GeneratedAt: time.Now().UTC(),
		GitCommit:   prov.Commit,
		GitBranch:   prov.Branch,
		GitDirty:    prov.Dirty,
	}, runs), nil
}

func (r *Runner) provenance() git.Provenance {
	prov, err := git.Capture(r.opts.WorkDir)
	if err != nil {
		r.logger.Warnw("Could not read source provenance",
			logger.FieldPath, r.opts.WorkDir,
			logger.FieldError, err)
	}
	return prov
}

// localPath resolves a path from the experiment file against WorkDir
func (r *Runner) localPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(r.opts.WorkDir, filepath.FromSlash(p))
}

// remotePath places a pushed file under remoteDir, keeping relative
// layout and flattening paths that would leave it
func remotePath(remoteDir, p string) string {
	p = path.Clean(filepath.ToSlash(p))
	if path.IsAbs(p) || p == ".." || strings.HasPrefix(p, "../") {
		p = path.Base(p)
	}
	return path.Join(remoteDir, p)
}
