package planner

import (
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/sourceplane/slurmster/internal/errors"
	"github.com/sourceplane/slurmster/internal/expand"
	"github.com/sourceplane/slurmster/internal/logger"
	"github.com/sourceplane/slurmster/internal/model"
	"github.com/sourceplane/slurmster/internal/placeholder"
	"github.com/sourceplane/slurmster/internal/render"
	"github.com/sourceplane/slurmster/internal/scheduler"
)

// RunPlanner turns expanded parameter sets into submission-ready runs
type RunPlanner struct {
	cfg       *model.Config
	remoteDir string
	commands  scheduler.Commands
	logger    *zap.SugaredLogger
}

// NewRunPlanner creates a planner for a normalised config. remoteDir is
// the base directory as the job script will see it.
func NewRunPlanner(cfg *model.Config, remoteDir string, log *zap.SugaredLogger) *RunPlanner {
	return &RunPlanner{
		cfg:       cfg,
		remoteDir: remoteDir,
		commands:  scheduler.FromConfig(cfg.Slurm),
		logger:    logger.OrNop(log),
	}
}

// PlanRuns expands, names and renders every run. Any template or naming
// error fails the whole batch, so nothing is planned half-way.
func (rp *RunPlanner) PlanRuns() ([]model.PlanRun, error) {
	candidates, err := expand.Candidates(rp.cfg.Run)
	if err != nil {
		return nil, err
	}

	runs := make([]model.PlanRun, 0, len(candidates))
	for _, c := range candidates {
		run, err := rp.PlanRun(c)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// PlanRun renders one candidate
func (rp *RunPlanner) PlanRun(c expand.Candidate) (model.PlanRun, error) {
	runDir := path.Join(rp.remoteDir, model.RunsDir, c.Name)
	logFile := path.Join(runDir, model.LogFileName)
	jobScript := path.Join(rp.remoteDir, model.JobsDir, c.Name+".sh")

	values, shadowed := placeholder.Mapping(c.Params, map[string]string{
		model.KeyExpName:   c.Name,
		model.KeyRemoteDir: rp.remoteDir,
		model.KeyRunDir:    runDir,
	})
	if len(shadowed) > 0 {
		rp.logger.Warnw("Parameters shadowed by reserved placeholders",
			logger.FieldExpName, c.Name,
			"keys", shadowed)
	}

	directives, err := placeholder.Substitute(render.WithDefaultOutput(rp.cfg.Slurm.Directives), values)
	if err != nil {
		return model.PlanRun{}, errors.Wrapf(err, "run %s: slurm.directives", c.Name)
	}

	command, err := placeholder.Substitute(rp.cfg.Run.Command, values)
	if err != nil {
		return model.PlanRun{}, errors.Wrapf(err, "run %s: run.command", c.Name)
	}

	script, err := render.JobScript(render.Script{
		Directives: directives,
		RemoteDir:  rp.remoteDir,
		RunDir:     runDir,
		LogFile:    logFile,
		VenvDir:    VenvPath(rp.remoteDir, rp.cfg.Remote.VenvDir),
		Command:    command,
	})
	if err != nil {
		return model.PlanRun{}, errors.Wrapf(err, "run %s", c.Name)
	}

	submit, err := rp.commands.SubmitLine(jobScript, rp.remoteDir)
	if err != nil {
		return model.PlanRun{}, errors.Wrapf(err, "run %s", c.Name)
	}

	return model.PlanRun{
		Index:      c.Index,
		Name:       c.Name,
		Params:     c.Params,
		RunDir:     runDir,
		LogFile:    logFile,
		JobScript:  jobScript,
		Directives: directives,
		Command:    command,
		Script:     script,
		Submit:     submit,
	}, nil
}

// VenvPath resolves venv relative to remoteDir unless it is absolute or home-relative
func VenvPath(remoteDir, venv string) string {
	switch {
	case venv == "":
		return ""
	case strings.HasPrefix(venv, "/"), venv == "~", strings.HasPrefix(venv, "~/"):
		return venv
	}
	return path.Join(remoteDir, venv)
}
