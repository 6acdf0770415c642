package runner

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/sourceplane/slurmster/internal/errors"
	"github.com/sourceplane/slurmster/internal/git"
	"github.com/sourceplane/slurmster/internal/logger"
	"github.com/sourceplane/slurmster/internal/model"
	"github.com/sourceplane/slurmster/internal/remote"
	"github.com/sourceplane/slurmster/internal/scheduler"
)

// errNotRecorded marks a job the scheduler accepted but the registry lost
var errNotRecorded = errors.New("submitted job not recorded")

// staleMarkers are cleared before a run directory is reused
var staleMarkers = []string{model.MarkerPending, model.MarkerRunning, model.MarkerFinished, model.ExitCodeFile}

// SubmitOptions tune Submit
type SubmitOptions struct {
	SkipSetup bool
}

// SubmitFailure is a run that could not be submitted
type SubmitFailure struct {
	Name string
	Err  error
}

// SubmitReport lists what a batch submission did
type SubmitReport struct {
	Plan      *model.Plan
	Submitted []model.Run
	Failed    []SubmitFailure
}

// Submit renders and submits every run of the experiment file.
//
// Expansion, naming and templating are checked for the whole batch before
// any remote call. A run that fails to submit stops the batch unless
// run.continue_on_error is set. A job the scheduler accepted but the
// registry could not record always stops the batch.
func (r *Runner) Submit(ctx context.Context, opts SubmitOptions) (*SubmitReport, error) {
	if _, err := r.Plan(r.cfg.Remote.BaseDir); err != nil {
		return nil, err
	}

	if !opts.SkipSetup {
		if err := r.Setup(ctx); err != nil {
			return nil, err
		}
	}

	remoteDir, err := r.RemoteDir(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := r.Plan(remoteDir)
	if err != nil {
		return nil, err
	}

	report := &SubmitReport{Plan: plan}
	prov := git.Provenance{
		Commit: plan.Metadata.GitCommit,
		Branch: plan.Metadata.GitBranch,
		Dirty:  plan.Metadata.GitDirty,
	}
	start := time.Now()

	for _, pr := range plan.Runs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		r.printf("→ Run %s (%s)\n", pr.Name, pr.Params)
		run, err := r.submitRun(ctx, pr, prov)
		if err != nil {
			if errors.Is(err, errNotRecorded) || !r.cfg.Run.ContinueOnError {
				return report, err
			}
			r.logger.Errorw("Submission failed, continuing",
				logger.FieldExpName, pr.Name,
				logger.FieldError, err)
			r.printf("  ✗ %v\n", err)
			report.Failed = append(report.Failed, SubmitFailure{Name: pr.Name, Err: err})
			continue
		}

		r.printf("  ✓ submitted as job %s\n", run.JobID)
		report.Submitted = append(report.Submitted, run)
	}

	r.logger.Infow("Batch submitted",
		logger.FieldCount, len(report.Submitted),
		logger.FieldTotalCount, len(plan.Runs),
		logger.FieldDurationMS, time.Since(start).Milliseconds())

	if len(report.Failed) > 0 {
		errs := make([]error, len(report.Failed))
		for i, f := range report.Failed {
			errs[i] = f.Err
		}
		return report, errors.Wrapf(errors.Join(errs...), "%d of %d runs failed to submit", len(report.Failed), len(plan.Runs))
	}
	return report, nil
}

// submitRun uploads, prepares, submits and records one run
func (r *Runner) submitRun(ctx context.Context, pr model.PlanRun, prov git.Provenance) (model.Run, error) {
	log := r.logger.With(logger.FieldExpName, pr.Name, logger.FieldRunDir, pr.RunDir)

	if err := r.uploadScript(ctx, pr); err != nil {
		return model.Run{}, errors.Wrapf(err, "run %s", pr.Name)
	}

	for _, prev := range r.reg.Filter(func(run model.Run) bool { return run.ExpName == pr.Name && !run.Fetched }) {
		log.Warnw("Resubmitting over a run that was never fetched",
			logger.FieldJobID, prev.JobID,
			logger.FieldState, prev.State)
	}

	markers := make([]string, len(staleMarkers))
	for i, m := range staleMarkers {
		markers[i] = path.Join(pr.RunDir, m)
	}
	prepare := "chmod +x " + remote.Quote(pr.JobScript) +
		" && mkdir -p " + remote.Quote(pr.RunDir) +
		" && rm -f " + remote.QuoteAll(markers...) +
		" && touch " + remote.Quote(path.Join(pr.RunDir, model.MarkerPending))

	res, err := r.ch.Run(ctx, prepare)
	if err != nil {
		return model.Run{}, errors.Wrapf(err, "run %s: failed to prepare run directory", pr.Name)
	}
	if !res.OK() {
		return model.Run{}, errors.Submissionf("run %s: preparing %s exited %d: %s", pr.Name, pr.RunDir, res.ExitCode, res.Combined())
	}

	// An interrupt from here on cannot split a job the scheduler accepted
	// from its registry record.
	commit := context.WithoutCancel(ctx)

	log.Debugw("Submitting", logger.FieldCommand, pr.Submit)
	res, err = r.ch.Run(commit, pr.Submit)
	if err != nil {
		return model.Run{}, errors.Wrapf(err, "run %s: submit command failed", pr.Name)
	}
	if !res.OK() {
		return model.Run{}, errors.Submissionf("submit failed for %s (exit %d): %s", pr.Name, res.ExitCode, res.Combined())
	}

	jobID, err := scheduler.ParseJobID(res.Stdout)
	if err != nil {
		return model.Run{}, errors.Wrapf(err, "run %s", pr.Name)
	}

	run := model.Run{
		ExpName:   pr.Name,
		Params:    pr.Params,
		JobID:     jobID,
		RunDir:    pr.RunDir,
		LogFile:   pr.LogFile,
		State:     model.StatePending,
		GitCommit: prov.Commit,
		GitBranch: prov.Branch,
		GitDirty:  prov.Dirty,
	}
	if err := r.reg.Add(run); err != nil {
		hint := "cancel it on the cluster before resubmitting"
		if line, lerr := r.cmds.CancelLine(jobID); lerr == nil {
			hint = "cancel it with `" + line + "` before resubmitting"
		}
		return model.Run{}, errors.Mark(errors.WithHint(
			errors.Wrapf(err, "job %s for %s was submitted but could not be recorded", jobID, pr.Name),
			hint,
		), errNotRecorded)
	}

	recorded, _ := r.reg.Get(jobID)
	log.Infow("Run submitted", logger.FieldJobID, jobID)
	return recorded, nil
}

// uploadScript writes the job script to a local temporary file, transfers
// it and removes the temporary file whatever the outcome
func (r *Runner) uploadScript(ctx context.Context, pr model.PlanRun) error {
	tmp := filepath.Join(os.TempDir(), "slurmster_"+uuid.NewString()+".sh")
	if err := os.WriteFile(tmp, []byte(pr.Script), 0o600); err != nil {
		return errors.Wrap(err, "failed to write job script")
	}
	defer os.Remove(tmp)

	if err := r.ch.PutFile(ctx, tmp, pr.JobScript); err != nil {
		return errors.Wrapf(err, "failed to upload %s", pr.JobScript)
	}
	return nil
}
