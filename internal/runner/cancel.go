package runner

import (
	"context"

	"github.com/sourceplane/slurmster/internal/errors"
	"github.com/sourceplane/slurmster/internal/logger"
	"github.com/sourceplane/slurmster/internal/model"
)

// Cancel cancels the single run sel matches. The record becomes CANCELLED
// as soon as the cancel command succeeds; a failing command leaves it as is.
func (r *Runner) Cancel(ctx context.Context, sel model.Selector) (model.Run, error) {
	run, err := r.reg.Find(sel)
	if err != nil {
		return model.Run{}, err
	}

	line, err := r.cmds.CancelLine(run.JobID)
	if err != nil {
		return model.Run{}, err
	}

	r.logger.Debugw("Cancelling", logger.FieldJobID, run.JobID, logger.FieldCommand, line)
	res, err := r.ch.Run(ctx, line)
	if err != nil {
		return model.Run{}, errors.Wrapf(err, "cancel job %s", run.JobID)
	}
	if !res.OK() {
		return model.Run{}, errors.WithHint(
			errors.Cancellationf("cancel failed for %s (job %s, exit %d): %s", run.ExpName, run.JobID, res.ExitCode, res.Combined()),
			"the record is unchanged; retry once the scheduler is reachable",
		)
	}

	updated, err := r.reg.Update(run.JobID, func(rec *model.Run) {
		rec.State = model.StateCancelled
	})
	if err != nil {
		return model.Run{}, err
	}

	r.logger.Infow("Run cancelled",
		logger.FieldJobID, run.JobID,
		logger.FieldExpName, run.ExpName)
	return updated, nil
}
