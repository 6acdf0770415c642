package runner

import (
	"context"
	"io"

	"github.com/sourceplane/slurmster/internal/errors"
	"github.com/sourceplane/slurmster/internal/logger"
	"github.com/sourceplane/slurmster/internal/model"
	"github.com/sourceplane/slurmster/internal/reconcile"
	"github.com/sourceplane/slurmster/internal/stream"
)

// Status reconciles recorded runs against the remote host: every run when
// all is set, otherwise only those not yet fetched
func (r *Runner) Status(ctx context.Context, all bool) ([]reconcile.Outcome, error) {
	runs := r.reg.Unfetched()
	if all {
		runs = r.reg.Runs()
	}
	if len(runs) == 0 {
		return nil, nil
	}

	engine := reconcile.NewEngine(r.ch, r.reg, r.cmds, reconcile.Options{
		Parallelism: r.opts.Parallelism,
		QueryRate:   r.opts.QueryRate,
		Logger:      r.logger.Named("reconcile"),
	})
	return engine.Reconcile(ctx, runs)
}

// Monitor streams the log of the run sel picks into w until ctx is done
func (r *Runner) Monitor(ctx context.Context, sel model.Selector, mode stream.Mode, w io.Writer) error {
	run, err := r.reg.Find(sel)
	if err != nil {
		return err
	}
	return r.Follow(ctx, run, mode, w)
}

// Follow streams the log of run into w until ctx is done
func (r *Runner) Follow(ctx context.Context, run model.Run, mode stream.Mode, w io.Writer) error {
	r.printf("Following %s of %s (job %s), interrupt to stop\n", run.LogFile, run.ExpName, run.JobID)
	err := stream.Follow(ctx, r.ch, run.LogFile, mode, stream.ToWriter(w), r.logger.With(logger.FieldJobID, run.JobID))
	if err != nil {
		return errors.Wrapf(err, "streaming %s", run.ExpName)
	}
	return nil
}
