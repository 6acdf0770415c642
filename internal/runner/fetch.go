package runner

import (
	"context"

	"github.com/sourceplane/slurmster/internal/errors"
	"github.com/sourceplane/slurmster/internal/logger"
	"github.com/sourceplane/slurmster/internal/model"
	"github.com/sourceplane/slurmster/internal/reconcile"
)

// FetchedRun is a run copied to the local results directory
type FetchedRun struct {
	Run  model.Run
	Dest string
}

// SkippedRun is a run fetch left alone
type SkippedRun struct {
	Run    model.Run
	Reason string
	Err    error // remote failure, if that was the reason
}

// FetchReport lists what a fetch pass did
type FetchReport struct {
	Fetched []FetchedRun
	Skipped []SkippedRun
}

// Fetch copies every finished, not yet fetched run into the local results
// directory and marks it fetched. expName restricts the pass to one
// experiment name. Runs already fetched are skipped without any remote
// call; remote failures skip the run and leave its record unchanged.
func (r *Runner) Fetch(ctx context.Context, expName string) (*FetchReport, error) {
	runs := r.reg.Runs()
	if expName != "" {
		runs = r.reg.Filter(model.Selector{ExpName: expName}.Matches)
		if len(runs) == 0 {
			return nil, errors.WithHint(
				errors.Lookupf("no run named %s in %s", expName, r.reg.Scope()),
				"list recorded runs with `slurmster runs`",
			)
		}
	}

	report := &FetchReport{}
	for _, run := range runs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if run.Fetched {
			report.Skipped = append(report.Skipped, SkippedRun{Run: run, Reason: "already fetched"})
			continue
		}

		log := r.logger.With(logger.FieldJobID, run.JobID, logger.FieldExpName, run.ExpName)

		state, err := reconcile.MarkerState(ctx, r.ch, run.RunDir)
		if err != nil {
			log.Warnw("Skipping run, markers unavailable", logger.FieldError, err)
			report.Skipped = append(report.Skipped, SkippedRun{Run: run, Reason: "markers unavailable", Err: err})
			continue
		}
		if state != model.StateFinished {
			report.Skipped = append(report.Skipped, SkippedRun{Run: run, Reason: "state " + string(state)})
			continue
		}

		dest := r.reg.FetchDestination(run)
		r.printf("□ Fetching %s into %s\n", run.ExpName, dest)
		if err := r.ch.GetDirectory(ctx, run.RunDir, dest); err != nil {
			log.Warnw("Skipping run, copy failed", logger.FieldError, err)
			report.Skipped = append(report.Skipped, SkippedRun{Run: run, Reason: "copy failed", Err: err})
			continue
		}

		updated, err := r.reg.Update(run.JobID, func(rec *model.Run) {
			rec.Fetched = true
			rec.State = model.StateFinished
		})
		if err != nil {
			return report, err
		}

		r.printf("✓ Fetched %s\n", run.ExpName)
		log.Infow("Run fetched", logger.FieldPath, dest)
		report.Fetched = append(report.Fetched, FetchedRun{Run: updated, Dest: dest})
	}
	return report, nil
}
