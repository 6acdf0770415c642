package reconcile

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sourceplane/slurmster/internal/errors"
	"github.com/sourceplane/slurmster/internal/logger"
	"github.com/sourceplane/slurmster/internal/model"
	"github.com/sourceplane/slurmster/internal/registry"
	"github.com/sourceplane/slurmster/internal/remote"
	"github.com/sourceplane/slurmster/internal/scheduler"
)

// Options tune a reconciliation pass
type Options struct {
	Parallelism int     // runs probed at once; <= 1 is sequential
	QueryRate   float64 // scheduler queries per second; 0 = unlimited
	Logger      *zap.SugaredLogger
}

// Engine reconciles registry records against remote evidence
type Engine struct {
	ch      remote.Channel
	reg     *registry.Registry
	cmds    scheduler.Commands
	opts    Options
	limiter *rate.Limiter
	logger  *zap.SugaredLogger
}

// NewEngine creates an engine
func NewEngine(ch remote.Channel, reg *registry.Registry, cmds scheduler.Commands, opts Options) *Engine {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.QueryRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.QueryRate), 1)
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	return &Engine{
		ch:      ch,
		reg:     reg,
		cmds:    cmds,
		opts:    opts,
		limiter: limiter,
		logger:  logger.OrNop(opts.Logger),
	}
}

// Outcome is the result of reconciling one run
type Outcome struct {
	Run      model.Run // record after the pass
	Prior    model.State
	Evidence Evidence
	Changed  bool
	Err      error // persistence failure; remote failures only show in Evidence
}

// Reconcile probes every run and persists resolved states. Remote failures
// degrade to "no evidence" for that run. The returned error joins
// persistence failures, or is ctx.Err() when the pass was interrupted.
// Outcomes keep the order of runs.
func (e *Engine) Reconcile(ctx context.Context, runs []model.Run) ([]Outcome, error) {
	start := time.Now()
	outcomes := make([]Outcome, len(runs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Parallelism)

	for i := range runs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = e.ReconcileOne(gctx, runs[i])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	if err := ctx.Err(); err != nil {
		return outcomes, err
	}

	var errs []error
	changed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
		if o.Changed {
			changed++
		}
	}

	e.logger.Infow("Reconciled runs",
		logger.FieldTotalCount, len(runs),
		logger.FieldCount, changed,
		logger.FieldDurationMS, time.Since(start).Milliseconds())

	return outcomes, errors.Join(errs...)
}

// ReconcileOne gathers marker and scheduler evidence for run, resolves it
// and persists the result when anything changed
func (e *Engine) ReconcileOne(ctx context.Context, run model.Run) Outcome {
	out := Outcome{Run: run, Prior: run.State}
	log := e.logger.With(logger.FieldJobID, run.JobID, logger.FieldExpName, run.ExpName)

	out.Evidence.Marker, out.Evidence.MarkerErr = MarkerState(ctx, e.ch, run.RunDir)
	if out.Evidence.MarkerErr != nil {
		log.Warnw("Marker check failed", logger.FieldError, out.Evidence.MarkerErr)
	}

	if err := e.limiter.Wait(ctx); err != nil {
		out.Evidence.QueryErr = err
	} else {
		out.Evidence.Token, out.Evidence.QueryErr = QueryToken(ctx, e.ch, e.cmds, run.JobID)
	}
	if out.Evidence.QueryErr != nil {
		log.Warnw("Scheduler query failed", logger.FieldError, out.Evidence.QueryErr)
	}

	if out.Evidence.Token != "" && !scheduler.Recognised(out.Evidence.Token) {
		log.Warnw("Unrecognised scheduler state, run marked UNKNOWN",
			logger.FieldSchedulerState, out.Evidence.Token,
			"marker", out.Evidence.Marker)
	}

	next := Resolve(run.State, out.Evidence)
	token := run.SchedulerState
	if out.Evidence.Token != "" {
		token = out.Evidence.Token
	}

	log.Debugw("Resolved state",
		"marker", out.Evidence.Marker,
		logger.FieldSchedulerState, out.Evidence.Token,
		logger.FieldState, next)

	if next == run.State && token == run.SchedulerState {
		return out
	}
	if ctx.Err() != nil {
		return out
	}

	updated, err := e.reg.Update(run.JobID, func(r *model.Run) {
		r.State = next
		r.SchedulerState = token
	})
	if err != nil {
		out.Err = err
		log.Errorw("Failed to persist state", logger.FieldError, err)
		return out
	}

	out.Run = updated
	out.Changed = updated.State != run.State
	return out
}
