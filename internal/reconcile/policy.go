package reconcile

import (
	"context"
	"path"

	"github.com/sourceplane/slurmster/internal/errors"
	"github.com/sourceplane/slurmster/internal/model"
	"github.com/sourceplane/slurmster/internal/remote"
	"github.com/sourceplane/slurmster/internal/scheduler"
)

// markerOrder lists markers from most to least terminal. A finished run
// can still carry a stale .running, so the first hit wins.
var markerOrder = []struct {
	name  string
	state model.State
}{
	{model.MarkerFinished, model.StateFinished},
	{model.MarkerRunning, model.StateRunning},
	{model.MarkerPending, model.StatePending},
}

// MarkerState derives a state from the marker files in runDir. Any failed
// check makes the markers unavailable: the result is UNKNOWN with an
// errors.ErrRemoteIO error.
func MarkerState(ctx context.Context, ch remote.Channel, runDir string) (model.State, error) {
	for _, m := range markerOrder {
		ok, err := ch.Exists(ctx, path.Join(runDir, m.name))
		if err != nil {
			if !errors.Is(err, errors.ErrRemoteIO) {
				err = errors.RemoteIOf(err, "failed to check %s", m.name)
			}
			return model.StateUnknown, err
		}
		if ok {
			return m.state, nil
		}
	}
	return model.StateUnknown, nil
}

// QueryToken asks the scheduler about jobID and returns its state token.
// A non-zero exit is how the scheduler says it no longer knows the job,
// so it yields an empty token, not an error.
func QueryToken(ctx context.Context, ch remote.Channel, cmds scheduler.Commands, jobID string) (string, error) {
	line, err := cmds.QueryLine(jobID)
	if err != nil {
		return "", err
	}
	res, err := ch.Run(ctx, line)
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", nil
	}
	return scheduler.Token(res.Stdout), nil
}

// Evidence is what one pass observed for a run
type Evidence struct {
	Marker    model.State
	MarkerErr error  // non-nil: markers unavailable
	Token     string // raw scheduler token, "" when the scheduler had nothing
	QueryErr  error
}

// Resolve merges evidence into one state, in precedence order:
//
//  1. any scheduler token; one outside the known vocabulary maps to UNKNOWN
//  2. the marker state, when markers could be read
//  3. the prior state
//
// A terminal prior state is never replaced by a non-terminal one, so
// UNKNOWN or a stale RUNNING cannot undo FINISHED or CANCELLED.
func Resolve(prior model.State, ev Evidence) model.State {
	next := prior
	switch {
	case ev.Token != "":
		next = scheduler.MapState(ev.Token)
	case ev.MarkerErr == nil:
		next = ev.Marker
	}

	if prior.Terminal() && !next.Terminal() {
		return prior
	}
	return next
}
