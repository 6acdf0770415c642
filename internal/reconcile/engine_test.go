package reconcile

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sourceplane/slurmster/internal/errors"
	"github.com/sourceplane/slurmster/internal/model"
	"github.com/sourceplane/slurmster/internal/registry"
	"github.com/sourceplane/slurmster/internal/remote"
	"github.com/sourceplane/slurmster/internal/remote/remotetest"
)

func newRegistry(t *testing.T, runs ...model.Run) *registry.Registry {
	t.Helper()
	reg, err := registry.Open(t.TempDir(), registry.Scope{User: "u", Host: "h", RemoteDir: "/r"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })
	for _, r := range runs {
		require.NoError(t, reg.Add(r))
	}
	return reg
}

func run(name, jobID string, state model.State) model.Run {
	return model.Run{ExpName: name, JobID: jobID, RunDir: "/r/runs/" + name, LogFile: "/r/runs/" + name + "/stdout.log", State: state}
}

func TestReconcileSchedulerOverride(t *testing.T) {
	reg := newRegistry(t, run("a", "1", model.StateRunning))
	ch := remotetest.New()
	ch.SetFile("/r/runs/a/.running", "")
	ch.Respond("squeue -h -j 1", remote.Result{Stdout: "COMPLETED\n"}, nil)

	e := NewEngine(ch, reg, commands(), Options{Logger: zaptest.NewLogger(t).Sugar()})
	outcomes, err := e.Reconcile(context.Background(), reg.Runs())
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Changed)

	got, _ := reg.Get("1")
	assert.Equal(t, model.StateFinished, got.State)
	assert.Equal(t, "COMPLETED", got.SchedulerState)
}

func TestReconcileMarkersAfterQueueExit(t *testing.T) {
	reg := newRegistry(t, run("a", "1", model.StateRunning))
	ch := remotetest.New()
	ch.SetFile("/r/runs/a/.running", "")
	ch.SetFile("/r/runs/a/.finished", "")
	ch.Respond("squeue", remote.Result{ExitCode: 1}, nil)

	_, err := NewEngine(ch, reg, commands(), Options{}).Reconcile(context.Background(), reg.Runs())
	require.NoError(t, err)

	got, _ := reg.Get("1")
	assert.Equal(t, model.StateFinished, got.State)
}

func TestReconcileRemoteFailureKeepsState(t *testing.T) {
	reg := newRegistry(t, run("a", "1", model.StateRunning))
	ch := remotetest.New()
	ch.ExistsErr = errors.New("connection reset")
	ch.Respond("squeue", remote.Result{}, errors.New("connection reset"))

	outcomes, err := NewEngine(ch, reg, commands(), Options{}).Reconcile(context.Background(), reg.Runs())
	require.NoError(t, err)
	assert.Error(t, outcomes[0].Evidence.MarkerErr)
	assert.Error(t, outcomes[0].Evidence.QueryErr)
	assert.False(t, outcomes[0].Changed)

	got, _ := reg.Get("1")
	assert.Equal(t, model.StateRunning, got.State)
}

func TestReconcileNeverRegressesTerminal(t *testing.T) {
	reg := newRegistry(t, run("a", "1", model.StateCancelled))
	ch := remotetest.New()

	_, err := NewEngine(ch, reg, commands(), Options{}).Reconcile(context.Background(), reg.Runs())
	require.NoError(t, err)

	got, _ := reg.Get("1")
	assert.Equal(t, model.StateCancelled, got.State)
}

func TestReconcileParallelKeepsOrder(t *testing.T) {
	var runs []model.Run
	ch := remotetest.New()
	for i := 0; i < 12; i++ {
		r := run(fmt.Sprintf("r%02d", i), fmt.Sprint(100+i), model.StatePending)
		runs = append(runs, r)
		if i%2 == 0 {
			ch.SetFile(r.RunDir+"/.finished", "")
		} else {
			ch.Respond(fmt.Sprintf("-j %d ", 100+i), remote.Result{Stdout: "RUNNING\n"}, nil)
		}
	}
	reg := newRegistry(t, runs...)

	outcomes, err := NewEngine(ch, reg, commands(), Options{Parallelism: 4}).Reconcile(context.Background(), reg.Runs())
	require.NoError(t, err)
	require.Len(t, outcomes, 12)

	for i, o := range outcomes {
		assert.Equal(t, runs[i].JobID, o.Run.JobID)
		want := model.StateFinished
		if i%2 == 1 {
			want = model.StateRunning
		}
		assert.Equal(t, want, o.Run.State, "job %s", o.Run.JobID)
	}
}

func TestReconcileCancelled(t *testing.T) {
	reg := newRegistry(t, run("a", "1", model.StatePending))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine(remotetest.New(), reg, commands(), Options{}).Reconcile(ctx, reg.Runs())
	assert.ErrorIs(t, err, context.Canceled)

	got, _ := reg.Get("1")
	assert.Equal(t, model.StatePending, got.State)
}

func TestReconcileUnrecognisedTokenOverridesMarkers(t *testing.T) {
	reg := newRegistry(t, run("a", "1", model.StatePending))
	ch := remotetest.New()
	ch.SetFile("/r/runs/a/.running", "")
	ch.Respond("squeue -h -j 1", remote.Result{Stdout: "MYSTERY_STATE\n"}, nil)

	core, logs := observer.New(zapcore.WarnLevel)
	e := NewEngine(ch, reg, commands(), Options{Logger: zap.New(core).Sugar()})
	_, err := e.Reconcile(context.Background(), reg.Runs())
	require.NoError(t, err)

	got, _ := reg.Get("1")
	assert.Equal(t, model.StateUnknown, got.State)
	assert.Equal(t, "MYSTERY_STATE", got.SchedulerState)

	warned := logs.FilterMessage("Unrecognised scheduler state, run marked UNKNOWN").All()
	require.Len(t, warned, 1)
	assert.Equal(t, "MYSTERY_STATE", warned[0].ContextMap()["scheduler_state"])
}
