package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourceplane/slurmster/internal/errors"
	"github.com/sourceplane/slurmster/internal/model"
	"github.com/sourceplane/slurmster/internal/normalize"
	"github.com/sourceplane/slurmster/internal/remote"
	"github.com/sourceplane/slurmster/internal/remote/remotetest"
	"github.com/sourceplane/slurmster/internal/scheduler"
)

const runDir = "/r/runs/a"

func commands() scheduler.Commands {
	return scheduler.Commands{
		Submit: normalize.DefaultSubmitCommand,
		Query:  normalize.DefaultQueryCommand,
		Cancel: normalize.DefaultCancelCommand,
	}
}

func TestMarkerState(t *testing.T) {
	tests := []struct {
		name    string
		markers []string
		want    model.State
	}{
		{"none", nil, model.StateUnknown},
		{"pending", []string{".pending"}, model.StatePending},
		{"running", []string{".running"}, model.StateRunning},
		{"finished", []string{".finished"}, model.StateFinished},
		{"finished beats stale running", []string{".running", ".finished"}, model.StateFinished},
		{"running beats stale pending", []string{".pending", ".running"}, model.StateRunning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := remotetest.New()
			for _, m := range tt.markers {
				ch.SetFile(runDir+"/"+m, "")
			}
			got, err := MarkerState(context.Background(), ch, runDir)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("channel failure", func(t *testing.T) {
		ch := remotetest.New()
		ch.ExistsErr = errors.New("connection reset")
		got, err := MarkerState(context.Background(), ch, runDir)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrRemoteIO))
		assert.Equal(t, model.StateUnknown, got)
	})
}

func TestQueryToken(t *testing.T) {
	ctx := context.Background()

	ch := remotetest.New()
	ch.Respond("squeue", remote.Result{Stdout: "RUNNING\n"}, nil)
	tok, err := QueryToken(ctx, ch, commands(), "42")
	require.NoError(t, err)
	assert.Equal(t, "RUNNING", tok)
	assert.Equal(t, []string{"squeue -h -j 42 -o %T"}, ch.Commands)

	ch = remotetest.New()
	ch.Respond("squeue", remote.Result{ExitCode: 1, Stderr: "slurm_load_jobs error: Invalid job id specified"}, nil)
	tok, err = QueryToken(ctx, ch, commands(), "42")
	require.NoError(t, err)
	assert.Empty(t, tok)

	ch = remotetest.New()
	ch.Respond("squeue", remote.Result{}, errors.New("broken pipe"))
	_, err = QueryToken(ctx, ch, commands(), "42")
	assert.True(t, errors.Is(err, errors.ErrRemoteIO))
}

func TestResolve(t *testing.T) {
	ioErr := errors.RemoteIO(errors.New("timeout"), "exists")

	tests := []struct {
		name  string
		prior model.State
		ev    Evidence
		want  model.State
	}{
		{"scheduler overrides markers", model.StateRunning,
			Evidence{Marker: model.StateRunning, Token: "COMPLETED"}, model.StateFinished},
		{"scheduler pending over missing markers", model.StatePending,
			Evidence{Marker: model.StateUnknown, Token: "PENDING"}, model.StatePending},
		{"markers once scheduler forgot the job", model.StateRunning,
			Evidence{Marker: model.StateFinished}, model.StateFinished},
		{"unknown replaces transient", model.StateRunning,
			Evidence{Marker: model.StateUnknown}, model.StateUnknown},
		{"unknown never replaces finished", model.StateFinished,
			Evidence{Marker: model.StateUnknown}, model.StateFinished},
		{"stale running never replaces cancelled", model.StateCancelled,
			Evidence{Marker: model.StateRunning}, model.StateCancelled},
		{"terminal to terminal", model.StateCancelled,
			Evidence{Marker: model.StateRunning, Token: "COMPLETED"}, model.StateFinished},
		{"no evidence keeps prior", model.StateRunning,
			Evidence{Marker: model.StateUnknown, MarkerErr: ioErr, QueryErr: ioErr}, model.StateRunning},
		{"markers fail, scheduler answers", model.StatePending,
			Evidence{MarkerErr: ioErr, Token: "RUNNING"}, model.StateRunning},
		{"unrecognised token overrides markers", model.StatePending,
			Evidence{Marker: model.StateRunning, Token: "MYSTERY"}, model.StateUnknown},
		{"unrecognised token keeps terminal", model.StateFinished,
			Evidence{Marker: model.StateFinished, Token: "MYSTERY"}, model.StateFinished},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.prior, tt.ev))
		})
	}
}
