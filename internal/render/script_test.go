package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourceplane/slurmster/internal/errors"
)

func TestWithDefaultOutput(t *testing.T) {
	tests := []struct {
		name       string
		directives string
		injected   bool
	}{
		{"empty", "", true},
		{"job name only", "#SBATCH --job-name=x", true},
		{"long form", "#SBATCH --job-name=x\n#SBATCH --output=/tmp/o.log", false},
		{"long form with space", "#SBATCH --output /tmp/o.log", false},
		{"short form", "#SBATCH -o /tmp/o.log", false},
		{"commented out", "##SBATCH --output=/tmp/o.log", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WithDefaultOutput(tt.directives)
			assert.Equal(t, tt.injected, strings.Contains(got, DefaultOutputDirectives))
			if tt.directives != "" {
				assert.True(t, strings.HasPrefix(got, tt.directives))
			}
		})
	}
}

func TestJobScript(t *testing.T) {
	script, err := JobScript(Script{
		Directives: "#SBATCH --job-name=lr-0.1\n",
		RemoteDir:  "/scratch/exp",
		RunDir:     "/scratch/exp/runs/lr-0.1",
		LogFile:    "/scratch/exp/runs/lr-0.1/stdout.log",
		VenvDir:    "/scratch/exp/venv",
		Command:    "python train.py --lr 0.1",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(script, "#!/bin/bash\n#SBATCH --job-name=lr-0.1\n#SBATCH --chdir=/scratch/exp\n"))
	assert.NotContains(t, script, "set -e")
	assert.Contains(t, script, "export PYTHONUNBUFFERED=1")
	assert.Contains(t, script, "source /scratch/exp/venv/bin/activate")
	assert.Contains(t, script, `( python train.py --lr 0.1 ) 2>&1 | tee -a "$LOG_FILE"`)
	assert.Contains(t, script, "exit_code=${PIPESTATUS[0]}")

	// lifecycle order
	order := []string{
		`mkdir -p "$RUN_DIR"`,
		`rm -f "$RUN_DIR/.pending"`,
		`touch "$RUN_DIR/.running"`,
		"( python train.py",
		`echo "$exit_code" > "$RUN_DIR/.exitcode"`,
		`rm -f "$RUN_DIR/.running"`,
		`touch "$RUN_DIR/.finished"`,
		`exit "$exit_code"`,
	}
	last := -1
	for _, step := range order {
		idx := strings.Index(script, step)
		require.Greater(t, idx, last, "step %q out of order", step)
		last = idx
	}
}

func TestJobScriptWithoutVenv(t *testing.T) {
	script, err := JobScript(Script{
		RemoteDir: "/r", RunDir: "/r/runs/a", LogFile: "/r/runs/a/stdout.log", Command: "echo hi",
	})
	require.NoError(t, err)
	assert.NotContains(t, script, "activate")
}

func TestJobScriptQuotesPaths(t *testing.T) {
	script, err := JobScript(Script{
		RemoteDir: "/r/my exp", RunDir: "/r/my exp/runs/a", LogFile: "/r/my exp/runs/a/stdout.log", Command: "true",
	})
	require.NoError(t, err)
	assert.Contains(t, script, "RUN_DIR='/r/my exp/runs/a'")
	assert.Contains(t, script, "cd '/r/my exp'")
}

func TestJobScriptRequiresCommand(t *testing.T) {
	_, err := JobScript(Script{RemoteDir: "/r", RunDir: "/r/a", LogFile: "/r/a/l"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}
