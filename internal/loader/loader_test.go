package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourceplane/slurmster/internal/errors"
	"github.com/sourceplane/slurmster/internal/model"
)

const gridConfig = `
remote:
  base_dir: ~/experiments/mnist
files:
  push: [train.py]
slurm:
  directives: |
    #SBATCH --job-name={exp_name}
    #SBATCH --time=00:05:00
run:
  command: python train.py --lr {lr} --seed {seed}
  grid:
    lr: [0.10, 0.01]
    seed: [1, 2]
`

func TestParseConfig(t *testing.T) {
	t.Run("grid keeps file order and literal scalars", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(gridConfig))
		require.NoError(t, err)

		require.Len(t, cfg.Run.Grid, 2)
		assert.Equal(t, "lr", cfg.Run.Grid[0].Key)
		assert.Equal(t, []string{"0.10", "0.01"}, cfg.Run.Grid[0].Values)
		assert.Equal(t, "seed", cfg.Run.Grid[1].Key)
		assert.Equal(t, 4, cfg.Run.Grid.Size())
		assert.Equal(t, "~/experiments/mnist", cfg.Remote.BaseDir)
		assert.True(t, cfg.Remote.Setup.CreatesVenv())
	})

	t.Run("explicit experiments", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(`
run:
  command: python train.py
  experiments:
    - {model: resnet, lr: 0.1}
    - {model: vit, lr: 0.01}
`))
		require.NoError(t, err)
		require.Len(t, cfg.Run.Experiments, 2)
		assert.Equal(t, model.Params{{Key: "model", Value: "vit"}, {Key: "lr", Value: "0.01"}}, cfg.Run.Experiments[1])
	})

	t.Run("schema violation is a configuration error", func(t *testing.T) {
		_, err := ParseConfig([]byte("run:\n  grid:\n    lr: [1]\n"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrConfiguration))
	})
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(gridConfig), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"train.py"}, cfg.Files.Push)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}
