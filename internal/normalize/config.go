package normalize

import (
	"path"
	"strings"

	"github.com/sourceplane/slurmster/internal/errors"
	"github.com/sourceplane/slurmster/internal/model"
	"github.com/sourceplane/slurmster/internal/placeholder"
)

// Defaults applied to an experiment file
const (
	DefaultBaseDir       = "~/experiments"
	DefaultVenvDir       = "venv"
	DefaultDirectives    = "#SBATCH --job-name={exp_name}"
	DefaultSubmitCommand = "sbatch {script}"
	DefaultQueryCommand  = "squeue -h -j {job_id} -o %T"
	DefaultCancelCommand = "scancel {job_id}"
)

// Config fills defaults and validates a decoded experiment file in place.
// Every error is marked errors.ErrConfiguration.
func Config(cfg *model.Config) (*model.Config, error) {
	if cfg == nil {
		return nil, errors.Configurationf("experiment config cannot be nil")
	}

	// Remote layout
	cfg.Remote.BaseDir = strings.TrimSpace(cfg.Remote.BaseDir)
	if cfg.Remote.BaseDir == "" {
		cfg.Remote.BaseDir = DefaultBaseDir
	}
	if cfg.Remote.BaseDir != "/" && cfg.Remote.BaseDir != "~" {
		cfg.Remote.BaseDir = strings.TrimRight(cfg.Remote.BaseDir, "/")
	}
	if cfg.Remote.VenvDir == "" {
		cfg.Remote.VenvDir = DefaultVenvDir
	}

	// Scheduler surface
	if strings.TrimSpace(cfg.Slurm.Directives) == "" {
		cfg.Slurm.Directives = DefaultDirectives
	}
	cfg.Slurm.Directives = strings.TrimRight(cfg.Slurm.Directives, "\n")
	if cfg.Slurm.SubmitCommand == "" {
		cfg.Slurm.SubmitCommand = DefaultSubmitCommand
	}
	if cfg.Slurm.QueryCommand == "" {
		cfg.Slurm.QueryCommand = DefaultQueryCommand
	}
	if cfg.Slurm.CancelCommand == "" {
		cfg.Slurm.CancelCommand = DefaultCancelCommand
	}
	if !strings.Contains(cfg.Slurm.SubmitCommand, "{script}") {
		return nil, errors.Configurationf("slurm.submit_command must reference {script}: %q", cfg.Slurm.SubmitCommand)
	}
	if !strings.Contains(cfg.Slurm.QueryCommand, "{job_id}") {
		return nil, errors.Configurationf("slurm.query_command must reference {job_id}: %q", cfg.Slurm.QueryCommand)
	}
	if !strings.Contains(cfg.Slurm.CancelCommand, "{job_id}") {
		return nil, errors.Configurationf("slurm.cancel_command must reference {job_id}: %q", cfg.Slurm.CancelCommand)
	}

	// Run
	cfg.Run.Command = strings.TrimSpace(cfg.Run.Command)
	if cfg.Run.Command == "" {
		return nil, errors.Configurationf("run.command is required")
	}
	if len(cfg.Run.Grid) == 0 && len(cfg.Run.Experiments) == 0 {
		return nil, errors.WithHint(
			errors.Configurationf("run.grid or run.experiments is required"),
			"add a grid such as `grid: {lr: [0.1, 0.01]}` under run",
		)
	}
	if err := checkGrid(cfg.Run.Grid); err != nil {
		return nil, err
	}
	for i, params := range cfg.Run.Experiments {
		if len(params) == 0 {
			return nil, errors.Configurationf("run.experiments[%d] has no parameters", i)
		}
		if err := checkKeys(params.Keys(), "run.experiments"); err != nil {
			return nil, err
		}
	}

	// Files pushed during setup stay relative to base_dir
	for i, p := range cfg.Files.Push {
		cfg.Files.Push[i] = path.Clean(p)
	}

	return cfg, nil
}

func checkGrid(grid model.Grid) error {
	keys := make([]string, 0, len(grid))
	for _, axis := range grid {
		if len(axis.Values) == 0 {
			return errors.Configurationf("run.grid.%s has no values", axis.Key)
		}
		keys = append(keys, axis.Key)
	}
	return checkKeys(keys, "run.grid")
}

func checkKeys(keys []string, where string) error {
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if strings.TrimSpace(k) == "" {
			return errors.Configurationf("%s has an empty parameter name", where)
		}
		if !placeholder.IsIdentifier(k) {
			return errors.WithHint(
				errors.Configurationf("%s parameter %q cannot be used as a {placeholder}", where, k),
				"parameter names start with a letter or underscore and contain only letters, digits, '_', '.' and '-'",
			)
		}
		if seen[k] {
			return errors.Configurationf("%s repeats parameter %q", where, k)
		}
		seen[k] = true
	}
	return nil
}
