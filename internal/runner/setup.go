package runner

import (
	"context"
	"os"
	"path"

	"github.com/sourceplane/slurmster/internal/errors"
	"github.com/sourceplane/slurmster/internal/logger"
	"github.com/sourceplane/slurmster/internal/model"
	"github.com/sourceplane/slurmster/internal/planner"
	"github.com/sourceplane/slurmster/internal/remote"
)

// Setup prepares the remote tree: base, runs and jobs directories, pushed
// files and, unless disabled, the virtualenv with its requirements.
func (r *Runner) Setup(ctx context.Context) error {
	remoteDir, err := r.RemoteDir(ctx)
	if err != nil {
		return err
	}
	log := r.logger.With(logger.FieldRemoteDir, remoteDir)

	r.printf("□ Preparing %s\n", remoteDir)
	for _, dir := range []string{remoteDir, path.Join(remoteDir, model.RunsDir), path.Join(remoteDir, model.JobsDir)} {
		if err := r.ch.MakeDirectories(ctx, dir); err != nil {
			return errors.Wrapf(err, "failed to create %s", dir)
		}
	}

	for _, p := range r.cfg.Files.Push {
		if err := r.push(ctx, p, remotePath(remoteDir, p)); err != nil {
			return err
		}
		r.printf("  - pushed %s\n", p)
	}

	if r.cfg.Remote.Setup.CreatesVenv() {
		if err := r.setupVenv(ctx, remoteDir); err != nil {
			return err
		}
	}

	log.Infow("Remote setup complete", logger.FieldCount, len(r.cfg.Files.Push))
	r.printf("✓ Remote ready\n")
	return nil
}

func (r *Runner) push(ctx context.Context, local, target string) error {
	src := r.localPath(local)
	if _, err := os.Stat(src); err != nil {
		return errors.WithHint(
			errors.Configurationf("file to push %s: %v", local, err),
			"paths under files.push are relative to the working directory",
		)
	}
	if err := r.ch.MakeDirectories(ctx, path.Dir(target)); err != nil {
		return errors.Wrapf(err, "failed to create %s", path.Dir(target))
	}
	if err := r.ch.PutFile(ctx, src, target); err != nil {
		return errors.Wrapf(err, "failed to push %s", local)
	}
	return nil
}

func (r *Runner) setupVenv(ctx context.Context, remoteDir string) error {
	venv := planner.VenvPath(remoteDir, r.cfg.Remote.VenvDir)
	activate := ". " + remote.Quote(path.Join(venv, "bin", "activate"))

	r.printf("□ Preparing virtualenv %s\n", venv)
	steps := []string{
		"cd " + remote.Quote(remoteDir) + " && { test -d " + remote.Quote(venv) + " || python3 -m venv " + remote.Quote(venv) + "; }",
		activate + " && python -m pip install --quiet --upgrade pip",
	}

	if req := r.cfg.Remote.Setup.Requirements; req != "" {
		target := remotePath(remoteDir, req)
		if err := r.push(ctx, req, target); err != nil {
			return err
		}
		steps = append(steps, activate+" && python -m pip install --quiet -r "+remote.Quote(target))
	}

	for _, step := range steps {
		r.logger.Debugw("Running setup step", logger.FieldCommand, step)
		res, err := r.ch.Run(ctx, step)
		if err != nil {
			return errors.Wrap(err, "virtualenv setup failed")
		}
		if !res.OK() {
			return errors.WithDetail(
				errors.Newf("virtualenv setup step exited %d", res.ExitCode),
				res.Combined(),
			)
		}
	}

	r.printf("✓ Virtualenv ready\n")
	return nil
}
