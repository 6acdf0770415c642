// Package git captures where the submitted code came from.
package git

import (
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/sourceplane/slurmster/internal/errors"
)

// Provenance is the state of the local working tree at submit time
type Provenance struct {
	Commit string
	Branch string // empty on a detached HEAD
	Dirty  bool   // uncommitted or untracked changes
}

// Empty reports whether nothing was captured
func (p Provenance) Empty() bool {
	return p.Commit == ""
}

// Capture reads HEAD and worktree status of the repository containing dir.
// dir outside any repository, or a repository without commits, yields an
// empty Provenance and no error.
func Capture(dir string) (Provenance, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return Provenance{}, nil
	}
	if err != nil {
		return Provenance{}, errors.Wrapf(err, "failed to open repository at %s", dir)
	}

	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return Provenance{}, nil
	}
	if err != nil {
		return Provenance{}, errors.Wrap(err, "failed to resolve HEAD")
	}

	p := Provenance{Commit: head.Hash().String()}
	if head.Name().IsBranch() {
		p.Branch = head.Name().Short()
	}

	wt, err := repo.Worktree()
	if errors.Is(err, git.ErrIsBareRepository) {
		return p, nil
	}
	if err != nil {
		return p, errors.Wrap(err, "failed to open worktree")
	}
	status, err := wt.Status()
	if err != nil {
		return p, errors.Wrap(err, "failed to read worktree status")
	}
	p.Dirty = !status.IsClean()
	return p, nil
}

// IsRepository reports whether dir is inside a git repository
func IsRepository(dir string) bool {
	_, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	return err == nil
}
