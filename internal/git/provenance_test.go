package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initTestRepo creates a repository with one committed file
func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "train.py"), []byte("print('hi')\n"), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("train.py")
	require.NoError(t, err)
	_, err = wt.Commit("Initial commit", &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test User", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return dir
}

func TestCapture(t *testing.T) {
	dir := initTestRepo(t)

	p, err := Capture(dir)
	require.NoError(t, err)
	assert.Len(t, p.Commit, 40)
	assert.Equal(t, "master", p.Branch)
	assert.False(t, p.Dirty)
	assert.True(t, IsRepository(dir))
}

func TestCaptureDirty(t *testing.T) {
	dir := initTestRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "train.py"), []byte("print('changed')\n"), 0o644))

	p, err := Capture(dir)
	require.NoError(t, err)
	assert.True(t, p.Dirty)
}

func TestCaptureFromSubdirectory(t *testing.T) {
	dir := initTestRepo(t)
	sub := filepath.Join(dir, "configs")
	require.NoError(t, os.Mkdir(sub, 0o755))

	p, err := Capture(sub)
	require.NoError(t, err)
	assert.False(t, p.Empty())
}

func TestCaptureOutsideRepository(t *testing.T) {
	dir := t.TempDir()

	p, err := Capture(dir)
	require.NoError(t, err)
	assert.True(t, p.Empty())
	assert.False(t, IsRepository(dir))
}

func TestCaptureWithoutCommits(t *testing.T) {
	dir := t.TempDir()
	_, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)

	p, err := Capture(dir)
	require.NoError(t, err)
	assert.True(t, p.Empty())
}
