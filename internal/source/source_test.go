package source

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Creates a repository with one commit at the given time.
func initRepo(t *testing.T, when time.Time) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte("[workspace]\n"), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("Cargo.toml")
	require.NoError(t, err)

	sig := &object.Signature{Name: "dev", Email: "dev@example.org", When: when}
	_, err = wt.Commit("initial", &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(t, err)

	return dir
}

func TestRead(t *testing.T) {
	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	dir := initRepo(t, when)

	sub := filepath.Join(dir, "src", "main")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	rev, err := Read(sub)
	require.NoError(t, err)
	assert.True(t, rev.Time.Equal(when))
	assert.Len(t, rev.Commit, 40)
	assert.Len(t, rev.Short(), 7)
	assert.False(t, rev.Dirty)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte("[workspace]\nmembers = []\n"), 0o644))
	rev, err = Read(dir)
	require.NoError(t, err)
	assert.True(t, rev.Dirty)
	assert.Contains(t, rev.Short(), "-dirty")
}

func TestReadOutsideRepository(t *testing.T) {
	_, err := Read(t.TempDir())
	assert.ErrorIs(t, err, ErrNoRevision)
}

func TestEpoch(t *testing.T) {
	when := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)
	dir := initRepo(t, when)

	t.Setenv(EpochVar, "1700000000")
	got, err := Epoch(dir)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), got)

	os.Unsetenv(EpochVar)
	got, err = Epoch(dir)
	require.NoError(t, err)
	assert.True(t, got.Equal(when))
}

func TestParseEpoch(t *testing.T) {
	_, err := ParseEpoch("yesterday")
	assert.ErrorIs(t, err, ErrBadEpoch)
	_, err = ParseEpoch("-5")
	assert.ErrorIs(t, err, ErrBadEpoch)
}
