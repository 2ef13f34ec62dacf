package source

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
)

// Environment variable overriding the source timestamp.
const EpochVar = "SOURCE_DATE_EPOCH"

// Length of the abbreviated commit hash.
const shortHashLen = 7

// Revision of the source tree.
type Revision struct {
	Commit string    // Full commit hash.
	Time   time.Time // Committer time of the commit, in UTC.
	Dirty  bool      // Whether the worktree has uncommitted changes.
}

// Returns the abbreviated commit hash, with a "-dirty" suffix for modified
// worktrees.
func (r Revision) Short() string {
	s := r.Commit
	if len(s) > shortHashLen {
		s = s[:shortHashLen]
	}
	if r.Dirty {
		s += "-dirty"
	}
	return s
}

// Reads the HEAD revision of the repository containing dir.
//
// Parent directories are searched for the repository root. Returns
// [ErrNoRevision] when dir is not inside a repository or HEAD is unborn.
func Read(dir string) (Revision, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return Revision{}, fmt.Errorf("%w: %s: %w", ErrNoRevision, dir, err)
	}

	head, err := repo.Head()
	if err != nil {
		return Revision{}, fmt.Errorf("%w: %s: %w", ErrNoRevision, dir, err)
	}

	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return Revision{}, fmt.Errorf("%w: %s: %w", ErrNoRevision, dir, err)
	}

	rev := Revision{
		Commit: head.Hash().String(),
		Time:   commit.Committer.When.UTC(),
	}

	if wt, err := repo.Worktree(); err == nil {
		if status, err := wt.Status(); err == nil {
			rev.Dirty = !status.IsClean()
		}
	}

	return rev, nil
}

// Returns the reproducible timestamp for artifacts built from dir.
//
// SOURCE_DATE_EPOCH wins when set; otherwise the HEAD commit time is used.
// Wall-clock time is never used.
func Epoch(dir string) (time.Time, error) {
	if v, ok := os.LookupEnv(EpochVar); ok {
		return ParseEpoch(v)
	}
	rev, err := Read(dir)
	if err != nil {
		return time.Time{}, err
	}
	return rev.Time, nil
}

// Parses a SOURCE_DATE_EPOCH value (decimal seconds since the Unix epoch).
func ParseEpoch(v string) (time.Time, error) {
	secs, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || secs < 0 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadEpoch, v)
	}
	return time.Unix(secs, 0).UTC(), nil
}
