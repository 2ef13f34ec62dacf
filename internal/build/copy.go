package build

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cruciblehq/tessera/internal/paths"
)

// Copies a built binary from the cargo target directory to dest.
//
// The copy is written next to dest and renamed into place, so a reader never
// observes a partially written artifact. The destination is always made
// executable. A missing source or one that is not a regular file yields
// [ErrArtifactMissing].
func collectArtifact(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrArtifactMissing, src)
		}
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrArtifactMissing, src)
	}

	slog.Debug("collect", "src", src, "dest", dest, "size", info.Size())

	if err := os.MkdirAll(filepath.Dir(dest), paths.DefaultDirMode); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	defer os.Remove(tmp.Name())

	if err := copyFile(tmp, src); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	if err := tmp.Chmod(paths.ExecutableFileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	return nil
}

// Copies the contents of the file at path into w.
func copyFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}
