package build

import "errors"

var (
	ErrBuild               = errors.New("build failed")
	ErrFileSystemOperation = errors.New("file system operation failed")
	ErrArtifactMissing     = errors.New("build produced no artifact")
	ErrSkipped             = errors.New("build skipped")
)
