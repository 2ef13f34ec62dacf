package image

import "errors"

var (
	ErrArtifactMissing = errors.New("artifact missing")
	ErrInputMissing    = errors.New("image input missing")
	ErrInvalidFile     = errors.New("invalid embedded file")
	ErrNoSourceEpoch   = errors.New("no source epoch")
	ErrPackage         = errors.New("packaging failed")
)
