package source

import "errors"

var (
	ErrNoRevision = errors.New("no source revision")
	ErrBadEpoch   = errors.New("invalid SOURCE_DATE_EPOCH")
)
