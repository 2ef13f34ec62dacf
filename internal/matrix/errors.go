package matrix

import "errors"

var (
	ErrUnknownAllocator = errors.New("unknown allocator")
	ErrUnknownProfile   = errors.New("unknown build profile")
	ErrUnknownTarget    = errors.New("unknown target")
	ErrUnknownFeature   = errors.New("unknown cargo feature")
	ErrInvalidOutput    = errors.New("invalid output name")
)
