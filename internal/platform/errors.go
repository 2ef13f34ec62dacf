package platform

import "errors"

var (
	ErrInvalidTriple       = errors.New("invalid target triple")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)
