package registry

import "errors"

var (
	ErrInvalidReference = errors.New("invalid reference")
	ErrPublish          = errors.New("publish failed")
)
