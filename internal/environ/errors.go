package environ

import "errors"

var (
	ErrDependencyNotFound = errors.New("native dependency not found")
)
