package config

import "errors"

var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrReadConfig    = errors.New("failed to read configuration")
)
