package toolchain

import "errors"

var (
	ErrToolchainMismatch    = errors.New("toolchain mismatch")
	ErrToolchainUnavailable = errors.New("toolchain unavailable")
	ErrInvalidSpec          = errors.New("invalid toolchain spec")
)
