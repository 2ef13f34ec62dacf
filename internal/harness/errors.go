package harness

import "errors"

var (
	ErrImageLoadFailed   = errors.New("image load failed")
	ErrSuiteUnstartable  = errors.New("suite could not be started")
	ErrSuiteCrashed      = errors.New("suite crashed")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrOutput            = errors.New("result output failed")
)
