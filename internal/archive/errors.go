package archive

import "errors"

var (
	ErrConfig = errors.New("invalid archive configuration")
	ErrUpload = errors.New("upload failed")
)
