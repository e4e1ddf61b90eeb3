package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrEmptyQuery         = errors.New("empty query")
	ErrBusy               = errors.New("lookup already in flight")
	ErrDatasetUnavailable = errors.New("dataset unavailable")
	ErrDatasetEmpty       = errors.New("dataset has no usable records")
	ErrStoreOpen          = errors.New("store cannot be opened")
	ErrStoreWrite         = errors.New("store write rejected")
	ErrInvalidConfig      = errors.New("invalid configuration")
)
