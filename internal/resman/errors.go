package resman

import "errors"

var (
	ErrClosed          = errors.New("resource manager closed")
	ErrNotRegistered   = errors.New("resource type not registered")
	ErrNoFactory       = errors.New("resource type has no factory")
	ErrDeclined        = errors.New("factory returned no resource")
	ErrFactory         = errors.New("factory failed")
	ErrTypeMismatch    = errors.New("cached resource has a different type")
	ErrInvalidResource = errors.New("invalid resource")
)
