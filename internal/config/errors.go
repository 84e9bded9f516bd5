package config

import "errors"

var (
	ErrValidationFailed  = errors.New("validation failed")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrUnsupportedFormat = errors.New("unsupported configuration format")
)
