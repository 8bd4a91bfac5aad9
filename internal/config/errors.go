package config

import "errors"

var (
	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrUnsupportedFormat is returned for a file extension no loader handles.
	ErrUnsupportedFormat = errors.New("unsupported configuration format")
)
