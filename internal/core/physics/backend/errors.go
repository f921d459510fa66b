package backend

import "errors"

var (
	ErrBackendExists  = errors.New("backend kind already registered")
	ErrUnknownBackend = errors.New("unknown backend kind")
	ErrNilFactory     = errors.New("backend factory is nil")
)
