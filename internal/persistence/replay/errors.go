package replay

import "errors"

var (
	ErrInvalidOptions = errors.New("invalid replay options")
	ErrWriterClosed   = errors.New("replay writer is closed")
	ErrDigestMismatch = errors.New("snapshot digest does not match its bodies")
)
