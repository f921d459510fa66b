package scene

import "errors"

var (
	ErrAlreadyRunning = errors.New("scene is already running")
	ErrInvalidConfig  = errors.New("invalid scene config")
)
