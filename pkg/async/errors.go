package async

import "errors"

var (
	ErrRunnerClosed = errors.New("async: runner is closed")
	ErrTaskPanicked = errors.New("async: task panicked")
)
