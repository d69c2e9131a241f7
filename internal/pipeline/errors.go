package pipeline

import "errors"

// ErrClosed is returned by WriteExtent once the sink has been closed or is
// in the process of closing.
var ErrClosed = errors.New("pipeline: sink is closed")

// ErrRotateOutsideCallback is returned by Rotate when called from anywhere
// other than the writer callback invoked on the writer's own goroutine.
var ErrRotateOutsideCallback = errors.New("pipeline: rotate called outside the writer callback")
