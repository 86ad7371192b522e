package async

import "errors"

var ErrClosed = errors.New("queue is shut down")
