package frontier

import "errors"

// ErrCorruptCheckpoint is returned when a checkpoint exists but cannot be
// decoded. The crawl must not start in that case.
var ErrCorruptCheckpoint = errors.New("corrupt checkpoint")
