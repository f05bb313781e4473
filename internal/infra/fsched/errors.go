package fsched

import "github.com/go-faster/errors"

// ErrQueueFull возвращается в deliver, когда очередь файловых операций переполнена.
var ErrQueueFull = errors.New("fsched: job queue is full")
