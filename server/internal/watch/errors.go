package watch

import (
	"errors"
	"fmt"
)

// ErrAlreadyStarted is wrapped in a WatchError when Start is called twice.
var ErrAlreadyStarted = errors.New("watcher already started")

// ErrClosed is wrapped in a WatchError when Start is called after Close.
var ErrClosed = errors.New("watcher closed")

var (
	errNotDirectory = errors.New("not a directory")
	errEmptyFilter  = errors.New("filter must not be empty")
	errNilCallback  = errors.New("change callback must not be nil")
)

// ConfigurationError reports an invalid watch registration: a root that is
// not an existing directory, an empty filter, or a missing callback.
type ConfigurationError struct {
	Root string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("watch: invalid configuration for %q: %v", e.Root, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// WatchError reports a failure to establish the OS-level watch.
type WatchError struct {
	Root string
	Err  error
}

func (e *WatchError) Error() string {
	return fmt.Sprintf("watch: cannot watch %q: %v", e.Root, e.Err)
}

func (e *WatchError) Unwrap() error { return e.Err }
