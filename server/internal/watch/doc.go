// Package watch observes a directory tree for modified template files.
//
// New(root, filter, onChange, logger) validates the registration: root must
// be an existing directory and filter a non-empty filename suffix such as
// ".cshtml". Failures are *ConfigurationError.
//
// Watcher.Start(ctx) adds root and every subdirectory to an fsnotify watcher
// and returns immediately. Failures are *WatchError. One goroutine reads
// fsnotify events and queues the paths that qualify; a second goroutine
// drains the queue in order and calls onChange once per path.
//
// Only fsnotify.Write on a matching file qualifies. Create, Remove, Rename
// and Chmod are ignored, so editors that save through a temp file and a
// rename do not trigger onChange. Directories created after Start are added
// to the watch. Events are not debounced.
package watch
