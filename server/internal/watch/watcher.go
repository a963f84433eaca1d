package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// queueSize is the number of qualifying paths buffered between the
// fsnotify reader and the callback goroutine.
const queueSize = 64

// ChangeFunc is called with the path of every modified file that matches
// the filter.
type ChangeFunc func(path string)

// Watcher is one recursive watch registration bound to a root directory
// and a filename suffix.
type Watcher struct {
	root     string
	filter   string
	onChange ChangeFunc
	logger   *slog.Logger

	queue chan string

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	started bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New validates the registration. It does not touch the OS watch API;
// call Start for that.
func New(root, filter string, onChange ChangeFunc, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	filter = strings.TrimPrefix(filter, "*")
	if filter == "" {
		return nil, &ConfigurationError{Root: root, Err: errEmptyFilter}
	}
	if onChange == nil {
		return nil, &ConfigurationError{Root: root, Err: errNilCallback}
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, &ConfigurationError{Root: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &ConfigurationError{Root: root, Err: errNotDirectory}
	}

	return &Watcher{
		root:     filepath.Clean(root),
		filter:   filter,
		onChange: onChange,
		logger:   logger,
		queue:    make(chan string, queueSize),
		done:     make(chan struct{}),
	}, nil
}

// Root returns the watched directory.
func (w *Watcher) Root() string { return w.root }

// Filter returns the filename suffix that qualifies a change.
func (w *Watcher) Filter() string { return w.filter }

// Start establishes the OS-level watch on root and all of its
// subdirectories, then begins delivering changes in the background.
// It returns once the watch is in place. Cancelling ctx stops delivery.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return &WatchError{Root: w.root, Err: ErrClosed}
	}
	if w.started {
		return &WatchError{Root: w.root, Err: ErrAlreadyStarted}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return &WatchError{Root: w.root, Err: err}
	}
	if err := addRecursive(fsw, w.root); err != nil {
		fsw.Close()
		return &WatchError{Root: w.root, Err: err}
	}

	ctx, cancel := context.WithCancel(ctx)
	w.fsw = fsw
	w.cancel = cancel
	w.started = true

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer close(w.queue)
		w.produce(ctx)
	}()
	go func() {
		defer wg.Done()
		w.consume()
	}()
	go func() {
		wg.Wait()
		close(w.done)
	}()

	w.logger.Info("watch: watching for changes", "root", w.root, "filter", w.filter)
	return nil
}

// Close releases the OS watch and waits for pending callbacks to finish.
// It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	started := w.started
	var err error
	if started {
		w.cancel()
		err = w.fsw.Close()
	}
	w.mu.Unlock()

	if started {
		<-w.done
	}
	return err
}

// produce reads fsnotify events until ctx is cancelled or the watcher is
// closed, queueing every qualifying path.
func (w *Watcher) produce(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch: watcher error", "root", w.root, "err", err)
		}
	}
}

// handle extends the watch to new directories and queues matching writes.
func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if event.Has(fsnotify.Create) && w.fsw != nil {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addRecursive(w.fsw, event.Name); err != nil {
				w.logger.Warn("watch: cannot watch new directory", "path", event.Name, "err", err)
			}
		}
	}

	if !w.matches(event) {
		return
	}

	select {
	case w.queue <- event.Name:
	case <-ctx.Done():
	}
}

// consume calls onChange for each queued path, in order, until the queue
// is closed.
func (w *Watcher) consume() {
	for path := range w.queue {
		w.onChange(path)
	}
}

// matches reports whether event is a content modification of a file whose
// name ends with the filter.
func (w *Watcher) matches(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) {
		return false
	}
	return strings.HasSuffix(filepath.Base(event.Name), w.filter)
}

// addRecursive walks root and adds every directory to the watcher.
func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}
