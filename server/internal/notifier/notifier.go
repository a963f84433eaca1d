package notifier

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/pagewatch/pagewatch/server/internal/config"
	"github.com/pagewatch/pagewatch/server/internal/metrics"
	"github.com/pagewatch/pagewatch/server/internal/watch"
	"github.com/pagewatch/pagewatch/server/internal/ws"
)

// Broadcaster pushes an event to every connected live-update client.
type Broadcaster interface {
	BroadcastAll(event string) int
}

// Status describes the live-reload feature at a point in time.
type Status struct {
	Enabled   bool   `json:"enabled"`
	Root      string `json:"root"`
	Filter    string `json:"filter"`
	Changes   int64  `json:"changes"`
	LastError string `json:"last_error,omitempty"`
}

// Notifier ties one watch registration to the hub and exposes it as HTTP
// middleware.
type Notifier struct {
	ctx     context.Context
	root    string
	filter  string
	hub     Broadcaster
	logger  *slog.Logger
	metrics *metrics.Metrics

	once    sync.Once
	changes atomic.Int64

	mu      sync.RWMutex
	watcher *watch.Watcher
	lastErr error
}

// New creates a Notifier that will watch root with the filter from cfg.
// Nothing is watched until Middleware is first called. ctx bounds the
// lifetime of the watch.
func New(ctx context.Context, root string, cfg config.WatchConfig, hub Broadcaster, logger *slog.Logger, m *metrics.Metrics) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		ctx:     ctx,
		root:    root,
		filter:  config.NormalizeFilter(cfg.Filter),
		hub:     hub,
		logger:  logger,
		metrics: m,
	}
}

// Middleware starts the watch the first time it is called and returns a
// handler that delegates every request unchanged to next.
func (n *Notifier) Middleware(next http.Handler) http.Handler {
	n.once.Do(n.start)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
	})
}

// Status reports whether the watch is active and how many changes it has
// delivered.
func (n *Notifier) Status() Status {
	n.mu.RLock()
	defer n.mu.RUnlock()

	st := Status{
		Enabled: n.watcher != nil,
		Root:    n.root,
		Filter:  n.filter,
		Changes: n.changes.Load(),
	}
	if n.lastErr != nil {
		st.LastError = n.lastErr.Error()
	}
	return st
}

// Close releases the watch, if one is running.
func (n *Notifier) Close() error {
	n.mu.Lock()
	w := n.watcher
	n.watcher = nil
	n.mu.Unlock()

	if w == nil {
		return nil
	}
	return w.Close()
}

// start builds and starts the single watch registration. Any failure is
// logged and leaves live reload disabled; the host keeps serving.
func (n *Notifier) start() {
	w, err := watch.New(n.root, n.filter, n.onChange, n.logger)
	if err == nil {
		err = w.Start(n.ctx)
	}
	if err != nil {
		n.mu.Lock()
		n.lastErr = err
		n.mu.Unlock()
		n.logger.Error("notifier: live reload disabled", "root", n.root, "err", err)
		return
	}

	n.mu.Lock()
	n.watcher = w
	n.mu.Unlock()
	n.logger.Info("notifier: watching", "root", n.root, "filter", n.filter)
}

// onChange is the watch callback: one qualifying change, one broadcast.
func (n *Notifier) onChange(path string) {
	n.changes.Add(1)
	n.metrics.FileChanged()
	n.logger.Info("notifier: file changed", "path", path)
	n.hub.BroadcastAll(ws.EventReload)
}
