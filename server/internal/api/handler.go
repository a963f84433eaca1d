package api

import (
	"encoding/json"
	"net/http"

	"github.com/pagewatch/pagewatch/server/internal/notifier"
	"github.com/pagewatch/pagewatch/server/internal/ws"
)

// Watch reports the live-reload watch state.
type Watch interface {
	Status() notifier.Status
}

// Hub is the subset of the broadcast hub the API uses.
type Hub interface {
	Count() int
	BroadcastAll(event string) int
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	watch   Watch
	hub     Hub
	hubPath string
	mux     *http.ServeMux
}

// New creates a Handler and registers all routes.
func New(watch Watch, hub Hub, hubPath string) http.Handler {
	h := &Handler{watch: watch, hub: hub, hubPath: hubPath, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/status", h.status)
	h.mux.HandleFunc("/api/v1/reload", h.reload)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// status returns GET /api/v1/status: watch state and connected clients.
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, StatusResponse{
		Watch:   h.watch.Status(),
		Clients: h.hub.Count(),
		HubPath: h.hubPath,
	})
}

// reload handles POST /api/v1/reload: pushes Reload to every client.
func (h *Handler) reload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, ReloadResponse{Delivered: h.hub.BroadcastAll(ws.EventReload)})
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
