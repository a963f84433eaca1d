package api

import "github.com/pagewatch/pagewatch/server/internal/notifier"

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusResponse is the payload for GET /api/v1/status.
type StatusResponse struct {
	Watch   notifier.Status `json:"watch"`
	Clients int             `json:"clients"`
	HubPath string          `json:"hub_path"`
}

// ReloadResponse is the payload for POST /api/v1/reload.
type ReloadResponse struct {
	Delivered int `json:"delivered"`
}

type errorResponse struct {
	Error string `json:"error"`
}
