// Package api implements the small HTTP status API for pagewatch.
//
// New(watch, hub, hubPath) returns an http.Handler that serves:
//
//	GET  /api/v1/health : {"status":"ok"}
//	GET  /api/v1/status : watch state, connected client count, hub path
//	POST /api/v1/reload : pushes Reload to every client; {"delivered":n}
//
// All endpoints respond with Content-Type: application/json and return 405
// for other methods. No external HTTP framework is used.
package api
