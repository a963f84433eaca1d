// Package notifier plugs live reload into a host HTTP server.
//
// Notifier.Middleware(next) starts exactly one watch registration the first
// time the pipeline is assembled and otherwise passes every request through
// to next untouched. Each qualifying file change is logged and turned into
// Broadcaster.BroadcastAll("Reload").
//
// If the watch cannot be built (missing directory) or started (OS watch
// failure) the error is logged, reported by Status, and live reload stays
// off for the rest of the process. Requests are still served.
//
// ScriptHandler(hubPath) serves the browser side of the channel.
package notifier
