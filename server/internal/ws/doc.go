// Package ws implements the live-update hub for pagewatch.
//
// Hub owns the set of connected clients. Nothing outside the Hub touches
// that set; Connect and Disconnect mutate it under a lock and broadcasts
// iterate a snapshot taken under the read lock.
//
// New(logger, metrics) creates a Hub.
// Hub.ServeHTTP upgrades an HTTP connection to WebSocket, registers the
// client under a random UUID and serves it until the connection closes.
// Hub.BroadcastAll(event) pushes an event to every client.
// Hub.BroadcastOthers(id, event) pushes to every client except id.
// Hub.Run(ctx) blocks until ctx is cancelled, then closes every client.
//
// Wire format (JSON text frames):
//
//	server → client   {"event": "Reload"}
//	client → server   {"target": "Reload"}
//
// A "Reload" invocation from a client is rebroadcast to all other clients.
// Each client has its own buffered send queue drained by a dedicated write
// goroutine: Send never blocks, a full queue drops the message for that
// client, and one failed send never stops delivery to the rest.
package ws
