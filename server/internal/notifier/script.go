package notifier

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// clientScript connects to the hub, reloads the page on a Reload event and
// exposes window.pageWatch.reload() to reload every other open browser.
const clientScript = `(function () {
  var hubPath = %s;
  var scheme = location.protocol === "https:" ? "wss://" : "ws://";
  var socket = new WebSocket(scheme + location.host + hubPath);
  socket.onmessage = function (e) {
    var msg;
    try { msg = JSON.parse(e.data); } catch (err) { return; }
    if (msg.event === "Reload") { location.reload(); }
  };
  window.pageWatch = {
    reload: function () {
      if (socket.readyState === WebSocket.OPEN) {
        socket.send(JSON.stringify({ target: "Reload" }));
      }
    }
  };
})();
`

// ScriptHandler serves the browser client for the hub mounted at hubPath.
func ScriptHandler(hubPath string) http.Handler {
	quoted, _ := json.Marshal(hubPath) // marshalling a string cannot fail
	body := []byte(fmt.Sprintf(clientScript, quoted))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(body) //nolint:errcheck
	})
}
