package ws_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/pagewatch/pagewatch/server/internal/metrics"
	wsHub "github.com/pagewatch/pagewatch/server/internal/ws"
)

// --- helpers ----------------------------------------------------------------

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePeer records every message sent to it and optionally fails.
type fakePeer struct {
	id   string
	fail error

	mu     sync.Mutex
	msgs   [][]byte
	closed bool
}

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) Send(msg []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *fakePeer) received() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

func connectPeers(h *wsHub.Hub, n int) []*fakePeer {
	peers := make([]*fakePeer, n)
	for i := range peers {
		peers[i] = &fakePeer{id: fmt.Sprintf("peer-%d", i)}
		h.Connect(peers[i])
	}
	return peers
}

// startHub starts a test HTTP server with the hub as its handler.
// The hub's Run loop is started with a cancellable context.
func startHub(t *testing.T) (wsURL string, hub *wsHub.Hub, cancel func()) {
	t.Helper()

	hub = wsHub.New(quietLogger(), nil)
	ctx, cancelFn := context.WithCancel(context.Background())

	srv := httptest.NewServer(hub)
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancelFn()
		srv.Close()
	})

	wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return wsURL, hub, cancelFn
}

// dial connects a WebSocket client to wsURL and returns the connection.
func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitForCount polls until the hub has want clients registered.
func waitForCount(t *testing.T, hub *wsHub.Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Count() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Count: got %d, want %d", hub.Count(), want)
}

// readEvent reads one message from conn and returns its event name.
func readEvent(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var m wsHub.Message
	if err := json.Unmarshal(msg, &m); err != nil {
		t.Fatalf("unmarshal %q: %v", msg, err)
	}
	return m.Event
}

// expectSilence asserts that nothing arrives on conn within d.
func expectSilence(t *testing.T, conn *websocket.Conn, d time.Duration) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(d))
	if _, msg, err := conn.ReadMessage(); err == nil {
		t.Errorf("unexpected message: %s", msg)
	}
}

func invoke(t *testing.T, conn *websocket.Conn, target string) {
	t.Helper()
	if err := conn.WriteJSON(wsHub.Invocation{Target: target}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
}

// --- fan-out with fake peers -------------------------------------------------

func TestHub_BroadcastAll_DeliversToEveryPeer(t *testing.T) {
	hub := wsHub.New(quietLogger(), nil)
	peers := connectPeers(hub, 5)

	if got := hub.BroadcastAll(wsHub.EventReload); got != 5 {
		t.Errorf("delivered: got %d, want 5", got)
	}
	for _, p := range peers {
		if n := p.received(); n != 1 {
			t.Errorf("%s: got %d messages, want 1", p.id, n)
		}
		if string(p.msgs[0]) != `{"event":"Reload"}` {
			t.Errorf("%s: payload %s", p.id, p.msgs[0])
		}
	}
}

func TestHub_BroadcastAll_NoPeers(t *testing.T) {
	hub := wsHub.New(quietLogger(), nil)
	if got := hub.BroadcastAll(wsHub.EventReload); got != 0 {
		t.Errorf("delivered: got %d, want 0", got)
	}
}

func TestHub_BroadcastOthers_SkipsSender(t *testing.T) {
	hub := wsHub.New(quietLogger(), nil)
	peers := connectPeers(hub, 4)
	sender := peers[2]

	if got := hub.BroadcastOthers(sender.id, wsHub.EventReload); got != 3 {
		t.Errorf("delivered: got %d, want 3", got)
	}
	for _, p := range peers {
		want := 1
		if p == sender {
			want = 0
		}
		if n := p.received(); n != want {
			t.Errorf("%s: got %d messages, want %d", p.id, n, want)
		}
	}
}

func TestHub_BroadcastOthers_UnknownSenderReachesAll(t *testing.T) {
	hub := wsHub.New(quietLogger(), nil)
	connectPeers(hub, 3)

	if got := hub.BroadcastOthers("not-connected", wsHub.EventReload); got != 3 {
		t.Errorf("delivered: got %d, want 3", got)
	}
}

func TestHub_Disconnect_RemovesFromTargets(t *testing.T) {
	hub := wsHub.New(quietLogger(), nil)
	peers := connectPeers(hub, 3)

	hub.Disconnect(peers[1].id)
	hub.BroadcastAll(wsHub.EventReload)

	if n := peers[1].received(); n != 0 {
		t.Errorf("disconnected peer received %d messages, want 0", n)
	}
	if n := peers[0].received() + peers[2].received(); n != 2 {
		t.Errorf("remaining peers received %d messages, want 2", n)
	}
	if n := hub.Count(); n != 2 {
		t.Errorf("Count: got %d, want 2", n)
	}
}

func TestHub_Disconnect_Idempotent(t *testing.T) {
	hub := wsHub.New(quietLogger(), nil)
	peers := connectPeers(hub, 2)

	hub.Disconnect(peers[0].id)
	hub.Disconnect(peers[0].id)
	hub.Disconnect("never-connected")

	if n := hub.Count(); n != 1 {
		t.Errorf("Count: got %d, want 1", n)
	}
}

func TestHub_SendFailure_DoesNotAbortFanout(t *testing.T) {
	hub := wsHub.New(quietLogger(), nil)
	peers := connectPeers(hub, 4)
	peers[1].fail = errors.New("connection reset")
	peers[3].fail = wsHub.ErrSendQueueFull

	if got := hub.BroadcastAll(wsHub.EventReload); got != 2 {
		t.Errorf("delivered: got %d, want 2", got)
	}
	if peers[0].received() != 1 || peers[2].received() != 1 {
		t.Errorf("healthy peers: got %d and %d messages, want 1 each",
			peers[0].received(), peers[2].received())
	}
}

func TestHub_SendError_Unwraps(t *testing.T) {
	err := &wsHub.SendError{ClientID: "abc", Err: wsHub.ErrSendQueueFull}
	if !errors.Is(err, wsHub.ErrSendQueueFull) {
		t.Error("errors.Is: SendError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "abc") {
		t.Errorf("Error(): %q should name the client", err.Error())
	}
}

func TestHub_Metrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	hub := wsHub.New(quietLogger(), m)
	peers := connectPeers(hub, 3)
	peers[0].fail = errors.New("boom")

	hub.BroadcastAll(wsHub.EventReload)
	hub.BroadcastOthers(peers[1].id, wsHub.EventReload)
	hub.Disconnect(peers[2].id)

	if got := testutil.ToFloat64(m.ConnectedClients); got != 2 {
		t.Errorf("connected_clients: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ConnectionsTotal); got != 3 {
		t.Errorf("connections_total: got %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.Broadcasts.WithLabelValues(metrics.ScopeAll)); got != 1 {
		t.Errorf("broadcasts{all}: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Broadcasts.WithLabelValues(metrics.ScopeOthers)); got != 1 {
		t.Errorf("broadcasts{others}: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SendFailures); got != 2 {
		t.Errorf("send_failures: got %v, want 2", got)
	}
}

func TestHub_Run_ClosesPeersOnCancel(t *testing.T) {
	hub := wsHub.New(quietLogger(), nil)
	peers := connectPeers(hub, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if n := hub.Count(); n != 0 {
		t.Errorf("Count after cancel: got %d, want 0", n)
	}
	for _, p := range peers {
		if !p.closed {
			t.Errorf("%s: not closed", p.id)
		}
	}
}

func TestHub_ConcurrentConnectDisconnectBroadcast(t *testing.T) {
	hub := wsHub.New(quietLogger(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			p := &fakePeer{id: fmt.Sprintf("p%d", i)}
			hub.Connect(p)
			hub.Disconnect(p.id)
		}(i)
		go func() {
			defer wg.Done()
			hub.BroadcastAll(wsHub.EventReload)
		}()
	}
	wg.Wait()

	if n := hub.Count(); n != 0 {
		t.Errorf("Count: got %d, want 0", n)
	}
}

// --- over real WebSocket connections -----------------------------------------

func TestHub_BroadcastAll_ReachesEveryClient(t *testing.T) {
	wsURL, hub, _ := startHub(t)

	conns := []*websocket.Conn{dial(t, wsURL), dial(t, wsURL)}
	waitForCount(t, hub, 2)

	if got := hub.BroadcastAll(wsHub.EventReload); got != 2 {
		t.Errorf("delivered: got %d, want 2", got)
	}
	for i, conn := range conns {
		if ev := readEvent(t, conn); ev != wsHub.EventReload {
			t.Errorf("client %d: event: got %q, want Reload", i, ev)
		}
	}
}

func TestHub_ReloadInvocation_ReachesOthersOnly(t *testing.T) {
	wsURL, hub, _ := startHub(t)

	sender := dial(t, wsURL)
	others := []*websocket.Conn{dial(t, wsURL), dial(t, wsURL)}
	waitForCount(t, hub, 3)

	invoke(t, sender, wsHub.EventReload)

	for i, conn := range others {
		if ev := readEvent(t, conn); ev != wsHub.EventReload {
			t.Errorf("client %d: event: got %q, want Reload", i, ev)
		}
	}
	expectSilence(t, sender, 200*time.Millisecond)
}

func TestHub_UnknownAndMalformedInvocationsIgnored(t *testing.T) {
	wsURL, hub, _ := startHub(t)

	sender := dial(t, wsURL)
	peer := dial(t, wsURL)
	waitForCount(t, hub, 2)

	invoke(t, sender, "Shutdown")
	if err := sender.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	invoke(t, sender, wsHub.EventReload)

	// The first frame the peer sees is the one triggered by Reload.
	if ev := readEvent(t, peer); ev != wsHub.EventReload {
		t.Errorf("event: got %q, want Reload", ev)
	}
	expectSilence(t, peer, 200*time.Millisecond)
}

func TestHub_CountDecreasesOnDisconnect(t *testing.T) {
	wsURL, hub, _ := startHub(t)

	conn := dial(t, wsURL)
	waitForCount(t, hub, 1)

	conn.Close()
	waitForCount(t, hub, 0)
}

func TestHub_DisconnectedClientNotTargeted(t *testing.T) {
	wsURL, hub, _ := startHub(t)

	gone := dial(t, wsURL)
	stay := dial(t, wsURL)
	waitForCount(t, hub, 2)

	gone.Close()
	waitForCount(t, hub, 1)

	if got := hub.BroadcastAll(wsHub.EventReload); got != 1 {
		t.Errorf("delivered: got %d, want 1", got)
	}
	if ev := readEvent(t, stay); ev != wsHub.EventReload {
		t.Errorf("event: got %q, want Reload", ev)
	}
}

func TestHub_CancelContextClosesConnections(t *testing.T) {
	wsURL, hub, cancel := startHub(t)

	conn := dial(t, wsURL)
	waitForCount(t, hub, 1)

	cancel()

	waitForCount(t, hub, 0)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("ReadMessage after cancel: got %v, want close 1001", err)
	}
}

func TestHub_NonWebSocketRequest_Returns400(t *testing.T) {
	hub := wsHub.New(quietLogger(), nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	// Plain HTTP GET without WebSocket upgrade headers → 400
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}
