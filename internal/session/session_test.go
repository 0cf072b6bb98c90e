package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"juicebox/internal/httpapi"
	"juicebox/internal/hub"
	"juicebox/internal/protocol"
)

const eventTimeout = 3 * time.Second

func newTestServer(t *testing.T) (*httptest.Server, *hub.Hub) {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()
	h := hub.NewHub(context.Background(), log)
	srv := httptest.NewServer(httpapi.SetupRoutes(httpapi.NewHandlers(h, log)))
	t.Cleanup(func() {
		h.Inbox() <- hub.ShutdownHub{}
		srv.Close()
	})
	return srv, h
}

func newTestSession(t *testing.T, srv *httptest.Server) *Session {
	t.Helper()
	api := NewAPI(srv.URL + "/api/sessions")
	s := New(api, "test-public-key", 100*time.Millisecond, zaptest.NewLogger(t).Sugar())
	t.Cleanup(s.Dispose)
	return s
}

func startSession(t *testing.T, srv *httptest.Server) *Session {
	t.Helper()
	s := newTestSession(t, srv)
	require.NoError(t, s.Start(context.Background()))
	require.NotEmpty(t, s.JoinCode())
	require.Eventually(t, s.IsConnected, 2*time.Second, 10*time.Millisecond,
		"session channel should come up on the first keepalive pass")
	return s
}

// memberConn is a fake player device talking to the join endpoint.
type memberConn struct {
	conn *websocket.Conn
	recv chan []byte
}

func dialMember(srv *httptest.Server, code, name string) (*websocket.Conn, error) {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") +
		"/api/sessions/join?code=" + code + "&name=" + name
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	return conn, err
}

func joinMember(t *testing.T, srv *httptest.Server, code, name string) *memberConn {
	t.Helper()
	conn, err := dialMember(srv, code, name)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })

	mc := &memberConn{conn: conn, recv: make(chan []byte, 16)}
	go func() {
		for {
			_, data, err := conn.Read(context.Background())
			if err != nil {
				close(mc.recv)
				return
			}
			mc.recv <- data
		}
	}()
	return mc
}

func (mc *memberConn) send(t *testing.T, payload string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, mc.conn.Write(ctx, websocket.MessageText, []byte(payload)))
}

func (mc *memberConn) expectDisplay(t *testing.T) protocol.Display {
	t.Helper()
	select {
	case data, ok := <-mc.recv:
		require.True(t, ok, "member socket closed while waiting for a display")
		var msg struct {
			Type    string
			Display protocol.Display
		}
		require.NoError(t, json.Unmarshal(data, &msg))
		require.Equal(t, "Display", msg.Type)
		return msg.Display
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for a display")
		return protocol.Display{}
	}
}

func waitFor(t *testing.T, s *Session, what string, match func(Event) bool) Event {
	t.Helper()
	deadline := time.After(eventTimeout)
	for {
		select {
		case ev := <-s.Events():
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
			return nil
		}
	}
}

func TestStartJoinAndBroadcast(t *testing.T) {
	srv, _ := newTestServer(t)
	s := startSession(t, srv)

	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)

	alice := joinMember(t, srv, s.JoinCode(), "Alice")

	ev := waitFor(t, s, "Alice to join", func(ev Event) bool {
		j, ok := ev.(PlayerJoined)
		return ok && j.Name == "Alice"
	})
	assert.Equal(t, PlayerJoined{Name: "Alice"}, ev)

	require.NoError(t, s.Display(protocol.Display{
		Stage: &protocol.Stage{Title: "Is everybody ready?"},
	}, ""))

	d := alice.expectDisplay(t)
	require.NotNil(t, d.Stage)
	assert.Equal(t, "Is everybody ready?", d.Stage.Title)

	require.Eventually(t, func() bool {
		for _, m := range s.Roster() {
			if m.Name == "Alice" && m.Connected {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "directory should mark Alice connected")
}

func TestMemberTrafficBecomesEvents(t *testing.T) {
	srv, _ := newTestServer(t)
	s := startSession(t, srv)

	alice := joinMember(t, srv, s.JoinCode(), "Alice")
	waitFor(t, s, "Alice to join", func(ev Event) bool {
		j, ok := ev.(PlayerJoined)
		return ok && j.Name == "Alice"
	})

	alice.send(t, `{"Type":"Response","Fields":{"answer":"a ghost"}}`)
	ev := waitFor(t, s, "Alice's answer", func(ev Event) bool {
		_, ok := ev.(PlayerResponded)
		return ok
	})
	resp := ev.(PlayerResponded)
	assert.Equal(t, "Alice", resp.Name)
	assert.Equal(t, "a ghost", resp.Fields["answer"])

	alice.send(t, `{"Type":"Action","Key":"start_game"}`)
	ev = waitFor(t, s, "Alice's action", func(ev Event) bool {
		_, ok := ev.(PlayerActed)
		return ok
	})
	assert.Equal(t, PlayerActed{Name: "Alice", Key: "start_game"}, ev)
}

func TestTargetedDisplayReachesOnlyTarget(t *testing.T) {
	srv, _ := newTestServer(t)
	s := startSession(t, srv)

	alice := joinMember(t, srv, s.JoinCode(), "Alice")
	bob := joinMember(t, srv, s.JoinCode(), "Bob")
	for _, name := range []string{"Alice", "Bob"} {
		waitFor(t, s, name+" to join", func(ev Event) bool {
			j, ok := ev.(PlayerJoined)
			return ok && j.Name == name
		})
	}

	require.NoError(t, s.Display(protocol.Display{
		Stage: &protocol.Stage{Title: "host only"},
	}, "Alice"))

	d := alice.expectDisplay(t)
	assert.Equal(t, "host only", d.Stage.Title)

	select {
	case data := <-bob.recv:
		t.Fatalf("targeted display leaked to another member: %s", data)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestDisplayReplayedToLateJoiner(t *testing.T) {
	srv, _ := newTestServer(t)
	s := startSession(t, srv)

	require.NoError(t, s.Display(protocol.Display{
		Stage: &protocol.Stage{Title: "Waiting for players..."},
	}, ""))

	// Alice joins after the broadcast and still gets the current screen.
	alice := joinMember(t, srv, s.JoinCode(), "Alice")
	d := alice.expectDisplay(t)
	require.NotNil(t, d.Stage)
	assert.Equal(t, "Waiting for players...", d.Stage.Title)
}

func TestDuplicateMemberNameRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	s := startSession(t, srv)

	joinMember(t, srv, s.JoinCode(), "Alice")

	conn, err := dialMember(srv, s.JoinCode(), "Alice")
	require.NoError(t, err, "the handshake itself succeeds")
	defer conn.Close(websocket.StatusNormalClosure, "done")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err = conn.Read(ctx)
	assert.Error(t, err, "the second device should be closed immediately")
}

func TestUnknownJoinCodeRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	startSession(t, srv)

	_, err := dialMember(srv, "NOSUCH", "Alice")
	assert.Error(t, err)
}

func TestRemoteDestroyClosesSessionOnce(t *testing.T) {
	srv, h := newTestServer(t)
	s := startSession(t, srv)

	// Pull the session out from under the host.
	found := make(chan *hub.Session, 1)
	h.Inbox() <- hub.FindByCode{Code: s.JoinCode(), Reply: found}
	server := <-found
	require.NotNil(t, server)
	destroyed := make(chan bool, 1)
	h.Inbox() <- hub.DestroySession{SessionID: server.ID, Secret: server.Secret, Reply: destroyed}
	require.True(t, <-destroyed)

	waitFor(t, s, "the session to close", func(ev Event) bool {
		_, ok := ev.(SessionClosed)
		return ok
	})
	assert.False(t, s.IsOpen())
	assert.ErrorIs(t, s.Display(protocol.Display{}, ""), ErrSessionClosed)

	// The keepalive keeps seeing 404s; no second SessionClosed may appear.
	select {
	case ev := <-s.Events():
		if _, ok := ev.(SessionClosed); ok {
			t.Fatal("SessionClosed emitted more than once")
		}
	case <-time.After(400 * time.Millisecond):
	}
}

func TestLifecycleErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	s := newTestSession(t, srv)

	assert.ErrorIs(t, s.Display(protocol.Display{}, ""), ErrNotStarted)

	s.Dispose()
	s.Dispose() // idempotent
	assert.ErrorIs(t, s.Start(context.Background()), ErrDisposed)
	assert.ErrorIs(t, s.Display(protocol.Display{}, ""), ErrDisposed)
}

func TestStartFailureAllowsRetry(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer broken.Close()

	s := New(NewAPI(broken.URL), "key", time.Second, zaptest.NewLogger(t).Sugar())
	defer s.Dispose()

	err := s.Start(context.Background())
	require.Error(t, err)

	// A failed create leaves the session startable, not wedged on
	// ErrAlreadyStarted.
	err = s.Start(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAlreadyStarted)
}
