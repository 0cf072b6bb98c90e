package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"

	"juicebox/internal/hub"
)

const wsWriteTimeout = 3 * time.Second

// ConnectHost is the host side of the persistent channel. Frames from
// the host go to the session actor for routing; the actor's replies and
// wrapped member traffic flow back through the out channel.
func (h *Handlers) ConnectHost(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("session"), 10, 64)
	if err != nil {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}

	reply := make(chan *hub.Session, 1)
	h.hub.Inbox() <- hub.Authorize{SessionID: id, Secret: r.URL.Query().Get("secret"), Reply: reply}
	s := <-reply
	if s == nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	out := make(chan []byte, 64)
	s.Inbox() <- hub.AttachHost{Out: out}
	defer func() { s.Inbox() <- hub.DetachHost{Out: out} }()

	go writePump(r.Context(), conn, out)

	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}
		s.Inbox() <- hub.HostFrame{Raw: data}
	}
}

// JoinMember is the member ("phone") side of the channel.
func (h *Handlers) JoinMember(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	name := r.URL.Query().Get("name")
	if code == "" || name == "" {
		http.Error(w, "missing code or name", http.StatusBadRequest)
		return
	}

	reply := make(chan *hub.Session, 1)
	h.hub.Inbox() <- hub.FindByCode{Code: code, Reply: reply}
	s := <-reply
	if s == nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	out := make(chan []byte, 64)
	joined := make(chan bool, 1)
	s.Inbox() <- hub.JoinMember{Name: name, Out: out, Reply: joined}
	if !<-joined {
		conn.Close(websocket.StatusPolicyViolation, "name already connected")
		return
	}
	defer func() { s.Inbox() <- hub.LeaveMember{Name: name} }()

	go writePump(r.Context(), conn, out)

	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}
		s.Inbox() <- hub.MemberFrame{Name: name, Raw: data}
	}
}

// writePump drains out onto the socket. When the session actor closes
// the channel it also closes the socket, which unblocks the read loop.
func writePump(ctx context.Context, conn *websocket.Conn, out <-chan []byte) {
	for raw := range out {
		wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
		err := conn.Write(wctx, websocket.MessageText, raw)
		cancel()
		if err != nil {
			return
		}
	}
	conn.Close(websocket.StatusNormalClosure, "session closed")
}
