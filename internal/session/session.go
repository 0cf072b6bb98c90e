package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"juicebox/internal/protocol"
)

var (
	ErrAlreadyStarted = errors.New("session already started")
	ErrNotStarted     = errors.New("session not started")
	ErrDisposed       = errors.New("session disposed")
	ErrSessionClosed  = errors.New("session closed")
)

const (
	sendRetryDelay = time.Second
	writeTimeout   = 5 * time.Second
	dialTimeout    = 10 * time.Second
)

// Member is a snapshot of one player in the session directory. Names are
// unique case-insensitively; departed players stay in the directory with
// Connected false.
type Member struct {
	Name      string
	Connected bool
	Joined    time.Time
}

type player struct {
	name      string
	joined    time.Time
	connected bool
}

type outFrame struct{ data []byte }

// Session owns one remote game session: creation, the websocket channel
// with its keepalive/reconnect loop, the member directory and the
// per-player display cache used for replay on reconnect.
//
// Lifecycle is Start -> Dispose. Inbound traffic surfaces on Events(),
// which exactly one consumer is expected to drain.
type Session struct {
	api          *API
	publicKey    string
	pingInterval time.Duration
	log          *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	started        bool
	open           bool
	disposed       bool
	sessionID      int64
	secret         string
	joinCode       string
	conn           *websocket.Conn
	players        map[string]*player
	playerDisplays map[string]protocol.Display
	defaultDisplay *protocol.Display

	outbox    chan outFrame
	events    chan Event
	closeOnce sync.Once
}

func New(api *API, publicKey string, pingInterval time.Duration, log *zap.SugaredLogger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		api:            api,
		publicKey:      publicKey,
		pingInterval:   pingInterval,
		log:            log,
		ctx:            ctx,
		cancel:         cancel,
		players:        make(map[string]*player),
		playerDisplays: make(map[string]protocol.Display),
		outbox:         make(chan outFrame, 64),
		events:         make(chan Event, 64),
	}
}

// Start creates the remote session and launches the keepalive and send
// loops. The websocket itself is established by the first keepalive pass.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	created, err := s.api.Create(ctx, s.publicKey)
	if err != nil {
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
		return fmt.Errorf("create session: %w", err)
	}

	s.mu.Lock()
	s.sessionID = created.SessionID
	s.secret = created.HostSecretKey
	s.joinCode = created.JoinPassword
	s.open = true
	s.mu.Unlock()

	s.log.Infow("session created", "sessionId", created.SessionID, "joinCode", created.JoinPassword)

	go s.keepaliveLoop()
	go s.sendLoop()
	return nil
}

// Events returns the inbound event stream.
func (s *Session) Events() <-chan Event { return s.events }

func (s *Session) JoinCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joinCode
}

func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open && s.conn != nil
}

// Roster snapshots the member directory in no particular order.
func (s *Session) Roster() []Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := make([]Member, 0, len(s.players))
	for _, p := range s.players {
		members = append(members, Member{Name: p.name, Connected: p.connected, Joined: p.joined})
	}
	return members
}

// Display queues a display for delivery. An empty forPlayer broadcasts to
// everyone and resets the per-player cache; a targeted display only
// replaces that player's cached display. Queued frames to the same player
// are delivered in order and are never dropped while the session is open;
// the call blocks only when the queue is full.
func (s *Session) Display(d protocol.Display, forPlayer string) error {
	s.mu.Lock()
	switch {
	case s.disposed:
		s.mu.Unlock()
		return ErrDisposed
	case !s.started:
		s.mu.Unlock()
		return ErrNotStarted
	case !s.open:
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if forPlayer == "" {
		clear(s.playerDisplays)
		s.defaultDisplay = &d
	} else {
		s.playerDisplays[strings.ToLower(forPlayer)] = d
	}
	s.mu.Unlock()

	data, err := protocol.EncodeDisplay(d, forPlayer)
	if err != nil {
		return fmt.Errorf("encode display: %w", err)
	}

	select {
	case s.outbox <- outFrame{data: data}:
		return nil
	case <-s.ctx.Done():
		return ErrSessionClosed
	}
}

// Dispose tears the session down: stops the loops, best-effort destroys
// the remote session, closes the socket and clears the directory and
// caches. Safe to call multiple times and from any state.
func (s *Session) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	open := s.open
	s.open = false
	id, secret := s.sessionID, s.secret
	conn := s.conn
	s.conn = nil
	s.players = make(map[string]*player)
	s.playerDisplays = make(map[string]protocol.Display)
	s.defaultDisplay = nil
	s.mu.Unlock()

	if open && id > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.api.Destroy(ctx, id, secret); err != nil {
			s.log.Warnw("session destroy failed", "error", err)
		}
		cancel()
	}

	s.cancel()
	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "disposing")
	}
}

func (s *Session) sendLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case f := <-s.outbox:
			if !s.writeFrame(f) {
				return
			}
		}
	}
}

// writeFrame blocks until the frame goes out, retrying while the socket
// is down. Returns false when the session closes first.
func (s *Session) writeFrame(f outFrame) bool {
	for {
		s.mu.Lock()
		conn, open := s.conn, s.open
		s.mu.Unlock()

		if !open {
			s.log.Warnw("dropping outbound frame, session closed")
			return false
		}

		if conn != nil {
			ctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
			err := conn.Write(ctx, websocket.MessageText, f.data)
			cancel()
			if err == nil {
				return true
			}
			if s.ctx.Err() != nil {
				return false
			}
			s.log.Warnw("websocket write failed", "error", err)
			s.dropConn(conn)
		}

		select {
		case <-s.ctx.Done():
			return false
		case <-time.After(sendRetryDelay):
		}
	}
}

// dropConn clears the failed connection so the keepalive loop redials,
// unless a newer connection already replaced it.
func (s *Session) dropConn(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	conn.Close(websocket.StatusInternalError, "write failed")
}

// keepaliveLoop runs for the lifetime of the session: reconnects the
// socket when it is down and pings the remote on a fixed interval. A
// "not found" from negotiate or ping closes the session for good.
func (s *Session) keepaliveLoop() {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		if !s.keepaliveOnce() {
			return
		}
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Session) keepaliveOnce() bool {
	s.mu.Lock()
	open, connected := s.open, s.conn != nil
	id, secret := s.sessionID, s.secret
	s.mu.Unlock()
	if !open {
		return false
	}

	if !connected && !s.connect(id, secret) {
		return false
	}

	// Ping regardless of connection outcome; the member list also picks
	// up players who joined without a Connected frame.
	members, err := s.api.Ping(s.ctx, id, secret)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		s.closeSession()
		return false
	case err != nil:
		if s.ctx.Err() != nil {
			return false
		}
		s.log.Warnw("session ping failed", "error", err)
		return true
	}

	for _, name := range members {
		s.registerPlayer(name)
	}
	return true
}

// connect negotiates a fresh endpoint and dials it. Returns false only
// when the session is gone; a failed dial is retried on the next
// keepalive pass.
func (s *Session) connect(id int64, secret string) bool {
	endpoint, err := s.api.Negotiate(s.ctx, id, secret)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		s.closeSession()
		return false
	case err != nil:
		if s.ctx.Err() != nil {
			return false
		}
		s.log.Warnw("negotiate failed", "error", err)
		return true
	}

	ctx, cancel := context.WithTimeout(s.ctx, dialTimeout)
	conn, _, err := websocket.Dial(ctx, endpoint, nil)
	cancel()
	if err != nil {
		if s.ctx.Err() == nil {
			s.log.Warnw("websocket dial failed", "endpoint", endpoint, "error", err)
		}
		return true
	}

	s.mu.Lock()
	old := s.conn
	s.conn = conn
	s.mu.Unlock()
	if old != nil {
		old.Close(websocket.StatusNormalClosure, "superseded")
	}
	s.log.Infow("connected to session channel")

	go s.readLoop(conn)
	return true
}

func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(s.ctx)
		if err != nil {
			s.mu.Lock()
			current := s.conn == conn
			if current {
				s.conn = nil
			}
			open := s.open
			s.mu.Unlock()
			if current && open && s.ctx.Err() == nil {
				s.log.Warnw("lost session channel connection", "error", err)
			}
			return
		}
		s.handleFrame(data)
	}
}

func (s *Session) handleFrame(data []byte) {
	if protocol.IsNoise(data) {
		return
	}

	frame, err := protocol.ParseFrame(data)
	if err != nil {
		s.log.Warnw("dropping bad frame", "error", err)
		return
	}

	switch f := frame.(type) {
	case protocol.Connected:
		s.registerPlayer(f.MemberName)
		s.setConnected(f.MemberName, true)
		s.replayDisplay(f.MemberName)
	case protocol.Disconnected:
		s.registerPlayer(f.MemberName)
		s.setConnected(f.MemberName, false)
		s.emit(PlayerDisconnected{Name: f.MemberName})
	case protocol.Response:
		s.registerPlayer(f.MemberName)
		s.setConnected(f.MemberName, true)
		s.emit(PlayerResponded{Name: f.MemberName, Fields: f.Fields})
	case protocol.Action:
		s.registerPlayer(f.MemberName)
		s.setConnected(f.MemberName, true)
		s.emit(PlayerActed{Name: f.MemberName, Key: f.Key})
	}
}

func (s *Session) registerPlayer(name string) {
	s.mu.Lock()
	key := strings.ToLower(name)
	_, known := s.players[key]
	if !known {
		s.players[key] = &player{name: name, joined: time.Now()}
	}
	s.mu.Unlock()

	if !known {
		s.emit(PlayerJoined{Name: name})
	}
}

func (s *Session) setConnected(name string, connected bool) {
	s.mu.Lock()
	if p, ok := s.players[strings.ToLower(name)]; ok {
		p.connected = connected
	}
	s.mu.Unlock()
}

// replayDisplay re-sends the cached display to a player whose device just
// attached, so reconnecting mid-round restores their screen.
func (s *Session) replayDisplay(name string) {
	s.mu.Lock()
	d, ok := s.playerDisplays[strings.ToLower(name)]
	if !ok && s.defaultDisplay != nil {
		d, ok = *s.defaultDisplay, true
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	data, err := protocol.EncodeDisplay(d, name)
	if err != nil {
		s.log.Errorw("encode replay display", "error", err)
		return
	}
	select {
	case s.outbox <- outFrame{data: data}:
	case <-s.ctx.Done():
	}
}

// closeSession handles the remote reporting the session gone. It runs at
// most once no matter how many keepalive calls race into it.
func (s *Session) closeSession() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.open = false
		conn := s.conn
		s.conn = nil
		s.mu.Unlock()

		if conn != nil {
			conn.Close(websocket.StatusNormalClosure, "session closed")
		}
		s.log.Infow("session closed by remote")
		s.emit(SessionClosed{})
	})
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}
