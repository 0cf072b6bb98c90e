package hub

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HubMsg is the typed inbox protocol for the session registry.
type HubMsg interface{ isHubMsg() }

// CreateSession allocates a new session with a fresh id, secret and join
// code.
type CreateSession struct{ Reply chan *Session }

// Authorize resolves a session by id and host secret; Reply gets nil
// when either does not match.
type Authorize struct {
	SessionID int64
	Secret    string
	Reply     chan *Session
}

// FindByCode resolves a session by its join code; Reply may get nil.
type FindByCode struct {
	Code  string
	Reply chan *Session
}

// DestroySession removes a session after authorizing; Reply reports
// whether anything was removed.
type DestroySession struct {
	SessionID int64
	Secret    string
	Reply     chan bool
}

// ShutdownHub closes every session and stops the registry.
type ShutdownHub struct{}

func (CreateSession) isHubMsg()  {}
func (Authorize) isHubMsg()      {}
func (FindByCode) isHubMsg()     {}
func (DestroySession) isHubMsg() {}
func (ShutdownHub) isHubMsg()    {}

// Hub is the registry actor owning every server-side session.
type Hub struct {
	inbox    chan HubMsg
	sessions map[int64]*Session
	byCode   map[string]*Session
	nextID   int64
	ctx      context.Context
	cancel   context.CancelFunc
	log      *zap.SugaredLogger
}

func NewHub(parent context.Context, log *zap.SugaredLogger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		sessions: make(map[int64]*Session),
		byCode:   make(map[string]*Session),
		nextID:   1,
		ctx:      ctx,
		cancel:   cancel,
		log:      log,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateSession:
				msg.Reply <- h.create()

			case Authorize:
				msg.Reply <- h.authorize(msg.SessionID, msg.Secret)

			case FindByCode:
				msg.Reply <- h.byCode[strings.ToUpper(msg.Code)]

			case DestroySession:
				s := h.authorize(msg.SessionID, msg.Secret)
				if s != nil {
					h.remove(s)
				}
				msg.Reply <- s != nil

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) create() *Session {
	code := h.uniqueCode()
	s := newSession(h.ctx, h.nextID, uuid.NewString(), code, h.log)
	h.sessions[s.ID] = s
	h.byCode[code] = s
	h.nextID++
	h.log.Infow("session created", "sessionId", s.ID, "joinCode", code)
	return s
}

func (h *Hub) authorize(id int64, secret string) *Session {
	s := h.sessions[id]
	if s == nil || s.Secret != secret {
		return nil
	}
	return s
}

func (h *Hub) remove(s *Session) {
	delete(h.sessions, s.ID)
	delete(h.byCode, s.JoinCode)
	s.Inbox() <- CloseSession{}
	h.log.Infow("session destroyed", "sessionId", s.ID)
}

func (h *Hub) shutdown() {
	for _, s := range h.sessions {
		s.Inbox() <- CloseSession{}
	}
	clear(h.sessions)
	clear(h.byCode)
	h.cancel()
}

func (h *Hub) uniqueCode() string {
	for {
		code, err := generateCode()
		if err != nil {
			h.log.Errorw("join code generation failed", "error", err)
			continue
		}
		if _, taken := h.byCode[code]; !taken {
			return code
		}
	}
}

func generateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}
