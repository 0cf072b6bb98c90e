package hub

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"
)

// SessionMsg is the typed inbox protocol for a session actor.
type SessionMsg interface{ isSessionMsg() }

// AttachHost installs the host's outbound channel, superseding any
// previous host connection.
type AttachHost struct{ Out chan []byte }

// DetachHost removes the host channel if it is still the current one.
type DetachHost struct{ Out chan []byte }

// HostFrame is one raw {To, Message} frame from the host socket.
type HostFrame struct{ Raw []byte }

// JoinMember registers a member device. Reply receives false when the
// name is empty or already attached.
type JoinMember struct {
	Name  string
	Out   chan []byte
	Reply chan bool
}

// LeaveMember detaches a member device; the name stays known.
type LeaveMember struct{ Name string }

// MemberFrame is one raw client payload from a member socket.
type MemberFrame struct {
	Name string
	Raw  json.RawMessage
}

// MemberNames asks for every member name ever seen on this session.
type MemberNames struct{ Reply chan []string }

// CloseSession tears the actor down and disconnects everyone.
type CloseSession struct{}

func (AttachHost) isSessionMsg()   {}
func (DetachHost) isSessionMsg()   {}
func (HostFrame) isSessionMsg()    {}
func (JoinMember) isSessionMsg()   {}
func (LeaveMember) isSessionMsg()  {}
func (MemberFrame) isSessionMsg()  {}
func (MemberNames) isSessionMsg()  {}
func (CloseSession) isSessionMsg() {}

type member struct {
	name string
	out  chan []byte // nil while detached
}

// Session is the server-side half of one game session: a single actor
// goroutine routing display traffic from the host to members and member
// traffic back to the host, wrapped in the channel's control frames.
type Session struct {
	ID       int64
	Secret   string
	JoinCode string

	inbox   chan SessionMsg
	host    chan []byte
	members map[string]*member // keyed by lowercase name
	ctx     context.Context
	cancel  context.CancelFunc
	log     *zap.SugaredLogger
}

func newSession(parent context.Context, id int64, secret, joinCode string, log *zap.SugaredLogger) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		ID:       id,
		Secret:   secret,
		JoinCode: joinCode,
		inbox:    make(chan SessionMsg, 64),
		members:  make(map[string]*member),
		ctx:      ctx,
		cancel:   cancel,
		log:      log,
	}
	go s.loop()
	return s
}

func (s *Session) Inbox() chan<- SessionMsg { return s.inbox }

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case AttachHost:
				if s.host != nil {
					close(s.host)
				}
				s.host = msg.Out

			case DetachHost:
				if s.host == msg.Out {
					s.host = nil
				}

			case HostFrame:
				s.routeHostFrame(msg.Raw)

			case JoinMember:
				msg.Reply <- s.join(msg.Name, msg.Out)

			case LeaveMember:
				s.leave(msg.Name)

			case MemberFrame:
				s.forwardToHost(msg.Name, msg.Raw)

			case MemberNames:
				names := make([]string, 0, len(s.members))
				for _, mem := range s.members {
					names = append(names, mem.name)
				}
				msg.Reply <- names

			case CloseSession:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) shutdown() {
	if s.host != nil {
		close(s.host)
		s.host = nil
	}
	for _, mem := range s.members {
		if mem.out != nil {
			close(mem.out)
			mem.out = nil
		}
	}
	s.cancel()
}

// routeHostFrame delivers a display to one member or to everyone, then
// acks the host.
func (s *Session) routeHostFrame(raw []byte) {
	var frame struct {
		To      string
		Message json.RawMessage
	}
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Message == nil {
		s.sendHost([]byte("fail:bad frame"))
		return
	}

	if frame.To == "" {
		for _, mem := range s.members {
			s.sendMember(mem, frame.Message)
		}
	} else {
		mem := s.members[strings.ToLower(frame.To)]
		if mem == nil {
			s.sendHost([]byte("fail:no such member"))
			return
		}
		s.sendMember(mem, frame.Message)
	}

	s.sendHost([]byte("ack"))
}

func (s *Session) join(name string, out chan []byte) bool {
	if name == "" {
		return false
	}
	key := strings.ToLower(name)
	mem := s.members[key]
	if mem == nil {
		mem = &member{name: name}
		s.members[key] = mem
	}
	if mem.out != nil {
		// One device per member name.
		return false
	}
	mem.out = out

	s.notifyHost(map[string]string{"Type": "Connected", "MemberName": mem.name})
	return true
}

func (s *Session) leave(name string) {
	mem := s.members[strings.ToLower(name)]
	if mem == nil || mem.out == nil {
		return
	}
	close(mem.out)
	mem.out = nil

	s.notifyHost(map[string]string{"Type": "Disconnected", "MemberName": mem.name})
}

func (s *Session) forwardToHost(name string, raw json.RawMessage) {
	mem := s.members[strings.ToLower(name)]
	if mem == nil {
		return
	}
	s.notifyHost(struct {
		Type       string
		MemberName string
		Message    json.RawMessage
	}{"Message", mem.name, raw})
}

func (s *Session) notifyHost(frame any) {
	raw, err := json.Marshal(frame)
	if err != nil {
		s.log.Errorw("encode host frame", "error", err)
		return
	}
	s.sendHost(raw)
}

func (s *Session) sendHost(raw []byte) {
	if s.host == nil {
		return
	}
	select {
	case s.host <- raw:
	default:
		// Host writer is stuck; drop the connection and let the host
		// reconnect through negotiate.
		close(s.host)
		s.host = nil
	}
}

func (s *Session) sendMember(mem *member, raw []byte) {
	if mem.out == nil {
		return
	}
	select {
	case mem.out <- raw:
	default:
		close(mem.out)
		mem.out = nil
	}
}
