package session

// Event is one inbound notification from the transport. Exactly one
// consumer is expected to drain Events(); delivery order matches frame
// arrival order on the wire.
type Event interface{ isSessionEvent() }

// PlayerJoined fires the first time a member name is seen, whether from a
// control frame, a client message or the ping member list.
type PlayerJoined struct{ Name string }

// PlayerDisconnected fires when a member's device drops off the channel.
// The player stays in the directory, marked disconnected.
type PlayerDisconnected struct{ Name string }

// PlayerResponded carries submitted form fields keyed by control key.
type PlayerResponded struct {
	Name   string
	Fields map[string]string
}

// PlayerActed carries a button press.
type PlayerActed struct {
	Name string
	Key  string
}

// SessionClosed fires exactly once, when the remote reports the session
// gone. It is terminal.
type SessionClosed struct{}

func (PlayerJoined) isSessionEvent()       {}
func (PlayerDisconnected) isSessionEvent() {}
func (PlayerResponded) isSessionEvent()    {}
func (PlayerActed) isSessionEvent()        {}
func (SessionClosed) isSessionEvent()      {}
