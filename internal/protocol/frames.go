package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrBadFrame     = errors.New("malformed frame")
	ErrUnknownFrame = errors.New("unknown frame type")
)

// IsNoise reports whether raw is a transport-level acknowledgement or
// failure string rather than an application frame. Noise frames are
// dropped before JSON parsing.
func IsNoise(raw []byte) bool {
	s := string(raw)
	return s == "ack" || strings.HasPrefix(s, "fail:")
}

// EncodeDisplay wraps a display in the outbound send frame. An empty `to`
// addresses every connected member.
func EncodeDisplay(d Display, to string) ([]byte, error) {
	frame := struct {
		To      string `json:",omitempty"`
		Message struct {
			Type    string
			Display Display
		}
	}{To: to}
	frame.Message.Type = "Display"
	frame.Message.Display = d
	return json.Marshal(frame)
}

// Frame is one decoded inbound message from the persistent channel.
type Frame interface{ isFrame() }

// Connected reports a member's device attaching to the channel.
type Connected struct{ MemberName string }

// Disconnected reports a member's device dropping off the channel.
type Disconnected struct{ MemberName string }

// Response carries a member's submitted form fields, keyed by control key.
type Response struct {
	MemberName string
	Fields     map[string]string
}

// Action carries a member's button press.
type Action struct {
	MemberName string
	Key        string
}

func (Connected) isFrame()    {}
func (Disconnected) isFrame() {}
func (Response) isFrame()     {}
func (Action) isFrame()       {}

// ParseFrame decodes one inbound channel frame. Callers are expected to
// filter with IsNoise first. Malformed or unrecognized frames come back
// as errors wrapping ErrBadFrame or ErrUnknownFrame; they carry no state
// change and should be logged and dropped.
func ParseFrame(raw []byte) (Frame, error) {
	var outer struct {
		Type       string
		MemberName string
		Message    json.RawMessage
	}
	if err := json.Unmarshal(raw, &outer); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	if outer.Type == "" {
		return nil, fmt.Errorf("%w: missing Type", ErrBadFrame)
	}

	switch outer.Type {
	case "Connected":
		if outer.MemberName == "" {
			return nil, fmt.Errorf("%w: Connected frame without MemberName", ErrBadFrame)
		}
		return Connected{MemberName: outer.MemberName}, nil

	case "Disconnected":
		if outer.MemberName == "" {
			return nil, fmt.Errorf("%w: Disconnected frame without MemberName", ErrBadFrame)
		}
		return Disconnected{MemberName: outer.MemberName}, nil

	case "Message":
		if outer.MemberName == "" {
			return nil, fmt.Errorf("%w: Message frame without MemberName", ErrBadFrame)
		}
		return parseClientMessage(outer.MemberName, outer.Message)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrame, outer.Type)
	}
}

func parseClientMessage(member string, raw json.RawMessage) (Frame, error) {
	var inner struct {
		Type   string
		Fields map[string]string
		Key    string
	}
	if err := json.Unmarshal(raw, &inner); err != nil {
		return nil, fmt.Errorf("%w: bad client message: %v", ErrBadFrame, err)
	}

	switch inner.Type {
	case "Response":
		if inner.Fields == nil {
			return nil, fmt.Errorf("%w: Response without Fields", ErrBadFrame)
		}
		return Response{MemberName: member, Fields: inner.Fields}, nil

	case "Action":
		if inner.Key == "" {
			return nil, fmt.Errorf("%w: Action without Key", ErrBadFrame)
		}
		return Action{MemberName: member, Key: inner.Key}, nil

	default:
		return nil, fmt.Errorf("%w: client message %q", ErrUnknownFrame, inner.Type)
	}
}
