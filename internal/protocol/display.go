package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownControl = errors.New("unknown form control type")

// Display is one outbound rendering instruction for a player's device.
// All three parts are independent and optional; a display is immutable
// once handed to the session.
type Display struct {
	Header *Header `json:",omitempty"`
	Stage  *Stage  `json:",omitempty"`
	Form   *Form   `json:",omitempty"`
}

type Header struct {
	RoundNumber int `json:",omitempty"`
	RoundTime   int `json:",omitempty"`
}

type Stage struct {
	Title    string `json:",omitempty"`
	Subtitle string `json:",omitempty"`
}

type Form struct {
	Header      string `json:",omitempty"`
	SubmitLabel string
	Controls    []Control
}

// Control is one interactive element inside a form. Every concrete control
// serializes with a Type discriminator so clients can pick the widget
// without sniffing fields.
type Control interface {
	ControlType() string
}

type Input struct {
	Key         string
	Label       string `json:",omitempty"`
	Placeholder string `json:",omitempty"`
	MaxLength   int    `json:",omitempty"`
	Value       string `json:",omitempty"`
}

func (Input) ControlType() string { return "Input" }

type Textarea struct {
	Key         string
	Label       string `json:",omitempty"`
	Placeholder string `json:",omitempty"`
	MaxLength   int    `json:",omitempty"`
	Rows        int    `json:",omitempty"`
	Value       string `json:",omitempty"`
}

func (Textarea) ControlType() string { return "Textarea" }

type RadioGroup struct {
	Key     string
	Options []RadioOption
}

func (RadioGroup) ControlType() string { return "RadioGroup" }

type RadioOption struct {
	Label string
	Value string
}

type Drawing struct {
	Key    string
	Width  int
	Height int
}

func (Drawing) ControlType() string { return "Drawing" }

type Button struct {
	Key     string
	Label   string
	Variant string `json:",omitempty"`
}

func (Button) ControlType() string { return "Button" }

func (c Input) MarshalJSON() ([]byte, error)      { return marshalControl(c) }
func (c Textarea) MarshalJSON() ([]byte, error)   { return marshalControl(c) }
func (c RadioGroup) MarshalJSON() ([]byte, error) { return marshalControl(c) }
func (c Drawing) MarshalJSON() ([]byte, error)    { return marshalControl(c) }
func (c Button) MarshalJSON() ([]byte, error)     { return marshalControl(c) }

func marshalControl(c Control) ([]byte, error) {
	fields := map[string]any{"Type": c.ControlType()}

	// Round-trip through plain encoding to pick up the concrete fields
	// without recursing into the control's own MarshalJSON.
	raw, err := json.Marshal(shadow(c))
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

// shadow strips the MarshalJSON method from a concrete control.
func shadow(c Control) any {
	switch v := c.(type) {
	case Input:
		type plain Input
		return plain(v)
	case Textarea:
		type plain Textarea
		return plain(v)
	case RadioGroup:
		type plain RadioGroup
		return plain(v)
	case Drawing:
		type plain Drawing
		return plain(v)
	case Button:
		type plain Button
		return plain(v)
	default:
		return c
	}
}

func (f *Form) UnmarshalJSON(data []byte) error {
	var raw struct {
		Header      string
		SubmitLabel string
		Controls    []json.RawMessage
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	f.Header = raw.Header
	f.SubmitLabel = raw.SubmitLabel
	f.Controls = f.Controls[:0]
	for _, rc := range raw.Controls {
		c, err := unmarshalControl(rc)
		if err != nil {
			return err
		}
		f.Controls = append(f.Controls, c)
	}
	return nil
}

func unmarshalControl(raw json.RawMessage) (Control, error) {
	var tag struct{ Type string }
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, err
	}

	var c Control
	switch tag.Type {
	case "Input":
		c = &Input{}
	case "Textarea":
		c = &Textarea{}
	case "RadioGroup":
		c = &RadioGroup{}
	case "Drawing":
		c = &Drawing{}
	case "Button":
		c = &Button{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownControl, tag.Type)
	}

	if err := json.Unmarshal(raw, c); err != nil {
		return nil, err
	}
	return deref(c), nil
}

func deref(c Control) Control {
	switch v := c.(type) {
	case *Input:
		return *v
	case *Textarea:
		return *v
	case *RadioGroup:
		return *v
	case *Drawing:
		return *v
	case *Button:
		return *v
	default:
		return c
	}
}
