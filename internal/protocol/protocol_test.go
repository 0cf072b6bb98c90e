package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplayRoundTrip_RadioGroup(t *testing.T) {
	in := Display{
		Header: &Header{RoundNumber: 3, RoundTime: 60},
		Stage:  &Stage{Title: "The worst Halloween costume for a young child"},
		Form: &Form{
			SubmitLabel: "Submit",
			Controls: []Control{
				RadioGroup{Key: "vote", Options: []RadioOption{
					{Label: "a ghost", Value: "Alice"},
					{Label: "a tax auditor", Value: "Bob"},
					{Label: "homework", Value: "Carol"},
				}},
			},
		},
	}

	raw, err := json.Marshal(in)
	require.NoError(t, err)

	var out Display
	require.NoError(t, json.Unmarshal(raw, &out))

	require.NotNil(t, out.Form)
	require.Len(t, out.Form.Controls, 1)
	group, ok := out.Form.Controls[0].(RadioGroup)
	require.True(t, ok, "control should decode back to a RadioGroup")
	assert.Equal(t, "vote", group.Key)
	require.Len(t, group.Options, 3)
	for i, opt := range group.Options {
		assert.Equal(t, in.Form.Controls[0].(RadioGroup).Options[i], opt)
	}
	assert.Equal(t, in.Header, out.Header)
	assert.Equal(t, in.Stage, out.Stage)
}

func TestControlsCarryTypeDiscriminator(t *testing.T) {
	cases := []struct {
		control Control
		want    string
	}{
		{Input{Key: "answer"}, "Input"},
		{Textarea{Key: "story"}, "Textarea"},
		{RadioGroup{Key: "vote"}, "RadioGroup"},
		{Drawing{Key: "answer", Width: 320, Height: 240}, "Drawing"},
		{Button{Key: "start_game", Label: "Start Game"}, "Button"},
	}

	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			raw, err := json.Marshal(tc.control)
			require.NoError(t, err)

			var tag struct{ Type string }
			require.NoError(t, json.Unmarshal(raw, &tag))
			assert.Equal(t, tc.want, tag.Type)
		})
	}
}

func TestFormRejectsUnknownControl(t *testing.T) {
	var f Form
	err := json.Unmarshal([]byte(`{"SubmitLabel":"Go","Controls":[{"Type":"Slider","Key":"x"}]}`), &f)
	require.ErrorIs(t, err, ErrUnknownControl)
}

func TestEncodeDisplay_BroadcastOmitsTo(t *testing.T) {
	raw, err := EncodeDisplay(Display{Stage: &Stage{Title: "hi"}}, "")
	require.NoError(t, err)

	var frame map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &frame))
	_, hasTo := frame["To"]
	assert.False(t, hasTo, "broadcast frames must not carry a To address")

	var msg struct {
		Message struct {
			Type    string
			Display Display
		}
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "Display", msg.Message.Type)
	assert.Equal(t, "hi", msg.Message.Display.Stage.Title)
}

func TestEncodeDisplay_Targeted(t *testing.T) {
	raw, err := EncodeDisplay(Display{}, "Alice")
	require.NoError(t, err)

	var frame struct{ To string }
	require.NoError(t, json.Unmarshal(raw, &frame))
	assert.Equal(t, "Alice", frame.To)
}

func TestIsNoise(t *testing.T) {
	assert.True(t, IsNoise([]byte("ack")))
	assert.True(t, IsNoise([]byte("fail:no such member")))
	assert.False(t, IsNoise([]byte(`{"Type":"Connected","MemberName":"a"}`)))
}

func TestParseFrame(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Frame
	}{
		{
			name: "connected",
			raw:  `{"Type":"Connected","MemberName":"Alice"}`,
			want: Connected{MemberName: "Alice"},
		},
		{
			name: "disconnected",
			raw:  `{"Type":"Disconnected","MemberName":"Bob"}`,
			want: Disconnected{MemberName: "Bob"},
		},
		{
			name: "response",
			raw:  `{"Type":"Message","MemberName":"Alice","Message":{"Type":"Response","Fields":{"answer":"a ghost"}}}`,
			want: Response{MemberName: "Alice", Fields: map[string]string{"answer": "a ghost"}},
		},
		{
			name: "action",
			raw:  `{"Type":"Message","MemberName":"Alice","Message":{"Type":"Action","Key":"start_game"}}`,
			want: Action{MemberName: "Alice", Key: "start_game"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseFrame([]byte(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseFrame_Violations(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"not json", `{{{`, ErrBadFrame},
		{"missing type", `{"MemberName":"Alice"}`, ErrBadFrame},
		{"unknown type", `{"Type":"Telemetry"}`, ErrUnknownFrame},
		{"connected without member", `{"Type":"Connected"}`, ErrBadFrame},
		{"message without member", `{"Type":"Message","Message":{"Type":"Action","Key":"k"}}`, ErrBadFrame},
		{"response without fields", `{"Type":"Message","MemberName":"a","Message":{"Type":"Response"}}`, ErrBadFrame},
		{"action without key", `{"Type":"Message","MemberName":"a","Message":{"Type":"Action"}}`, ErrBadFrame},
		{"unknown client message", `{"Type":"Message","MemberName":"a","Message":{"Type":"Emote"}}`, ErrUnknownFrame},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseFrame([]byte(tc.raw))
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
		})
	}
}
