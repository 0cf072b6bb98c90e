package game

import "time"

// Screen identifies what the host presentation should show for the
// active state.
type Screen string

const (
	ScreenSettingUp         Screen = "SettingUp"
	ScreenWaitingForPlayers Screen = "WaitingForPlayers"
	ScreenQuestionPrompt    Screen = "QuestionPrompt"
	ScreenVoting            Screen = "Voting"
	ScreenResults           Screen = "Results"
	ScreenGameOver          Screen = "GameOver"
	ScreenError             Screen = "Error"
)

// State is one variant of the round state machine. Implementations embed
// baseState and override the hooks they care about. All hooks run on the
// game's tick goroutine; a hook that wants to advance the machine calls
// g.switchState, which enforces the single-pending-transition guard.
type State interface {
	Screen() Screen

	// Timeout returns the unscaled state timeout; zero means the state
	// never times out on its own.
	Timeout() time.Duration

	Enter(g *Game)
	Exit(g *Game)
	TimedOut(g *Game)
	PlayerJoined(g *Game, p *Player)
	PlayerResponse(g *Game, p *Player, fields map[string]string)
	PlayerAction(g *Game, p *Player, key string)
}

type baseState struct{}

func (baseState) Timeout() time.Duration                       { return 0 }
func (baseState) Enter(*Game)                                  {}
func (baseState) Exit(*Game)                                   {}
func (baseState) TimedOut(*Game)                               {}
func (baseState) PlayerJoined(*Game, *Player)                  {}
func (baseState) PlayerResponse(*Game, *Player, map[string]string) {}
func (baseState) PlayerAction(*Game, *Player, string)          {}
