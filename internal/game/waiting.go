package game

import (
	"fmt"

	"juicebox/internal/protocol"
)

const minPlayers = 2

// SettingUp is the initial state while the session is being created.
// External initialization moves the machine on; it has no behavior of
// its own.
type SettingUp struct{ baseState }

func (*SettingUp) Screen() Screen { return ScreenSettingUp }

// WaitingForPlayers holds the lobby open until the host starts the game.
// The host is the first player to join; only the host's start_game
// action is honored, and only once enough players are in.
type WaitingForPlayers struct{ baseState }

func NewWaitingForPlayers() *WaitingForPlayers { return &WaitingForPlayers{} }

func (*WaitingForPlayers) Screen() Screen { return ScreenWaitingForPlayers }

func (s *WaitingForPlayers) Enter(g *Game) {
	s.updateDisplay(g)
}

func (s *WaitingForPlayers) PlayerJoined(g *Game, _ *Player) {
	s.updateDisplay(g)
}

func (s *WaitingForPlayers) PlayerAction(g *Game, p *Player, key string) {
	if key != "start_game" {
		g.log.Warnw("ignoring unexpected action", "player", p.Name, "key", key)
		return
	}
	if !g.isHost(p) {
		g.log.Warnw("start_game from non-host ignored", "player", p.Name)
		return
	}
	if len(g.players) < minPlayers {
		g.log.Warnw("start_game with too few players ignored", "players", len(g.players))
		return
	}

	g.switchState(&QuestionPrompt{})
}

func (s *WaitingForPlayers) updateDisplay(g *Game) {
	if len(g.players) == 0 {
		g.broadcast(protocol.Display{
			Stage: &protocol.Stage{Title: "Waiting for players..."},
		})
		return
	}

	for _, p := range g.players {
		switch {
		case !g.isHost(p):
			g.display(protocol.Display{
				Stage: &protocol.Stage{
					Title: fmt.Sprintf("Waiting for %s to start the game...", g.hostName),
				},
			}, p.Name)

		case len(g.players) < minPlayers:
			g.display(protocol.Display{
				Stage: &protocol.Stage{
					Title: "You are the host!\nRequires minimum 2 players.",
				},
			}, p.Name)

		default:
			g.display(protocol.Display{
				Stage: &protocol.Stage{Title: "Is everybody ready?"},
				Form: &protocol.Form{
					SubmitLabel: "Submit",
					Controls: []protocol.Control{
						protocol.Button{Key: "start_game", Label: "Start Game"},
					},
				},
			}, p.Name)
		}
	}
}
