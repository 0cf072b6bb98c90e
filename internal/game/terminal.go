package game

import "juicebox/internal/protocol"

// GameOver is terminal: the supply ran out or the game was shut down.
type GameOver struct{ baseState }

func (*GameOver) Screen() Screen { return ScreenGameOver }

func (s *GameOver) Enter(g *Game) {
	g.broadcast(protocol.Display{
		Stage: &protocol.Stage{Title: "Game Over"},
	})
}

// ErrorState is the terminal "something is unrecoverable" state. Leaving
// it is a programming error and fails loud.
type ErrorState struct{ baseState }

func (*ErrorState) Screen() Screen { return ScreenError }

func (s *ErrorState) Exit(*Game) {
	panic("cannot leave the error state")
}
