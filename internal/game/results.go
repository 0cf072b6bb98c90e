package game

import (
	"fmt"
	"strings"
	"time"

	"juicebox/internal/protocol"
)

// Results shows the round outcome briefly, then rolls into the next
// question. Every player holding the top positive vote count shares the
// win; there is no incidental-ordering tie break.
type Results struct{ baseState }

func (*Results) Screen() Screen { return ScreenResults }

func (*Results) Timeout() time.Duration { return resultsTimeout }

func (s *Results) Enter(g *Game) {
	winners := roundWinners(g.players)

	if g.sink != nil && len(winners) > 0 {
		if err := g.sink.RoundWinners(winners); err != nil {
			g.log.Warnw("presentation sink failed", "error", err)
		}
	}

	g.broadcast(protocol.Display{
		Header: &protocol.Header{RoundNumber: g.roundNumber},
		Stage:  &protocol.Stage{Title: winnersTitle(winners), Subtitle: g.question},
	})
}

func (s *Results) Exit(g *Game) {
	g.roundNumber++
}

func (s *Results) TimedOut(g *Game) {
	g.switchState(&QuestionPrompt{})
}

func roundWinners(players []*Player) []RoundWinner {
	top := 0
	for _, p := range players {
		if p.VotesReceived > top {
			top = p.VotesReceived
		}
	}
	if top == 0 {
		return nil
	}

	var winners []RoundWinner
	for _, p := range players {
		if p.VotesReceived == top {
			winners = append(winners, RoundWinner{Name: p.Name, Answer: p.Answer, Votes: top})
		}
	}
	return winners
}

func winnersTitle(winners []RoundWinner) string {
	switch len(winners) {
	case 0:
		return "No votes this round"
	case 1:
		return fmt.Sprintf("%s wins the round!", winners[0].Name)
	default:
		names := make([]string, len(winners))
		for i, w := range winners {
			names[i] = w.Name
		}
		return fmt.Sprintf("%s share the round!", strings.Join(names, " and "))
	}
}
