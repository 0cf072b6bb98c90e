package game

import (
	"strings"
	"time"

	"juicebox/internal/protocol"
)

// Voting shows the collected answers as anonymized, shuffled radio
// options; each option's value is the answering player's name. Votes are
// tallied on exit so both the timeout path and the everyone-voted path
// score identically.
type Voting struct{ baseState }

func (*Voting) Screen() Screen { return ScreenVoting }

func (*Voting) Timeout() time.Duration { return votingTimeout }

func (s *Voting) Enter(g *Game) {
	options := make([]protocol.RadioOption, 0, len(g.players))
	for _, p := range g.players {
		if p.Answer != "" {
			options = append(options, protocol.RadioOption{Label: p.Answer, Value: p.Name})
		}
	}
	g.rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	g.broadcast(protocol.Display{
		Header: &protocol.Header{RoundNumber: g.roundNumber, RoundTime: int(votingTimeout.Seconds())},
		Stage:  &protocol.Stage{Title: g.question},
		Form: &protocol.Form{
			SubmitLabel: "Submit",
			Controls: []protocol.Control{
				protocol.RadioGroup{Key: voteField, Options: options},
			},
		},
	})

	for _, p := range g.players {
		p.Vote = ""
		p.VotesReceived = 0
	}
}

func (s *Voting) Exit(g *Game) {
	for _, p := range g.players {
		if p.Vote == "" {
			continue
		}
		if target := g.FindPlayer(p.Vote); target != nil {
			target.VotesReceived++
			target.Score++
		}
	}
	sortPlayers(g.players)
}

func (s *Voting) TimedOut(g *Game) {
	voted := 0
	for _, p := range g.players {
		if p.Vote != "" {
			voted++
		}
	}

	if voted > 0 {
		g.switchState(&Results{})
	} else {
		g.switchState(&QuestionPrompt{})
	}
}

func (s *Voting) PlayerResponse(g *Game, p *Player, fields map[string]string) {
	vote, ok := fields[voteField]
	if !ok {
		g.log.Warnw("vote missing its field", "player", p.Name)
		return
	}
	if strings.TrimSpace(vote) == "" {
		g.log.Warnw("blank vote rejected", "player", p.Name)
		return
	}
	if p.Vote != "" {
		g.log.Warnw("duplicate vote rejected", "player", p.Name)
		return
	}

	p.Vote = vote

	if g.connectedSubmitted(func(p *Player) string { return p.Vote }) {
		g.switchState(&Results{})
	}
}
