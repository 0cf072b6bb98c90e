package game

import (
	"strings"
	"time"

	"juicebox/internal/protocol"
)

const (
	answerField = "answer"
	voteField   = "vote"

	promptTimeout  = 60 * time.Second
	votingTimeout  = 60 * time.Second
	resultsTimeout = 10 * time.Second
)

// QuestionPrompt draws the next question and collects one answer per
// player. Entering with an exhausted supply ends the game.
type QuestionPrompt struct{ baseState }

func (*QuestionPrompt) Screen() Screen { return ScreenQuestionPrompt }

func (*QuestionPrompt) Timeout() time.Duration { return promptTimeout }

func (s *QuestionPrompt) Enter(g *Game) {
	entry, ok := g.questions.TryTake()
	if !ok {
		g.switchState(&GameOver{})
		return
	}

	g.question = entry.Question
	g.imageAnswers = entry.Drawn

	var control protocol.Control
	if entry.Drawn {
		control = protocol.Drawing{Key: answerField, Width: 320, Height: 240}
	} else {
		control = protocol.Input{
			Key:         answerField,
			Label:       "Response",
			Placeholder: "Type your response...",
			MaxLength:   100,
		}
	}

	g.broadcast(protocol.Display{
		Header: &protocol.Header{RoundNumber: g.roundNumber, RoundTime: int(promptTimeout.Seconds())},
		Stage:  &protocol.Stage{Title: g.question},
		Form: &protocol.Form{
			SubmitLabel: "Submit",
			Controls:    []protocol.Control{control},
		},
	})

	for _, p := range g.players {
		p.Answer = ""
	}
}

func (s *QuestionPrompt) TimedOut(g *Game) {
	answered := 0
	for _, p := range g.players {
		if p.Answer != "" {
			answered++
		}
	}

	if answered >= minPlayers {
		g.switchState(&Voting{})
	} else {
		// Not enough material to vote on; burn this question and draw a
		// fresh one.
		g.switchState(&QuestionPrompt{})
	}
}

func (s *QuestionPrompt) PlayerResponse(g *Game, p *Player, fields map[string]string) {
	answer, ok := fields[answerField]
	if !ok {
		g.log.Warnw("answer missing its field", "player", p.Name)
		return
	}
	if strings.TrimSpace(answer) == "" {
		g.log.Warnw("blank answer rejected", "player", p.Name)
		return
	}
	if p.Answer != "" {
		g.log.Warnw("duplicate answer rejected", "player", p.Name)
		return
	}

	p.Answer = answer

	if g.connectedSubmitted(func(p *Player) string { return p.Answer }) {
		g.switchState(&Voting{})
	}
}
