package main

import (
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"juicebox/internal/game"
)

// console renders the host screen: join code, round clock and the
// scoreboard. It redraws only when the content changes so the tick loop
// can call it freely.
type console struct {
	area *pterm.AreaPrinter
	last string
}

func newConsole() *console {
	area, _ := pterm.DefaultArea.WithFullscreen().Start()
	return &console{area: area}
}

func (c *console) stop() {
	if c.area != nil {
		_ = c.area.Stop()
	}
}

func (c *console) render(g *game.Game) {
	content := buildScreen(g)
	if content == c.last {
		return
	}
	c.last = content
	c.area.Update(content)
}

func buildScreen(g *game.Game) string {
	var b strings.Builder

	b.WriteString(pterm.DefaultHeader.Sprintf("Juicebox — join code: %s", orDash(g.JoinCode())))
	b.WriteString("\n")
	b.WriteString(pterm.Sprintfln("Screen: %s    Round: %d    Time: %s",
		g.Screen(), g.RoundNumber(), g.RemainingClock()))

	if q := g.Question(); q != "" && g.Screen() != game.ScreenWaitingForPlayers {
		b.WriteString(pterm.Sprintfln("Question: %s", q))
	}
	b.WriteString("\n")

	rows := pterm.TableData{{"Player", "Score", "Connected"}}
	for _, p := range g.Players() {
		connected := "yes"
		if !p.Connected {
			connected = "no"
		}
		rows = append(rows, []string{p.Name, strconv.Itoa(p.Score), connected})
	}
	table, _ := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
	b.WriteString(table)

	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// consoleSink announces round winners on the host terminal.
type consoleSink struct{}

func newConsoleSink() consoleSink { return consoleSink{} }

func (consoleSink) RoundWinners(winners []game.RoundWinner) error {
	for _, w := range winners {
		pterm.Success.Printfln("%s wins the round with %d vote(s): %s", w.Name, w.Votes, w.Answer)
	}
	return nil
}

var _ game.PresentationSink = consoleSink{}
