package game

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"juicebox/internal/protocol"
	"juicebox/internal/questions"
	"juicebox/internal/session"
)

// Transport is the slice of the session transport the game consumes.
// *session.Session satisfies it.
type Transport interface {
	Start(ctx context.Context) error
	Display(d protocol.Display, forPlayer string) error
	Events() <-chan session.Event
	Roster() []session.Member
	JoinCode() string
	IsOpen() bool
	Dispose()
}

// PresentationSink receives round outcomes for the host presentation
// layer (scoreboard overlays, text-to-speech and the like). Failures are
// logged and never affect round progression.
type PresentationSink interface {
	RoundWinners(winners []RoundWinner) error
}

// RoundWinner is one player holding the round's top vote count. Ties
// share the win.
type RoundWinner struct {
	Name   string
	Answer string
	Votes  int
}

type Options struct {
	// TimeoutScale stretches or compresses every state timeout, applied
	// both to the internal deadline and to the round time sent to
	// players.
	TimeoutScale float64
	Sink         PresentationSink
	Now          func() time.Time
	Rand         *rand.Rand
}

// Game is the round state machine. It owns the player roster and the
// single active state, consuming transport events and timeout ticks on
// one goroutine: the driver must call Tick periodically and never
// concurrently.
type Game struct {
	transport Transport
	questions questions.Supply
	sink      PresentationSink
	log       *zap.SugaredLogger

	timeoutScale float64
	now          func() time.Time
	rng          *rand.Rand

	state     State
	enteredAt time.Time
	timedOut  bool

	players      []*Player
	hostName     string
	roundNumber  int
	question     string
	imageAnswers bool
}

func New(t Transport, q questions.Supply, log *zap.SugaredLogger, opts Options) *Game {
	if opts.TimeoutScale <= 0 {
		opts.TimeoutScale = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	g := &Game{
		transport:    t,
		questions:    q,
		sink:         opts.Sink,
		log:          log,
		timeoutScale: opts.TimeoutScale,
		now:          opts.Now,
		rng:          opts.Rand,
		roundNumber:  1,
	}
	g.state = &SettingUp{}
	g.enteredAt = g.now()
	return g
}

// Start brings the session up and moves to WaitingForPlayers. Any setup
// failure lands in the terminal Error state instead of propagating.
func (g *Game) Start(ctx context.Context) {
	if g.questions == nil {
		g.log.Errorw("no question supply, cannot start")
		g.switchState(&ErrorState{})
		return
	}

	if err := g.transport.Start(ctx); err != nil {
		g.log.Errorw("session start failed", "error", err)
		g.switchState(&ErrorState{})
		return
	}

	g.switchState(NewWaitingForPlayers())
}

// Tick drains pending transport events, trues the roster up against the
// transport directory and fires the state timeout when its deadline has
// passed. Event-driven and timeout-driven transitions both run here, on
// the caller's goroutine, so at most one of them can apply.
func (g *Game) Tick() {
	g.drainEvents()

	if g.Screen() == ScreenError {
		return
	}

	g.syncRoster()
	g.checkTimeout()
}

// Shutdown ends the game: the machine lands in GameOver (unless already
// in Error, which is never exited) and the session is torn down.
func (g *Game) Shutdown() {
	if g.Screen() != ScreenError && g.Screen() != ScreenGameOver {
		g.switchState(&GameOver{})
	}
	g.transport.Dispose()
}

func (g *Game) Screen() Screen {
	if g.state == nil {
		return ScreenSettingUp
	}
	return g.state.Screen()
}

func (g *Game) RoundNumber() int { return g.roundNumber }

func (g *Game) Question() string { return g.question }

func (g *Game) JoinCode() string { return g.transport.JoinCode() }

// Players returns the live roster. Callers must stay on the tick
// goroutine.
func (g *Game) Players() []*Player { return g.players }

func (g *Game) FindPlayer(name string) *Player {
	for _, p := range g.players {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return nil
}

// Remaining is the scaled time left before the active state times out;
// zero for states without a timeout.
func (g *Game) Remaining() time.Duration {
	if g.state == nil {
		return 0
	}
	timeout := g.state.Timeout()
	if timeout == 0 {
		return 0
	}
	remaining := g.scaled(timeout) - g.now().Sub(g.enteredAt)
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// RemainingClock formats the remaining time as mm:ss for the host
// presentation.
func (g *Game) RemainingClock() string {
	remaining := g.Remaining().Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(remaining.Minutes()), int(remaining.Seconds())%60)
}

func (g *Game) scaled(d time.Duration) time.Duration {
	return time.Duration(float64(d) * g.timeoutScale)
}

// switchState swaps the active state. If exiting the old state already
// re-entered the machine somewhere else, the pending transition stands
// down: only the first transition to observe a still-current state wins.
func (g *Game) switchState(next State) {
	old := g.state
	if old != nil {
		old.Exit(g)
		if g.state != old {
			return
		}
	}

	g.state = next
	g.enteredAt = g.now()
	g.timedOut = false
	next.Enter(g)
}

func (g *Game) drainEvents() {
	for {
		select {
		case ev := <-g.transport.Events():
			g.handleEvent(ev)
		default:
			return
		}
	}
}

func (g *Game) handleEvent(ev session.Event) {
	if g.Screen() == ScreenError {
		return
	}

	switch e := ev.(type) {
	case session.PlayerJoined:
		g.registerPlayer(e.Name, false)

	case session.PlayerDisconnected:
		if p := g.FindPlayer(e.Name); p != nil {
			p.Connected = false
		}

	case session.PlayerResponded:
		p := g.FindPlayer(e.Name)
		if p == nil {
			g.log.Warnw("response from unknown player", "player", e.Name)
			return
		}
		p.Connected = true
		g.state.PlayerResponse(g, p, e.Fields)

	case session.PlayerActed:
		p := g.FindPlayer(e.Name)
		if p == nil {
			g.log.Warnw("action from unknown player", "player", e.Name)
			return
		}
		p.Connected = true
		g.state.PlayerAction(g, p, e.Key)

	case session.SessionClosed:
		g.log.Errorw("session closed by remote, halting game")
		g.switchState(&ErrorState{})
	}
}

// syncRoster registers players discovered through the ping member list
// and refreshes connected flags from the transport directory.
func (g *Game) syncRoster() {
	for _, m := range g.transport.Roster() {
		if p := g.FindPlayer(m.Name); p != nil {
			p.Connected = m.Connected
		} else {
			g.registerPlayer(m.Name, m.Connected)
		}
	}
}

func (g *Game) registerPlayer(name string, connected bool) {
	if g.FindPlayer(name) != nil {
		return
	}

	p := &Player{Name: name, JoinedAt: g.now(), Connected: connected}
	g.players = append(g.players, p)
	if g.hostName == "" {
		g.hostName = p.Name
		g.log.Infow("host assigned", "player", p.Name)
	}
	sortPlayers(g.players)

	g.log.Infow("player joined", "player", p.Name)
	g.state.PlayerJoined(g, p)
}

func (g *Game) checkTimeout() {
	if g.state == nil || g.timedOut {
		return
	}
	if g.state.Timeout() == 0 || g.Remaining() > 0 {
		return
	}
	g.timedOut = true
	g.state.TimedOut(g)
}

func (g *Game) isHost(p *Player) bool {
	return g.hostName != "" && strings.EqualFold(p.Name, g.hostName)
}

// display applies the timeout scale to the advertised round time and
// hands the payload to the transport. Send failures must never stall a
// round, so they are logged and swallowed.
func (g *Game) display(d protocol.Display, forPlayer string) {
	if d.Header != nil && d.Header.RoundTime != 0 {
		d.Header.RoundTime = int(float64(d.Header.RoundTime) * g.timeoutScale)
	}
	if err := g.transport.Display(d, forPlayer); err != nil {
		g.log.Warnw("display send failed", "target", forPlayer, "error", err)
	}
}

func (g *Game) broadcast(d protocol.Display) { g.display(d, "") }

// connectedSubmitted reports whether every connected player has a value
// in the given field, with at least one connected player present.
func (g *Game) connectedSubmitted(field func(*Player) string) bool {
	connected := 0
	for _, p := range g.players {
		if !p.Connected {
			continue
		}
		connected++
		if field(p) == "" {
			return false
		}
	}
	return connected > 0
}
