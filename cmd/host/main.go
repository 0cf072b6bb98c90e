package main

import (
	"context"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"juicebox/internal/config"
	"juicebox/internal/game"
	"juicebox/internal/questions"
	"juicebox/internal/session"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()
	zlog := logger.Sugar()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var supply questions.Supply
	if q, err := questions.LoadFile(cfg.QuestionsPath, cfg.AllowMature, rng); err != nil {
		// Leave the supply nil; Start lands the game in the error state.
		zlog.Errorw("loading question list failed", "path", cfg.QuestionsPath, "error", err)
	} else {
		supply = q
	}

	sess := session.New(session.NewAPI(cfg.APIBaseURL), cfg.PublicKey, cfg.PingInterval, zlog)
	g := game.New(sess, supply, zlog, game.Options{
		TimeoutScale: cfg.TimeoutScale,
		Rand:         rng,
		Sink:         newConsoleSink(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g.Start(ctx)

	console := newConsole()
	defer console.stop()

	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			g.Shutdown()
			return
		case <-ticker.C:
			g.Tick()
			console.render(g)
		}
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
