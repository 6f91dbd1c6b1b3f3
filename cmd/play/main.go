// Command play runs the quiz in the terminal against the same word corpus
// and leaderboard store as the server.
package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/motsrares/internal/config"
	"github.com/robalobadob/motsrares/internal/game"
	"github.com/robalobadob/motsrares/internal/kv"
	"github.com/robalobadob/motsrares/internal/leaderboard"
	"github.com/robalobadob/motsrares/internal/session"
	"github.com/robalobadob/motsrares/internal/words"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "play:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// The terminal belongs to the UI; logs go to a file.
	f, err := tea.LogToFile("play.log", "play")
	if err != nil {
		return err
	}
	defer f.Close()
	log.Logger = zerolog.New(f).With().Timestamp().Logger()
	if lvl, err := zerolog.ParseLevel(cfg.Server.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	entries, err := words.Load(cfg.Words.File)
	if err != nil {
		return err
	}
	bank, err := words.New(entries, words.CryptoRand())
	if err != nil {
		return err
	}
	engine, err := game.NewEngine(bank)
	if err != nil {
		return err
	}

	ctx := context.Background()
	kvs, err := kv.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open leaderboard store: %w", err)
	}
	defer kvs.Close()

	board, err := leaderboard.Load(ctx, kvs)
	if err != nil {
		log.Warn().Err(err).Msg("leaderboard unreadable, starting empty")
	}

	ctrl := session.New(engine, board, session.Options{
		ID:             "terminal",
		InitialSeconds: cfg.Survival.InitialSeconds,
		BonusSeconds:   cfg.Survival.BonusSeconds,
		TickInterval:   cfg.Survival.TickInterval,
	})
	defer ctrl.Close()

	m, err := newModel(ctrl, bank, board)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
