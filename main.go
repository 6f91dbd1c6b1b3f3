package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/motsrares/internal/config"
	"github.com/robalobadob/motsrares/internal/game"
	"github.com/robalobadob/motsrares/internal/httpserver"
	"github.com/robalobadob/motsrares/internal/kv"
	"github.com/robalobadob/motsrares/internal/leaderboard"
	"github.com/robalobadob/motsrares/internal/session"
	"github.com/robalobadob/motsrares/internal/store"
	"github.com/robalobadob/motsrares/internal/words"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if lvl, err := zerolog.ParseLevel(cfg.Server.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	entries, err := words.Load(cfg.Words.File)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Words.File).Msg("failed to load word corpus")
	}
	bank, err := words.New(entries, words.CryptoRand())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load word corpus")
	}
	engine, err := game.NewEngine(bank)
	if err != nil {
		log.Fatal().Err(err).Int("entries", bank.Len()).Msg("word corpus cannot supply a round")
	}
	log.Info().Int("entries", bank.Len()).Strs("categories", bank.Categories()).Msg("word corpus loaded")

	ctx := context.Background()
	kvs, err := kv.Open(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to open leaderboard store")
	}
	defer kvs.Close()

	board, err := leaderboard.Load(ctx, kvs)
	if err != nil {
		// The board still works; the next successful submit overwrites the bad value.
		log.Warn().Err(err).Msg("leaderboard unreadable, starting empty")
	}

	sessions := store.NewSessions(func(id string) *session.Controller {
		return session.New(engine, board, session.Options{
			ID:             id,
			InitialSeconds: cfg.Survival.InitialSeconds,
			BonusSeconds:   cfg.Survival.BonusSeconds,
			TickInterval:   cfg.Survival.TickInterval,
		})
	})
	defer sessions.CloseAll()

	reapCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	go sessions.RunReaper(reapCtx, cfg.Auth.ReapInterval, time.Now)

	srv := httpserver.New(httpserver.Deps{
		Config:   cfg,
		Bank:     bank,
		Board:    board,
		Sessions: sessions,
	})

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Str("port", cfg.Server.Port).Str("store", cfg.Store.Driver).Msg("starting motsrares server")
	if err := srv.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server exited")
	}
}
