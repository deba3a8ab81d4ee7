package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"scoreboard-bot/internal/config"
	"scoreboard-bot/internal/constants"
	fxmodules "scoreboard-bot/internal/fx"
	"scoreboard-bot/internal/middleware"
	"scoreboard-bot/internal/notifier"
	"scoreboard-bot/internal/server"
	"scoreboard-bot/internal/telegram"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runBot),
	).Run()
}

func runBot(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	bot *telegram.Bot,
	svc *notifier.Service,
	statusServer *server.StatusServer,
	cfg *config.Config,
	db *sql.DB,
	logger zerolog.Logger,
) {
	bot.SetHandler(svc)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})
	requestIDMiddleware := middleware.RequestID(logger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: requestIDMiddleware(c.Handler(statusServer.Handler())),
	}

	loopCtx, cancelLoops := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(loopCtx)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			group.Go(func() error {
				logger.Info().Msg("telegram update loop starting")
				return bot.Run(groupCtx)
			})
			group.Go(func() error {
				logger.Info().Msg("scoreboard poll loop starting")
				return svc.Run(groupCtx)
			})
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("status server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("status server failed")
				}
			}()
			go func() {
				if err := group.Wait(); err != nil && err != context.Canceled {
					logger.Error().Err(err).Msg("loop stopped unexpectedly")
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down")
			cancelLoops()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("status server shutdown failed")
			}
			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}

			logger.Info().Msg("stopped gracefully")
			return nil
		},
	})
}
