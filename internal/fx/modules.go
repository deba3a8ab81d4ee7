package fx

import (
	"scoreboard-bot/internal/config"
	"scoreboard-bot/internal/database"
	"scoreboard-bot/internal/logger"
	"scoreboard-bot/internal/notifier"
	"scoreboard-bot/internal/repository"
	"scoreboard-bot/internal/scraper"
	"scoreboard-bot/internal/server"
	"scoreboard-bot/internal/telegram"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideNotifier(
	cfg *config.Config,
	contests *repository.ContestRepository,
	subscribers *repository.SubscriberRepository,
	boca *scraper.BocaScraper,
	bot *telegram.Bot,
	log zerolog.Logger,
) *notifier.Service {
	return notifier.New(cfg, contests, subscribers, boca, bot, log)
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewContestRepository),
	fx.Provide(repository.NewSubscriberRepository),
	// collaborators
	fx.Provide(scraper.NewBocaScraper),
	fx.Provide(telegram.New),
	// svc
	fx.Provide(ProvideNotifier),
	// server
	fx.Provide(server.NewStatusServer),
)
