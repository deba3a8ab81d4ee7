// Package notifier owns the poll loop: it resolves the relevant contest,
// drives the lifecycle state machine, rotates the previous/current snapshot
// pair and fans diffs out to subscribers. It also implements the telegram
// command handler.
package notifier

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"scoreboard-bot/internal/config"
	"scoreboard-bot/internal/constants"
	"scoreboard-bot/internal/domain"
	"scoreboard-bot/internal/scoreboard"
	"scoreboard-bot/internal/scraper"
	"scoreboard-bot/internal/telegram"

	"github.com/rs/zerolog"
)

// Scraper produces a snapshot from a scoreboard URL, or
// scraper.ErrNotAScoreboard when the page holds no standings.
type Scraper interface {
	Fetch(ctx context.Context, url string) (*domain.Snapshot, error)
}

// Sender is the outbound chat transport.
type Sender interface {
	SendHTML(chatID int64, text string) error
	SendDeveloperHTML(text string) error
}

// ContestStore is the persistence contract for contests.
type ContestStore interface {
	Current(ctx context.Context, now time.Time) (*domain.Contest, error)
	Upcoming(ctx context.Context, now time.Time, window time.Duration) (*domain.Contest, error)
	UpdateStatus(ctx context.Context, contestID int64, status domain.ScoreboardStatus) error
}

// SubscriberStore is the persistence contract for subscribers.
type SubscriberStore interface {
	GetOrCreate(ctx context.Context, chatID int64) (*domain.Subscriber, error)
	Subscriptions(ctx context.Context, chatID int64) ([]string, error)
	AddSubscription(ctx context.Context, chatID int64, query string) error
	RemoveSubscription(ctx context.Context, chatID int64, query string) error
	RemoveAll(ctx context.Context, chatID int64) error
	ChatIDsWithSubscriptions(ctx context.Context) ([]int64, error)
}

type Service struct {
	contests     ContestStore
	subscribers  SubscriberStore
	scraper      Scraper
	sender       Sender
	logger       zerolog.Logger
	ignored      map[string]bool
	guestMarkers []string

	// Snapshots are immutable and replaced atomically, so command handlers
	// read them without locking while the loop rotates them.
	contest  atomic.Pointer[domain.Contest]
	previous atomic.Pointer[domain.Snapshot]
	current  atomic.Pointer[domain.Snapshot]

	// Only touched by the poll loop.
	lastContestID int64
}

func New(cfg *config.Config, contests ContestStore, subscribers SubscriberStore, scr Scraper, sender Sender, logger zerolog.Logger) *Service {
	return &Service{
		contests:     contests,
		subscribers:  subscribers,
		scraper:      scr,
		sender:       sender,
		logger:       logger,
		ignored:      loadIgnoredTeams(cfg.AdvancedTeamsFile, logger),
		guestMarkers: cfg.GuestSchoolMarkers,
	}
}

// loadIgnoredTeams reads the roster of teams that already advanced elsewhere,
// one name per line. Those teams are excluded from the advancing projection.
func loadIgnoredTeams(path string, logger zerolog.Logger) map[string]bool {
	ignored := make(map[string]bool)
	if path == "" {
		return ignored
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("failed to load advanced teams roster")
		return ignored
	}
	for _, line := range strings.Split(string(data), "\n") {
		if name := strings.ToLower(strings.TrimSpace(line)); name != "" {
			ignored[name] = true
		}
	}
	logger.Info().Int("count", len(ignored)).Str("path", path).Msg("advanced teams roster loaded")
	return ignored
}

// Run drives poll cycles until ctx is cancelled. A failed cycle is logged
// and reported to the operator chat but never stops the loop.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(constants.PollInterval)
	defer ticker.Stop()

	for {
		if err := s.runCycle(ctx, time.Now()); err != nil {
			s.logger.Error().Err(err).Msg("poll cycle failed")
			s.notifyDeveloperError(err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) runCycle(ctx context.Context, now time.Time) error {
	contest, err := s.resolveContest(ctx, now)
	if err != nil {
		return err
	}
	if contest == nil {
		s.logger.Debug().Msg("no actively running contest")
		s.contest.Store(nil)
		s.previous.Store(nil)
		s.current.Store(nil)
		s.lastContestID = 0
		return nil
	}

	// Snapshots belong to one contest. When one contest hands over to the
	// next without an empty cycle in between, diffing across the boundary
	// would fabricate updates for recurring team names.
	if contest.ID != s.lastContestID {
		s.previous.Store(nil)
		s.current.Store(nil)
		s.lastContestID = contest.ID
	}
	s.contest.Store(contest)

	scrapeCtx, cancel := context.WithTimeout(ctx, constants.ScrapeTimeout)
	fresh, err := s.scraper.Fetch(scrapeCtx, contest.ScoreboardURL)
	cancel()

	scraped := false
	switch {
	case errors.Is(err, scraper.ErrNotAScoreboard):
		s.logger.Info().Str("contest", contest.Name).Msg("no scoreboard yet")
	case err != nil:
		return fmt.Errorf("scrape of contest %q failed: %w", contest.Name, err)
	default:
		scraped = true
		s.previous.Store(s.current.Load())
		s.current.Store(fresh)
	}

	if err := s.applyLifecycle(ctx, contest, scraped, now); err != nil {
		return err
	}

	if scraped && !contest.ScoreboardStatus.IsTerminal() {
		s.dispatchDiffs(ctx, contest, now)
	}
	return nil
}

// resolveContest prefers a contest that already started and is not in a
// terminal state, falling back to one starting within the pre-start window.
func (s *Service) resolveContest(ctx context.Context, now time.Time) (*domain.Contest, error) {
	dbCtx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	contest, err := s.contests.Current(dbCtx, now)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to resolve current contest: %w", err)
	}
	if contest != nil && !contest.ScoreboardStatus.IsTerminal() {
		return contest, nil
	}

	contest, err = s.contests.Upcoming(dbCtx, now, constants.PreStartWindow)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upcoming contest: %w", err)
	}
	return contest, nil
}

// applyLifecycle evaluates the state machine and, on a transition, persists
// the new status before sending any notice.
func (s *Service) applyLifecycle(ctx context.Context, contest *domain.Contest, scraped bool, now time.Time) error {
	transition := scoreboard.NextStatus(contest, s.previous.Load(), s.current.Load(), scraped, now)
	if transition == nil {
		return nil
	}

	s.logger.Info().
		Str("contest", contest.Name).
		Str("from", string(contest.ScoreboardStatus)).
		Str("to", string(transition.Status)).
		Msg("contest lifecycle transition")

	dbCtx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	err := s.contests.UpdateStatus(dbCtx, contest.ID, transition.Status)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to persist status %s: %w", transition.Status, err)
	}
	contest.ScoreboardStatus = transition.Status
	s.contest.Store(contest)

	if transition.DeveloperNotice != "" {
		if err := s.sender.SendDeveloperHTML(transition.DeveloperNotice); err != nil {
			s.logger.Error().Err(err).Msg("failed to send developer notice")
		}
	}
	if transition.SubscriberNotice != "" {
		s.broadcast(ctx, transition.SubscriberNotice)
	}
	if transition.PushRankViews {
		s.pushFinalViews(ctx, contest)
	}
	return nil
}

// dispatchDiffs sends every subscriber the changes their filters picked up
// between the previous and current snapshots. One subscriber's delivery
// failure never blocks the rest.
func (s *Service) dispatchDiffs(ctx context.Context, contest *domain.Contest, now time.Time) {
	chatIDs, err := s.subscribers.ChatIDsWithSubscriptions(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list subscribed chats")
		return
	}

	previous := s.previous.Load()
	current := s.current.Load()
	for _, chatID := range chatIDs {
		queries, err := s.subscribers.Subscriptions(ctx, chatID)
		if err != nil {
			s.logger.Error().Err(err).Int64("chat_id", chatID).Msg("failed to load subscriptions")
			continue
		}

		oldTeams := scoreboard.Filter(previous, queries)
		newTeams := scoreboard.Filter(current, queries)
		update := scoreboard.Diff(oldTeams, newTeams, contest.ScoreboardStatus, contest.StartsAt, now)
		if update == "" {
			continue
		}
		s.send(ctx, chatID, update)
	}
}

// broadcast sends a notice to every subscriber with at least one
// subscription.
func (s *Service) broadcast(ctx context.Context, text string) {
	chatIDs, err := s.subscribers.ChatIDsWithSubscriptions(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list subscribed chats")
		return
	}
	for _, chatID := range chatIDs {
		s.send(ctx, chatID, text)
	}
}

// pushFinalViews delivers, to each subscriber, their personal filtered rank
// view plus the advancing-teams projection. Used when final results come out.
func (s *Service) pushFinalViews(ctx context.Context, contest *domain.Contest) {
	current := s.current.Load()
	advancing := scoreboard.RenderAdvancing(current, contest, s.ignored, s.guestMarkers)

	chatIDs, err := s.subscribers.ChatIDsWithSubscriptions(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list subscribed chats")
		return
	}
	for _, chatID := range chatIDs {
		queries, err := s.subscribers.Subscriptions(ctx, chatID)
		if err != nil {
			s.logger.Error().Err(err).Int64("chat_id", chatID).Msg("failed to load subscriptions")
			continue
		}
		if rank := scoreboard.RenderRank(scoreboard.Filter(current, queries), constants.MaxTeamsToRender); rank != "" {
			s.send(ctx, chatID, rank)
		}
		if advancing != "" {
			s.send(ctx, chatID, advancing)
		}
	}
}

// send delivers one message, unsubscribing the chat entirely on a permanent
// delivery rejection.
func (s *Service) send(ctx context.Context, chatID int64, text string) {
	err := s.sender.SendHTML(chatID, text)
	if err == nil {
		return
	}

	if telegram.IsBlocked(err) {
		s.logger.Info().Int64("chat_id", chatID).Msg("chat rejected delivery permanently, unsubscribing")
		if err := s.subscribers.RemoveAll(ctx, chatID); err != nil {
			s.logger.Error().Err(err).Int64("chat_id", chatID).Msg("failed to unsubscribe blocked chat")
		}
		return
	}
	s.logger.Error().Err(err).Int64("chat_id", chatID).Msg("failed to deliver message")
}

// CurrentContest returns the contest the loop is watching, nil when none.
func (s *Service) CurrentContest() *domain.Contest {
	return s.contest.Load()
}

// CurrentSnapshot returns the latest published snapshot, nil when none.
func (s *Service) CurrentSnapshot() *domain.Snapshot {
	return s.current.Load()
}

func (s *Service) notifyDeveloperError(err error) {
	text := "Got unexpected error: <code>" + html.EscapeString(err.Error()) + "</code>"
	if sendErr := s.sender.SendDeveloperHTML(text); sendErr != nil {
		s.logger.Error().Err(sendErr).Msg("failed to report error to developer chat")
	}
}
