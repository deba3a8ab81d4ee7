package notifier

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"scoreboard-bot/internal/config"
	"scoreboard-bot/internal/domain"
	"scoreboard-bot/internal/scraper"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeScraper struct {
	snapshots []*domain.Snapshot
	err       error
	calls     int
}

func (f *fakeScraper) Fetch(_ context.Context, _ string) (*domain.Snapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	snapshot := f.snapshots[0]
	if len(f.snapshots) > 1 {
		f.snapshots = f.snapshots[1:]
	}
	return snapshot, nil
}

type fakeSender struct {
	sent     map[int64][]string
	dev      []string
	failWith map[int64]error
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(map[int64][]string), failWith: make(map[int64]error)}
}

func (f *fakeSender) SendHTML(chatID int64, text string) error {
	if err := f.failWith[chatID]; err != nil {
		return err
	}
	f.sent[chatID] = append(f.sent[chatID], text)
	return nil
}

func (f *fakeSender) SendDeveloperHTML(text string) error {
	f.dev = append(f.dev, text)
	return nil
}

type fakeContests struct {
	contest       *domain.Contest
	upcoming      *domain.Contest
	statusUpdates []domain.ScoreboardStatus
}

func (f *fakeContests) Current(_ context.Context, _ time.Time) (*domain.Contest, error) {
	if f.contest == nil {
		return nil, sql.ErrNoRows
	}
	return f.contest, nil
}

func (f *fakeContests) Upcoming(_ context.Context, _ time.Time, _ time.Duration) (*domain.Contest, error) {
	if f.upcoming == nil {
		return nil, sql.ErrNoRows
	}
	return f.upcoming, nil
}

func (f *fakeContests) UpdateStatus(_ context.Context, _ int64, status domain.ScoreboardStatus) error {
	f.statusUpdates = append(f.statusUpdates, status)
	return nil
}

type fakeSubscribers struct {
	subscriptions map[int64][]string
	removedAll    []int64
}

func (f *fakeSubscribers) GetOrCreate(_ context.Context, chatID int64) (*domain.Subscriber, error) {
	return &domain.Subscriber{ChatID: chatID}, nil
}

func (f *fakeSubscribers) Subscriptions(_ context.Context, chatID int64) ([]string, error) {
	return f.subscriptions[chatID], nil
}

func (f *fakeSubscribers) AddSubscription(_ context.Context, chatID int64, query string) error {
	f.subscriptions[chatID] = append(f.subscriptions[chatID], query)
	return nil
}

func (f *fakeSubscribers) RemoveSubscription(_ context.Context, chatID int64, query string) error {
	var kept []string
	for _, q := range f.subscriptions[chatID] {
		if q != query {
			kept = append(kept, q)
		}
	}
	f.subscriptions[chatID] = kept
	return nil
}

func (f *fakeSubscribers) RemoveAll(_ context.Context, chatID int64) error {
	f.removedAll = append(f.removedAll, chatID)
	delete(f.subscriptions, chatID)
	return nil
}

func (f *fakeSubscribers) ChatIDsWithSubscriptions(_ context.Context) ([]int64, error) {
	var chatIDs []int64
	for chatID, subs := range f.subscriptions {
		if len(subs) > 0 {
			chatIDs = append(chatIDs, chatID)
		}
	}
	return chatIDs, nil
}

func newTestService(contests *fakeContests, subscribers *fakeSubscribers, scr *fakeScraper, sender *fakeSender) *Service {
	cfg := &config.Config{GuestSchoolMarkers: []string{"omi", "cbtis", "cetis"}}
	return New(cfg, contests, subscribers, scr, sender, zerolog.Nop())
}

func solvedTeam(name string, place int, solved ...string) domain.TeamStanding {
	problems := make([]domain.ProblemResult, 0, len(solved))
	for _, p := range solved {
		problems = append(problems, domain.ProblemResult{Name: p, Tries: 1, SolvedAt: 30, IsSolved: true})
	}
	return domain.TeamStanding{Name: name, Place: place, TotalSolved: len(solved), Problems: problems}
}

func runningContest(now time.Time) *domain.Contest {
	return &domain.Contest{
		ID:               1,
		Name:             "Primera Fecha",
		ScoreboardURL:    "https://score.example.org",
		StartsAt:         now.Add(-time.Hour),
		FreezesAt:        now.Add(3 * time.Hour),
		EndsAt:           now.Add(4 * time.Hour),
		ScoreboardStatus: domain.StatusVisible,
	}
}

func TestRunCycle_DispatchesFilteredDiffs(t *testing.T) {
	now := time.Now()
	first := &domain.Snapshot{Teams: []domain.TeamStanding{
		solvedTeam("[IT Culiacan] Los Bits", 2, "A"),
		solvedTeam("[UASinaloa] Hackers", 1, "A"),
	}}
	second := &domain.Snapshot{Teams: []domain.TeamStanding{
		solvedTeam("[IT Culiacan] Los Bits", 1, "A", "B"),
		solvedTeam("[UASinaloa] Hackers", 2, "A"),
	}}

	contests := &fakeContests{contest: runningContest(now)}
	subscribers := &fakeSubscribers{subscriptions: map[int64][]string{
		10: {"culiacan"},
		20: {"monterrey"},
	}}
	scr := &fakeScraper{snapshots: []*domain.Snapshot{first, second}}
	sender := newFakeSender()
	svc := newTestService(contests, subscribers, scr, sender)

	require.NoError(t, svc.runCycle(context.Background(), now))
	// First poll of an hour-old contest: nothing to announce yet.
	require.Empty(t, sender.sent[10])

	require.NoError(t, svc.runCycle(context.Background(), now.Add(time.Minute)))
	require.Len(t, sender.sent[10], 1)
	require.Contains(t, sender.sent[10][0], "1 problema (B)")
	require.Contains(t, sender.sent[10][0], "cambiando del lugar #2 al <b>#1</b>")
	require.Empty(t, sender.sent[20], "non-matching subscriber gets nothing")
}

func TestRunCycle_BlockedSubscriberIsRemoved(t *testing.T) {
	now := time.Now()
	first := &domain.Snapshot{Teams: []domain.TeamStanding{solvedTeam("Foo", 1, "A")}}
	second := &domain.Snapshot{Teams: []domain.TeamStanding{solvedTeam("Foo", 1, "A", "B")}}

	contests := &fakeContests{contest: runningContest(now)}
	subscribers := &fakeSubscribers{subscriptions: map[int64][]string{99: {"foo"}}}
	scr := &fakeScraper{snapshots: []*domain.Snapshot{first, second}}
	sender := newFakeSender()
	sender.failWith[99] = errors.New("Forbidden: bot was blocked by the user")
	svc := newTestService(contests, subscribers, scr, sender)

	require.NoError(t, svc.runCycle(context.Background(), now))
	require.NoError(t, svc.runCycle(context.Background(), now.Add(time.Minute)))

	require.Equal(t, []int64{99}, subscribers.removedAll)
}

func TestRunCycle_NotAScoreboardIsNotFatal(t *testing.T) {
	now := time.Now()
	contests := &fakeContests{contest: runningContest(now)}
	subscribers := &fakeSubscribers{subscriptions: map[int64][]string{}}
	scr := &fakeScraper{err: scraper.ErrNotAScoreboard}
	sender := newFakeSender()
	svc := newTestService(contests, subscribers, scr, sender)

	require.NoError(t, svc.runCycle(context.Background(), now))
	require.Nil(t, svc.CurrentSnapshot())
	require.Equal(t, 1, scr.calls)
}

func TestRunCycle_ForcedReleaseAfterTimeout(t *testing.T) {
	now := time.Now()
	contest := &domain.Contest{
		ID:               1,
		Name:             "Olvidado",
		ScoreboardURL:    "https://score.example.org",
		StartsAt:         now.Add(-7 * 24 * time.Hour),
		FreezesAt:        now.Add(-7*24*time.Hour + 4*time.Hour),
		EndsAt:           now.Add(-6 * 24 * time.Hour),
		ScoreboardStatus: domain.StatusWaitingToBeReleased,
	}
	contests := &fakeContests{contest: contest}
	subscribers := &fakeSubscribers{subscriptions: map[int64][]string{10: {"foo"}}}
	scr := &fakeScraper{snapshots: []*domain.Snapshot{{Teams: nil}}}
	sender := newFakeSender()
	svc := newTestService(contests, subscribers, scr, sender)

	require.NoError(t, svc.runCycle(context.Background(), now))

	require.Equal(t, []domain.ScoreboardStatus{domain.StatusReleased}, contests.statusUpdates)
	require.NotEmpty(t, sender.dev, "developer is told about the silent release")
	require.Empty(t, sender.sent[10], "subscribers are not notified")
}

func TestRunCycle_ReleasePushesFinalViews(t *testing.T) {
	now := time.Now()
	contest := &domain.Contest{
		ID:                1,
		Name:              "Final",
		ScoreboardURL:     "https://score.example.org",
		StartsAt:          now.Add(-6 * time.Hour),
		FreezesAt:         now.Add(-2 * time.Hour),
		EndsAt:            now.Add(-time.Hour),
		ScoreboardStatus:  domain.StatusWaitingToBeReleased,
		MaxTeamsToAdvance: 1,
	}
	frozen := &domain.Snapshot{Teams: []domain.TeamStanding{solvedTeam("[X] Foo", 1, "A")}}
	released := &domain.Snapshot{Teams: []domain.TeamStanding{solvedTeam("[X] Foo", 1, "A", "B")}}

	contests := &fakeContests{contest: contest}
	subscribers := &fakeSubscribers{subscriptions: map[int64][]string{10: {"foo"}}}
	scr := &fakeScraper{snapshots: []*domain.Snapshot{frozen, released}}
	sender := newFakeSender()
	svc := newTestService(contests, subscribers, scr, sender)

	require.NoError(t, svc.runCycle(context.Background(), now))
	require.NoError(t, svc.runCycle(context.Background(), now.Add(time.Minute)))

	require.Equal(t, []domain.ScoreboardStatus{domain.StatusReleased}, contests.statusUpdates)

	messages := sender.sent[10]
	require.NotEmpty(t, messages)
	joined := ""
	for _, m := range messages {
		joined += m + "\n"
	}
	require.Contains(t, joined, "resultados finales")
	require.Contains(t, joined, "<b>#1</b>", "personal rank view is pushed")
	require.Contains(t, joined, "Se proyecta que avance 1 equipo:")
}

func TestRunCycle_ContestHandoverResetsSnapshots(t *testing.T) {
	now := time.Now()
	finalBoard := &domain.Snapshot{Teams: []domain.TeamStanding{solvedTeam("Foo", 1, "A")}}
	nextBoard := &domain.Snapshot{Teams: []domain.TeamStanding{solvedTeam("Foo", 3, "A", "B")}}

	first := runningContest(now)
	second := runningContest(now)
	second.ID = 2
	second.Name = "Segunda Fecha"

	contests := &fakeContests{contest: first}
	subscribers := &fakeSubscribers{subscriptions: map[int64][]string{10: {"foo"}}}
	scr := &fakeScraper{snapshots: []*domain.Snapshot{finalBoard, nextBoard}}
	sender := newFakeSender()
	svc := newTestService(contests, subscribers, scr, sender)

	require.NoError(t, svc.runCycle(context.Background(), now))

	// The next contest takes over without an empty cycle in between. Foo
	// competes in both, so a diff across the boundary would fabricate a
	// solved-problem update out of two unrelated boards.
	contests.contest = second
	require.NoError(t, svc.runCycle(context.Background(), now.Add(time.Minute)))

	require.Empty(t, sender.sent[10], "no diff across the contest boundary")
	require.Equal(t, nextBoard, svc.CurrentSnapshot())
}

func TestRunCycle_NoContestClearsState(t *testing.T) {
	contests := &fakeContests{}
	subscribers := &fakeSubscribers{subscriptions: map[int64][]string{}}
	scr := &fakeScraper{}
	sender := newFakeSender()
	svc := newTestService(contests, subscribers, scr, sender)

	require.NoError(t, svc.runCycle(context.Background(), time.Now()))
	require.Nil(t, svc.CurrentContest())
	require.Nil(t, svc.CurrentSnapshot())
	require.Zero(t, scr.calls)
}

func TestCommands_NoContest(t *testing.T) {
	contests := &fakeContests{}
	subscribers := &fakeSubscribers{subscriptions: map[int64][]string{}}
	sender := newFakeSender()
	svc := newTestService(contests, subscribers, &fakeScraper{}, sender)

	require.NoError(t, svc.Status(context.Background(), 10))
	require.NoError(t, svc.Top(context.Background(), 10, 5))
	require.Equal(t, []string{"No hay concurso actual", "No hay concurso actual"}, sender.sent[10])
}

func TestCommands_ScoreboardWithoutSubscriptions(t *testing.T) {
	now := time.Now()
	contests := &fakeContests{contest: runningContest(now)}
	subscribers := &fakeSubscribers{subscriptions: map[int64][]string{}}
	scr := &fakeScraper{snapshots: []*domain.Snapshot{{Teams: []domain.TeamStanding{solvedTeam("Foo", 1, "A")}}}}
	sender := newFakeSender()
	svc := newTestService(contests, subscribers, scr, sender)

	require.NoError(t, svc.runCycle(context.Background(), now))
	require.NoError(t, svc.Scoreboard(context.Background(), 10, ""))
	require.Len(t, sender.sent[10], 1)
	require.Contains(t, sender.sent[10][0], "/seguir")
}

func TestCommands_FollowEchoesScoreboard(t *testing.T) {
	now := time.Now()
	contests := &fakeContests{contest: runningContest(now)}
	subscribers := &fakeSubscribers{subscriptions: map[int64][]string{}}
	scr := &fakeScraper{snapshots: []*domain.Snapshot{{Teams: []domain.TeamStanding{solvedTeam("[IT Culiacan] Los Bits", 1, "A")}}}}
	sender := newFakeSender()
	svc := newTestService(contests, subscribers, scr, sender)

	require.NoError(t, svc.runCycle(context.Background(), now))
	require.NoError(t, svc.Follow(context.Background(), 10, "culiacan"))

	require.Equal(t, []string{"culiacan"}, subscribers.subscriptions[10])
	require.Len(t, sender.sent[10], 2)
	require.Contains(t, sender.sent[10][0], "Ahora sigues")
	require.Contains(t, sender.sent[10][1], "Los Bits")
}

func TestCommands_TopTruncates(t *testing.T) {
	now := time.Now()
	teams := make([]domain.TeamStanding, 0, 5)
	for i := 1; i <= 5; i++ {
		teams = append(teams, solvedTeam(string(rune('A'+i-1))+" team", i))
	}
	contests := &fakeContests{contest: runningContest(now)}
	subscribers := &fakeSubscribers{subscriptions: map[int64][]string{}}
	scr := &fakeScraper{snapshots: []*domain.Snapshot{{Teams: teams}}}
	sender := newFakeSender()
	svc := newTestService(contests, subscribers, scr, sender)

	require.NoError(t, svc.runCycle(context.Background(), now))
	require.NoError(t, svc.Top(context.Background(), 10, 2))

	require.Len(t, sender.sent[10], 1)
	require.Contains(t, sender.sent[10][0], "A team")
	require.Contains(t, sender.sent[10][0], "B team")
	require.NotContains(t, sender.sent[10][0], "C team")
}
