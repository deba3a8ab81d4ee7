package scoreboard

import (
	"testing"
	"time"

	"scoreboard-bot/internal/domain"

	"github.com/stretchr/testify/require"
)

func teamWithSolved(name string, place int, solved ...string) domain.TeamStanding {
	problems := make([]domain.ProblemResult, 0, len(solved))
	for _, p := range solved {
		problems = append(problems, domain.ProblemResult{Name: p, Tries: 1, SolvedAt: 10, IsSolved: true})
	}
	return domain.TeamStanding{
		Name:        name,
		Place:       place,
		TotalSolved: len(solved),
		Problems:    problems,
	}
}

func TestDiff_SameTeamsYieldEmpty(t *testing.T) {
	now := time.Now()
	teams := []domain.TeamStanding{
		teamWithSolved("Foo", 1, "A"),
		teamWithSolved("Bar", 2),
	}
	require.Empty(t, Diff(teams, teams, domain.StatusVisible, now.Add(-time.Hour), now))
}

func TestDiff_NewlySolvedWithRankChange(t *testing.T) {
	now := time.Now()
	startsAt := now.Add(-time.Hour)

	oldTeams := []domain.TeamStanding{teamWithSolved("Foo", 2, "A")}
	newTeams := []domain.TeamStanding{teamWithSolved("Foo", 1, "A", "B")}

	got := Diff(oldTeams, newTeams, domain.StatusVisible, startsAt, now)
	require.Contains(t, got, "1 problema (B)")
	require.Contains(t, got, "lleva 2 en total")
	require.Contains(t, got, "cambiando del lugar #2 al <b>#1</b>")
}

func TestDiff_MultipleSolvedSamePlace(t *testing.T) {
	now := time.Now()
	startsAt := now.Add(-time.Hour)

	oldTeams := []domain.TeamStanding{teamWithSolved("Foo", 3, "A")}
	newTeams := []domain.TeamStanding{teamWithSolved("Foo", 3, "A", "C", "B")}

	got := Diff(oldTeams, newTeams, domain.StatusVisible, startsAt, now)
	require.Contains(t, got, "2 problemas (B, C)")
	require.Contains(t, got, "quedándose en el mismo lugar <b>#3</b>")
}

func TestDiff_AppearedLines(t *testing.T) {
	now := time.Now()
	newTeams := []domain.TeamStanding{teamWithSolved("TeamA", 1)}

	tests := []struct {
		name     string
		oldTeams []domain.TeamStanding
		status   domain.ScoreboardStatus
		startsAt time.Time
		want     bool
	}{
		{
			name:     "first poll long after start is silent",
			oldTeams: nil,
			status:   domain.StatusVisible,
			startsAt: now.Add(-time.Hour),
			want:     false,
		},
		{
			name:     "empty old within grace window announces",
			oldTeams: nil,
			status:   domain.StatusVisible,
			startsAt: now.Add(-10 * time.Minute),
			want:     true,
		},
		{
			name:     "non-empty old announces",
			oldTeams: []domain.TeamStanding{teamWithSolved("Other", 2)},
			status:   domain.StatusVisible,
			startsAt: now.Add(-time.Hour),
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.oldTeams, newTeams, tt.status, tt.startsAt, now)
			if tt.want {
				require.Contains(t, got, "apareció en el scoreboard")
				require.Contains(t, got, "TeamA")
			} else {
				require.Empty(t, got)
			}
		})
	}
}

func TestDiff_FinishedStatusesSuppressAppeared(t *testing.T) {
	now := time.Now()
	startsAt := now.Add(-5 * time.Minute) // inside the grace window
	newTeams := []domain.TeamStanding{teamWithSolved("TeamA", 1)}

	for _, status := range []domain.ScoreboardStatus{
		domain.StatusWaitingToBeReleased,
		domain.StatusReleased,
		domain.StatusArchived,
	} {
		t.Run(string(status), func(t *testing.T) {
			require.Empty(t, Diff(nil, newTeams, status, startsAt, now))
		})
	}
}

func TestDiff_EscapesTeamNames(t *testing.T) {
	now := time.Now()
	startsAt := now.Add(-time.Hour)

	oldTeams := []domain.TeamStanding{teamWithSolved("Tom & Jerry", 1, "A")}
	newTeams := []domain.TeamStanding{teamWithSolved("Tom & Jerry", 1, "A", "B")}

	got := Diff(oldTeams, newTeams, domain.StatusVisible, startsAt, now)
	require.Contains(t, got, "<code>Tom &amp; Jerry</code>")
}
