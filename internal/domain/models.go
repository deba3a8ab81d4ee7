package domain

import (
	"sort"
	"strings"
	"time"
)

// ProblemResult is one team's outcome on one contest problem. SolvedAt is in
// minutes from contest start and only meaningful when IsSolved is true.
type ProblemResult struct {
	Name     string
	Tries    int
	SolvedAt int
	IsSolved bool
}

// TeamStanding is one row of a parsed scoreboard. Problems follow the contest
// problem order. A team name may carry a school prefix as "[School] Team".
type TeamStanding struct {
	Name         string
	Place        int
	UserSite     string
	TotalSolved  int
	TotalPenalty int
	Problems     []ProblemResult
}

// CleanName strips the bracketed school prefix, if any.
func (t TeamStanding) CleanName() string {
	if strings.HasPrefix(t.Name, "[") {
		if end := strings.Index(t.Name, "]"); end >= 0 {
			return strings.TrimSpace(t.Name[end+1:])
		}
	}
	return t.Name
}

// SchoolName returns the bracketed school prefix, or "" when absent.
func (t TeamStanding) SchoolName() string {
	if strings.HasPrefix(t.Name, "[") {
		if end := strings.Index(t.Name, "]"); end >= 0 {
			return strings.TrimSpace(t.Name[1:end])
		}
	}
	return ""
}

// IsGuestSchool reports whether the team's school matches any of the known
// guest-institution markers. Guest teams are ineligible to advance.
func (t TeamStanding) IsGuestSchool(markers []string) bool {
	school := strings.ToLower(t.SchoolName())
	for _, marker := range markers {
		if marker != "" && strings.Contains(school, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

// SolvedNames returns the set of problem names the team has solved.
func (t TeamStanding) SolvedNames() map[string]bool {
	solved := make(map[string]bool)
	for _, p := range t.Problems {
		if p.IsSolved {
			solved[p.Name] = true
		}
	}
	return solved
}

// Snapshot is one immutable fetched view of the scoreboard, sorted by
// (place, lowercased name). Team names are unique within a snapshot.
type Snapshot struct {
	Teams     []TeamStanding
	FetchedAt time.Time
}

// SortTeams orders teams by place, breaking ties by case-insensitive name.
func SortTeams(teams []TeamStanding) {
	sort.SliceStable(teams, func(i, j int) bool {
		if teams[i].Place != teams[j].Place {
			return teams[i].Place < teams[j].Place
		}
		return strings.ToLower(teams[i].Name) < strings.ToLower(teams[j].Name)
	})
}

// Equal reports structural equality of two snapshots: same teams in the same
// order with the same per-field values. FetchedAt is not compared.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.Teams) != len(other.Teams) {
		return false
	}
	for i := range s.Teams {
		if !s.Teams[i].equal(other.Teams[i]) {
			return false
		}
	}
	return true
}

func (t TeamStanding) equal(other TeamStanding) bool {
	if t.Name != other.Name || t.Place != other.Place || t.UserSite != other.UserSite ||
		t.TotalSolved != other.TotalSolved || t.TotalPenalty != other.TotalPenalty ||
		len(t.Problems) != len(other.Problems) {
		return false
	}
	for i := range t.Problems {
		if t.Problems[i] != other.Problems[i] {
			return false
		}
	}
	return true
}

// Contest is a scheduled contest whose scoreboard we watch. The advance caps
// bound the advancing-teams projection and are zero when not configured.
type Contest struct {
	ID                         int64
	Name                       string
	ScoreboardURL              string
	StartsAt                   time.Time
	FreezesAt                  time.Time
	EndsAt                     time.Time
	ScoreboardStatus           ScoreboardStatus
	MaxTeamsToAdvance          int
	MaxTeamsPerSchoolToAdvance int
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

// Subscriber is a chat user known to the bot.
type Subscriber struct {
	ChatID    int64
	CreatedAt time.Time
}

// Subscription is one case-insensitive substring a subscriber follows.
type Subscription struct {
	ID        string
	ChatID    int64
	Query     string
	CreatedAt time.Time
}
