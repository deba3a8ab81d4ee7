package scoreboard

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"scoreboard-bot/internal/domain"
)

func formatCode(s string) string {
	return "<code>" + html.EscapeString(s) + "</code>"
}

func solvedAsString(solved map[string]bool) string {
	names := make([]string, 0, len(solved))
	for name := range solved {
		names = append(names, name)
	}
	sort.Strings(names)
	return "(" + strings.Join(names, ", ") + ")"
}

func solvedSummary(team domain.TeamStanding) string {
	if team.TotalSolved == 0 {
		return "0 problemas"
	}
	names := solvedAsString(team.SolvedNames())
	if team.TotalSolved == 1 {
		return "1 problema " + names
	}
	return fmt.Sprintf("%d problemas %s", team.TotalSolved, names)
}

func rankLine(team domain.TeamStanding) string {
	return fmt.Sprintf("<b>#%d</b> %s resolvió %s en %d minutos",
		team.Place, formatCode(team.Name), solvedSummary(team), team.TotalPenalty)
}

// RenderRank formats teams as one rank line each, in (place, name) order.
// When there are more than max teams only the first max are listed, preceded
// by a notice. An empty input renders as "".
func RenderRank(teams []domain.TeamStanding, max int) string {
	if len(teams) == 0 {
		return ""
	}

	sorted := make([]domain.TeamStanding, len(teams))
	copy(sorted, teams)
	domain.SortTeams(sorted)

	var notice string
	if max > 0 && len(sorted) > max {
		notice = fmt.Sprintf("Mostrando los primeros %d equipos de %d:\n", max, len(sorted))
		sorted = sorted[:max]
	}

	lines := make([]string, 0, len(sorted))
	for _, team := range sorted {
		lines = append(lines, rankLine(team))
	}
	return notice + strings.Join(lines, "\n")
}

// RenderAdvancing projects which teams advance from the full current
// snapshot: the first MaxTeamsToAdvance teams after dropping ignored teams,
// guest-school teams, and any team beyond its school's per-school cap.
// Capped-out teams are skipped without consuming a slot. Returns "" when the
// contest has no advance cap configured or nothing qualifies.
func RenderAdvancing(snapshot *domain.Snapshot, contest *domain.Contest, ignored map[string]bool, guestMarkers []string) string {
	if snapshot == nil || contest == nil || contest.MaxTeamsToAdvance <= 0 {
		return ""
	}

	perSchool := make(map[string]int)
	var advancing []domain.TeamStanding
	for _, team := range snapshot.Teams {
		if len(advancing) == contest.MaxTeamsToAdvance {
			break
		}
		if ignored[strings.ToLower(team.Name)] || ignored[strings.ToLower(team.CleanName())] {
			continue
		}
		if team.IsGuestSchool(guestMarkers) {
			continue
		}
		school := strings.ToLower(team.SchoolName())
		if contest.MaxTeamsPerSchoolToAdvance > 0 && school != "" &&
			perSchool[school] >= contest.MaxTeamsPerSchoolToAdvance {
			continue
		}
		perSchool[school]++
		advancing = append(advancing, team)
	}

	if len(advancing) == 0 {
		return ""
	}

	summary := fmt.Sprintf("Se proyecta que avancen %d equipos:\n", len(advancing))
	if len(advancing) == 1 {
		summary = "Se proyecta que avance 1 equipo:\n"
	}
	return summary + RenderRank(advancing, 0)
}
