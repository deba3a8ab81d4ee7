package scoreboard

import (
	"fmt"
	"strings"
	"time"

	"scoreboard-bot/internal/constants"
	"scoreboard-bot/internal/domain"
)

// Diff describes, in subscriber-facing lines, what changed between two
// filtered team lists. Returns "" when nothing noteworthy happened.
//
// "Appeared in scoreboard" lines are suppressed on the very first poll of a
// contest (empty old list outside the start grace window) and once the
// contest is finished, where snapshot backfills would otherwise produce
// churn.
func Diff(oldTeams, newTeams []domain.TeamStanding, status domain.ScoreboardStatus, startsAt, now time.Time) string {
	oldByName := make(map[string]domain.TeamStanding, len(oldTeams))
	for _, team := range oldTeams {
		oldByName[team.Name] = team
	}

	announceAppeared := !status.IsFinished() &&
		(len(oldTeams) > 0 || now.Sub(startsAt) <= constants.StartGraceWindow)

	var updates []string
	for _, newTeam := range newTeams {
		oldTeam, ok := oldByName[newTeam.Name]
		if !ok {
			if announceAppeared {
				updates = append(updates,
					fmt.Sprintf("El equipo %s apareció en el scoreboard", formatCode(newTeam.Name)))
			}
			continue
		}

		newlySolved := newTeam.SolvedNames()
		for name := range oldTeam.SolvedNames() {
			delete(newlySolved, name)
		}
		if len(newlySolved) == 0 {
			continue
		}

		update := fmt.Sprintf("El equipo %s resolvió %s y lleva %d en total, ",
			formatCode(newTeam.Name), solvedDiffSummary(newlySolved), newTeam.TotalSolved)
		if oldTeam.Place == newTeam.Place {
			update += fmt.Sprintf("quedándose en el mismo lugar <b>#%d</b>", newTeam.Place)
		} else {
			update += fmt.Sprintf("cambiando del lugar #%d al <b>#%d</b>", oldTeam.Place, newTeam.Place)
		}
		updates = append(updates, update)
	}

	return strings.Join(updates, "\n")
}

func solvedDiffSummary(solved map[string]bool) string {
	names := solvedAsString(solved)
	if len(solved) == 1 {
		return "1 problema " + names
	}
	return fmt.Sprintf("%d problemas %s", len(solved), names)
}
