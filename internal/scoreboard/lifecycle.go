package scoreboard

import (
	"fmt"
	"time"

	"scoreboard-bot/internal/constants"
	"scoreboard-bot/internal/domain"
)

// Transition is the outcome of one lifecycle evaluation. The new status must
// be persisted before any of the notices are sent.
type Transition struct {
	Status domain.ScoreboardStatus

	// SubscriberNotice goes to every subscriber; DeveloperNotice only to the
	// operator chat. Either may be empty.
	SubscriberNotice string
	DeveloperNotice  string

	// PushRankViews asks the caller to send each subscriber their filtered
	// rank view plus the advancing projection (final-results release).
	PushRankViews bool
}

// NextStatus evaluates the contest lifecycle for one poll cycle. prev and
// curr are the previous and freshly fetched snapshots; scraped is false when
// the fetch produced no parseable scoreboard. Returns nil when the status is
// unchanged.
func NextStatus(contest *domain.Contest, prev, curr *domain.Snapshot, scraped bool, now time.Time) *Transition {
	status := contest.ScoreboardStatus
	if status.IsTerminal() {
		return nil
	}

	if status == domain.StatusWaitingToBeReleased {
		if now.After(contest.EndsAt.Add(constants.ReleaseTimeout)) {
			return &Transition{
				Status: domain.StatusReleased,
				DeveloperNotice: fmt.Sprintf(
					"El concurso <i>%s</i> nunca publicó resultados finales, liberado automáticamente",
					contest.Name),
			}
		}
		if !scraped {
			return &Transition{
				Status: domain.StatusArchived,
				DeveloperNotice: fmt.Sprintf(
					"El scoreboard del concurso <i>%s</i> ya no existe, archivado", contest.Name),
			}
		}
		if prev != nil && curr != nil && !curr.Equal(prev) {
			return &Transition{
				Status: domain.StatusReleased,
				SubscriberNotice: fmt.Sprintf(
					"¡Los resultados finales del concurso <i>%s</i> fueron publicados!", contest.Name),
				PushRankViews: true,
			}
		}
		return nil
	}

	target := statusForClock(contest, now)
	if target == status {
		return nil
	}

	switch target {
	case domain.StatusVisible:
		return &Transition{
			Status:           domain.StatusVisible,
			SubscriberNotice: fmt.Sprintf("El concurso <i>%s</i> ha comenzado", contest.Name),
		}
	case domain.StatusFrozen:
		return &Transition{
			Status: domain.StatusFrozen,
			SubscriberNotice: fmt.Sprintf(
				"El scoreboard del concurso <i>%s</i> se ha congelado, puede haber envíos pendientes",
				contest.Name),
		}
	case domain.StatusWaitingToBeReleased:
		return &Transition{
			Status: domain.StatusWaitingToBeReleased,
			SubscriberNotice: fmt.Sprintf(
				"El concurso <i>%s</i> terminó, esperando los resultados finales", contest.Name),
		}
	case domain.StatusReleased:
		return &Transition{
			Status: domain.StatusReleased,
			DeveloperNotice: fmt.Sprintf(
				"El concurso <i>%s</i> nunca publicó resultados finales, liberado automáticamente",
				contest.Name),
		}
	}
	return nil
}

// statusForClock maps wall-clock time to the state the contest should be in,
// ignoring release detection. When the loop was down across a boundary this
// lands directly on the final state rather than replaying every step.
func statusForClock(contest *domain.Contest, now time.Time) domain.ScoreboardStatus {
	switch {
	case now.Before(contest.StartsAt):
		return domain.StatusInvisible
	case now.Before(contest.FreezesAt):
		return domain.StatusVisible
	case now.Before(contest.EndsAt):
		return domain.StatusFrozen
	case now.Before(contest.EndsAt.Add(constants.ReleaseTimeout)):
		return domain.StatusWaitingToBeReleased
	default:
		return domain.StatusReleased
	}
}
