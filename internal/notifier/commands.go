package notifier

import (
	"context"
	"fmt"

	"scoreboard-bot/internal/constants"
	"scoreboard-bot/internal/domain"
	"scoreboard-bot/internal/scoreboard"
)

// The Service doubles as the telegram command handler. Commands read the
// latest published snapshot and never mutate loop state; every failure path
// degrades to an informative message.

func (s *Service) Status(ctx context.Context, chatID int64) error {
	contest := s.contest.Load()
	if contest == nil {
		return s.sender.SendHTML(chatID, "No hay concurso actual")
	}
	return s.sender.SendHTML(chatID, statusDescription(contest))
}

func (s *Service) Top(ctx context.Context, chatID int64, n int) error {
	_, snapshot, ok := s.snapshotFor(chatID)
	if !ok {
		return nil
	}

	if n <= 0 {
		n = constants.DefaultTopN
	}
	teams := snapshot.Teams
	if n < len(teams) {
		teams = teams[:n]
	}

	rank := scoreboard.RenderRank(teams, constants.MaxTeamsToRender)
	if rank == "" {
		return s.sender.SendHTML(chatID, "El scoreboard está vacío")
	}
	return s.sender.SendHTML(chatID, rank)
}

func (s *Service) Scoreboard(ctx context.Context, chatID int64, query string) error {
	_, snapshot, ok := s.snapshotFor(chatID)
	if !ok {
		return nil
	}

	queries := []string{query}
	if query == "" {
		subscriptions, err := s.subscribers.Subscriptions(ctx, chatID)
		if err != nil {
			return err
		}
		if len(subscriptions) == 0 {
			return s.sender.SendHTML(chatID,
				"No sigues ningún equipo, ejecuta el comando <code>/seguir subcadena</code> "+
					"para seguir los equipos que quieras")
		}
		queries = subscriptions
	}

	rank := scoreboard.RenderRank(scoreboard.Filter(snapshot, queries), constants.MaxTeamsToRender)
	if rank == "" {
		return s.sender.SendHTML(chatID, "Ningún equipo que sigues fué encontrado")
	}
	return s.sender.SendHTML(chatID, rank)
}

func (s *Service) Follow(ctx context.Context, chatID int64, query string) error {
	if err := s.subscribers.AddSubscription(ctx, chatID, query); err != nil {
		return err
	}
	if err := s.sender.SendHTML(chatID, fmt.Sprintf("Ahora sigues <code>%s</code>", query)); err != nil {
		return err
	}

	// Echo the scoreboard for the fresh subscription only.
	_, snapshot, ok := s.snapshotFor(chatID)
	if !ok {
		return nil
	}
	rank := scoreboard.RenderRank(scoreboard.Filter(snapshot, []string{query}), constants.MaxTeamsToRender)
	if rank == "" {
		return s.sender.SendHTML(chatID, "Ningún equipo que sigues fué encontrado")
	}
	return s.sender.SendHTML(chatID, rank)
}

func (s *Service) ListFollowing(ctx context.Context, chatID int64) ([]string, error) {
	if _, err := s.subscribers.GetOrCreate(ctx, chatID); err != nil {
		return nil, err
	}
	return s.subscribers.Subscriptions(ctx, chatID)
}

func (s *Service) Unfollow(ctx context.Context, chatID int64, query string) error {
	if err := s.subscribers.RemoveSubscription(ctx, chatID, query); err != nil {
		return err
	}
	return s.sender.SendHTML(chatID, fmt.Sprintf("Ya no sigues <code>%s</code>", query))
}

func (s *Service) UnfollowAll(ctx context.Context, chatID int64) error {
	if err := s.subscribers.RemoveAll(ctx, chatID); err != nil {
		return err
	}
	return s.sender.SendHTML(chatID, "Ya no sigues ningún equipo y olvidamos tu registro")
}

// snapshotFor returns the current contest and snapshot, telling the chat why
// nothing is available when either is missing.
func (s *Service) snapshotFor(chatID int64) (*domain.Contest, *domain.Snapshot, bool) {
	contest := s.contest.Load()
	if contest == nil {
		_ = s.sender.SendHTML(chatID, "No hay concurso actual")
		return nil, nil, false
	}

	snapshot := s.current.Load()
	if snapshot == nil {
		_ = s.sender.SendHTML(chatID, fmt.Sprintf(
			"Todavía no tenemos el scoreboard del concurso <i>%s</i>, reintenta de nuevo más tarde",
			contest.Name))
		return nil, nil, false
	}
	return contest, snapshot, true
}

func statusDescription(contest *domain.Contest) string {
	name := "<i>" + contest.Name + "</i>"
	switch contest.ScoreboardStatus {
	case domain.StatusInvisible:
		return fmt.Sprintf("El concurso %s aún no comienza", name)
	case domain.StatusVisible:
		return fmt.Sprintf("El concurso %s está en curso", name)
	case domain.StatusFrozen:
		return fmt.Sprintf("El concurso %s está en curso, con el scoreboard congelado", name)
	case domain.StatusWaitingToBeReleased:
		return fmt.Sprintf("El concurso %s terminó, esperando los resultados finales", name)
	case domain.StatusReleased:
		return fmt.Sprintf("El concurso %s terminó y sus resultados son finales", name)
	case domain.StatusArchived:
		return fmt.Sprintf("El concurso %s terminó y su scoreboard fue archivado", name)
	}
	return fmt.Sprintf("El concurso %s está en un estado desconocido", name)
}
