package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"scoreboard-bot/internal/domain"

	"github.com/rs/zerolog"
)

type ContestRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewContestRepository(db *sql.DB, logger zerolog.Logger) *ContestRepository {
	return &ContestRepository{db: db, logger: logger}
}

const contestColumns = `id, name, scoreboard_url, starts_at, freezes_at, ends_at,
	scoreboard_status, max_teams_to_advance, max_teams_per_school_to_advance,
	created_at, updated_at`

func (r *ContestRepository) Create(ctx context.Context, contest *domain.Contest) error {
	now := time.Now()
	status := contest.ScoreboardStatus
	if status == "" {
		status = domain.StatusInvisible
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO contests (name, scoreboard_url, starts_at, freezes_at, ends_at,
			scoreboard_status, max_teams_to_advance, max_teams_per_school_to_advance,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		contest.Name, contest.ScoreboardURL, contest.StartsAt, contest.FreezesAt,
		contest.EndsAt, string(status), contest.MaxTeamsToAdvance,
		contest.MaxTeamsPerSchoolToAdvance, now, now)
	if err != nil {
		return fmt.Errorf("failed to create contest: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read contest id: %w", err)
	}
	contest.ID = id
	contest.ScoreboardStatus = status

	r.logger.Info().Int64("contest_id", id).Str("name", contest.Name).Msg("contest created")
	return nil
}

// Current returns the latest contest that has already started, or
// sql.ErrNoRows when none exists.
func (r *ContestRepository) Current(ctx context.Context, now time.Time) (*domain.Contest, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+contestColumns+`
		FROM contests
		WHERE starts_at <= ?
		ORDER BY starts_at DESC
		LIMIT 1`, now)
	return scanContest(row)
}

// Upcoming returns the earliest contest starting after now but within the
// given window, or sql.ErrNoRows when none exists.
func (r *ContestRepository) Upcoming(ctx context.Context, now time.Time, window time.Duration) (*domain.Contest, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+contestColumns+`
		FROM contests
		WHERE starts_at > ? AND starts_at <= ?
		ORDER BY starts_at ASC
		LIMIT 1`, now, now.Add(window))
	return scanContest(row)
}

// UpdateStatus persists a lifecycle transition. Callers must do this before
// sending any notification for the transition.
func (r *ContestRepository) UpdateStatus(ctx context.Context, contestID int64, status domain.ScoreboardStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE contests SET scoreboard_status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now(), contestID)
	if err != nil {
		return fmt.Errorf("failed to update contest status: %w", err)
	}

	r.logger.Info().
		Int64("contest_id", contestID).
		Str("status", string(status)).
		Msg("contest status updated")
	return nil
}

func scanContest(row *sql.Row) (*domain.Contest, error) {
	var contest domain.Contest
	var rawStatus string
	err := row.Scan(&contest.ID, &contest.Name, &contest.ScoreboardURL,
		&contest.StartsAt, &contest.FreezesAt, &contest.EndsAt, &rawStatus,
		&contest.MaxTeamsToAdvance, &contest.MaxTeamsPerSchoolToAdvance,
		&contest.CreatedAt, &contest.UpdatedAt)
	if err != nil {
		return nil, err
	}

	status, err := domain.ParseScoreboardStatus(rawStatus)
	if err != nil {
		return nil, err
	}
	contest.ScoreboardStatus = status
	return &contest, nil
}
