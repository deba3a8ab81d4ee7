package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"scoreboard-bot/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type SubscriberRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSubscriberRepository(db *sql.DB, logger zerolog.Logger) *SubscriberRepository {
	return &SubscriberRepository{db: db, logger: logger}
}

// GetOrCreate registers a chat on first interaction.
func (r *SubscriberRepository) GetOrCreate(ctx context.Context, chatID int64) (*domain.Subscriber, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscribers (chat_id, created_at) VALUES (?, ?)
		ON CONFLICT(chat_id) DO NOTHING`, chatID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to create subscriber: %w", err)
	}

	var subscriber domain.Subscriber
	row := r.db.QueryRowContext(ctx,
		`SELECT chat_id, created_at FROM subscribers WHERE chat_id = ?`, chatID)
	if err := row.Scan(&subscriber.ChatID, &subscriber.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to load subscriber: %w", err)
	}
	return &subscriber, nil
}

// Subscriptions returns the chat's subscription queries, sorted.
func (r *SubscriberRepository) Subscriptions(ctx context.Context, chatID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT query FROM subscriptions WHERE chat_id = ? ORDER BY query`, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriptions: %w", err)
	}
	defer rows.Close()

	var queries []string
	for rows.Next() {
		var query string
		if err := rows.Scan(&query); err != nil {
			return nil, err
		}
		queries = append(queries, query)
	}
	return queries, rows.Err()
}

// AddSubscription is idempotent: following the same query twice is a no-op.
func (r *SubscriberRepository) AddSubscription(ctx context.Context, chatID int64, query string) error {
	if _, err := r.GetOrCreate(ctx, chatID); err != nil {
		return err
	}

	id, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("failed to generate subscription id: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, chat_id, query, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(chat_id, query) DO NOTHING`, id, chatID, query, time.Now())
	if err != nil {
		return fmt.Errorf("failed to add subscription: %w", err)
	}

	r.logger.Info().Int64("chat_id", chatID).Str("query", query).Msg("subscription added")
	return nil
}

func (r *SubscriberRepository) RemoveSubscription(ctx context.Context, chatID int64, query string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM subscriptions WHERE chat_id = ? AND query = ?`, chatID, query)
	if err != nil {
		return fmt.Errorf("failed to remove subscription: %w", err)
	}

	r.logger.Info().Int64("chat_id", chatID).Str("query", query).Msg("subscription removed")
	return nil
}

// RemoveAll drops the subscriber and every subscription, used for explicit
// opt-out and when the transport reports a permanent delivery rejection.
func (r *SubscriberRepository) RemoveAll(ctx context.Context, chatID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("failed to remove subscriptions: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM subscribers WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("failed to remove subscriber: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	r.logger.Info().Int64("chat_id", chatID).Msg("subscriber fully removed")
	return nil
}

// ChatIDsWithSubscriptions lists every chat holding at least one
// subscription, for diff fan-out.
func (r *SubscriberRepository) ChatIDsWithSubscriptions(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT chat_id FROM subscriptions ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribed chats: %w", err)
	}
	defer rows.Close()

	var chatIDs []int64
	for rows.Next() {
		var chatID int64
		if err := rows.Scan(&chatID); err != nil {
			return nil, err
		}
		chatIDs = append(chatIDs, chatID)
	}
	return chatIDs, rows.Err()
}

// CountSubscribers reports how many chats hold at least one subscription.
func (r *SubscriberRepository) CountSubscribers(ctx context.Context) (int, error) {
	var count int
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT chat_id) FROM subscriptions`)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count subscribers: %w", err)
	}
	return count, nil
}
