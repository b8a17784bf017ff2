package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/conorfennell/lexideck/internal/domain"
)

// CardUpdate computes a card's next state from its stored state. A non-nil
// log is appended to the card's review history.
type CardUpdate func(card domain.MemoryCard) (domain.MemoryCard, *domain.ReviewLog, error)

// UpdateCard reads the card, applies fn and writes the result in one
// transaction. Concurrent updates of the same card are serialised, so each
// one starts from the state the previous one committed.
func (db *DB) UpdateCard(ctx context.Context, hash string, fn CardUpdate) (next domain.MemoryCard, err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return domain.MemoryCard{}, fmt.Errorf("failed to begin update of card %s: %w", hash, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	card, err := scanCard(tx.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE hash = ?`, hash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.MemoryCard{}, fmt.Errorf("card %s: %w", hash, ErrNotFound)
		}
		return domain.MemoryCard{}, fmt.Errorf("failed to read card %s: %w", hash, err)
	}

	next, log, err := fn(card)
	if err != nil {
		return domain.MemoryCard{}, err
	}
	next.Hash = hash
	if err = writeReview(ctx, tx, next, log); err != nil {
		return domain.MemoryCard{}, err
	}

	if err = tx.Commit(); err != nil {
		return domain.MemoryCard{}, fmt.Errorf("failed to commit update of card %s: %w", hash, err)
	}
	return next, nil
}

// RecordReview stores the card's new schedule and appends the review log
// in one transaction.
func (db *DB) RecordReview(ctx context.Context, card domain.MemoryCard, log domain.ReviewLog) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin review transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = writeReview(ctx, tx, card, &log); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review for hash %s: %w", card.Hash, err)
	}
	return nil
}

func writeReview(ctx context.Context, tx *sql.Tx, card domain.MemoryCard, log *domain.ReviewLog) error {
	res, err := tx.ExecContext(ctx, updateScheduleSQL, scheduleArgs(card)...)
	if err != nil {
		return fmt.Errorf("failed to update card schedule for hash %s: %w", card.Hash, err)
	}
	if err := expectOneRow(res, "card "+card.Hash); err != nil {
		return err
	}
	if log == nil {
		return nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO review_logs (id, card_hash, quality, reviewed_at, repetitions, interval_days, ease_factor, next_review)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		log.ID,
		log.CardHash,
		log.Quality,
		log.ReviewedAt.UnixMilli(),
		log.Repetitions,
		log.Interval,
		log.EaseFactor,
		log.NextReview.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert review log for hash %s: %w", card.Hash, err)
	}
	return nil
}

// GetReviewLogs returns the review history of a card, newest first.
func (db *DB) GetReviewLogs(ctx context.Context, hash string, limit int) ([]domain.ReviewLog, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, card_hash, quality, reviewed_at, repetitions, interval_days, ease_factor, next_review
		FROM review_logs
		WHERE card_hash = ?
		ORDER BY reviewed_at DESC, rowid DESC
		LIMIT ?
	`, hash, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get review logs for hash %s: %w", hash, err)
	}
	defer rows.Close()

	var logs []domain.ReviewLog
	for rows.Next() {
		var (
			l                      domain.ReviewLog
			reviewedAt, nextReview sql.NullInt64
		)
		if err := rows.Scan(
			&l.ID,
			&l.CardHash,
			&l.Quality,
			&reviewedAt,
			&l.Repetitions,
			&l.Interval,
			&l.EaseFactor,
			&nextReview,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review log row for hash %s: %w", hash, err)
		}
		l.ReviewedAt = fromMillis(reviewedAt)
		l.NextReview = fromMillis(nextReview)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
