package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/lexideck/internal/domain"
)

const cardColumns = `hash, word, translation, note, repetitions, interval_days, ease_factor, last_reviewed, next_review`

// Stats summarises the card table at a point in time.
type Stats struct {
	Total   int `json:"total"`
	Due     int `json:"due"`
	New     int `json:"new"`
	Learned int `json:"learned"`
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (domain.MemoryCard, error) {
	var (
		c                        domain.MemoryCard
		lastReviewed, nextReview sql.NullInt64
	)
	err := row.Scan(
		&c.Hash,
		&c.Word,
		&c.Translation,
		&c.Note,
		&c.Repetitions,
		&c.Interval,
		&c.EaseFactor,
		&lastReviewed,
		&nextReview,
	)
	c.LastReviewed = fromMillis(lastReviewed)
	c.NextReview = fromMillis(nextReview)
	return c, err
}

func scanCards(rows *sql.Rows) ([]domain.MemoryCard, error) {
	defer rows.Close()

	var cards []domain.MemoryCard
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// InsertCard inserts a new card belonging to sourceID. A sourceID of 0
// stores the card without a source.
func (db *DB) InsertCard(ctx context.Context, card domain.MemoryCard, sourceID int64) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO cards (`+cardColumns+`, source_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		card.Hash,
		card.Word,
		card.Translation,
		card.Note,
		card.Repetitions,
		card.Interval,
		card.EaseFactor,
		toMillis(card.LastReviewed),
		toMillis(card.NextReview),
		sql.NullInt64{Int64: sourceID, Valid: sourceID > 0},
	)
	if err != nil {
		return fmt.Errorf("failed to insert card %s: %w", card.Hash, err)
	}
	return nil
}

// FindCardByHash retrieves a card by its hash. It returns nil, nil when the
// card does not exist.
func (db *DB) FindCardByHash(ctx context.Context, hash string) (*domain.MemoryCard, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE hash = ?`, hash)
	card, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find card by hash %s: %w", hash, err)
	}
	return &card, nil
}

const updateScheduleSQL = `
	UPDATE cards
	SET repetitions = ?, interval_days = ?, ease_factor = ?, last_reviewed = ?, next_review = ?
	WHERE hash = ?
`

func scheduleArgs(card domain.MemoryCard) []any {
	return []any{
		card.Repetitions,
		card.Interval,
		card.EaseFactor,
		toMillis(card.LastReviewed),
		toMillis(card.NextReview),
		card.Hash,
	}
}

// UpdateCardSchedule writes the card's scheduling state.
func (db *DB) UpdateCardSchedule(ctx context.Context, card domain.MemoryCard) error {
	res, err := db.conn.ExecContext(ctx, updateScheduleSQL, scheduleArgs(card)...)
	if err != nil {
		return fmt.Errorf("failed to update card schedule for hash %s: %w", card.Hash, err)
	}
	return expectOneRow(res, "card "+card.Hash)
}

// DeleteCardByHash removes a card and its review history.
func (db *DB) DeleteCardByHash(ctx context.Context, hash string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM cards WHERE hash = ?`, hash)
	if err != nil {
		return fmt.Errorf("failed to delete card with hash %s: %w", hash, err)
	}
	return expectOneRow(res, "card "+hash)
}

// GetCardsBySourceID retrieves all cards associated with a specific source ID.
func (db *DB) GetCardsBySourceID(ctx context.Context, sourceID int64) ([]domain.MemoryCard, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+cardColumns+` FROM cards WHERE source_id = ? ORDER BY hash
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for source ID %d: %w", sourceID, err)
	}
	return scanCards(rows)
}

// GetDueCards returns cards that are due at now: never-reviewed cards first,
// then by next review ascending. A limit of zero or less returns all of them.
func (db *DB) GetDueCards(ctx context.Context, now time.Time, limit int) ([]domain.MemoryCard, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+cardColumns+` FROM cards
		WHERE next_review IS NULL OR next_review <= ?
		ORDER BY next_review IS NOT NULL, next_review, hash
		LIMIT ?
	`, now.UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due cards: %w", err)
	}
	return scanCards(rows)
}

// CountCards computes deck statistics at now.
func (db *DB) CountCards(ctx context.Context, now time.Time) (Stats, error) {
	var s Stats
	err := db.conn.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN next_review IS NULL OR next_review <= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN last_reviewed IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN repetitions >= 2 THEN 1 ELSE 0 END), 0)
		FROM cards
	`, now.UnixMilli()).Scan(&s.Total, &s.Due, &s.New, &s.Learned)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count cards: %w", err)
	}
	return s, nil
}
