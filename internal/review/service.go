// Package review owns the state around the SM-2 scheduler: it loads cards,
// grades them at the service clock's time and persists the result together
// with a review log entry.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/lexideck/internal/domain"
	"github.com/conorfennell/lexideck/internal/sm2"
	"github.com/conorfennell/lexideck/internal/storage"
)

var (
	ErrNoDueCards   = errors.New("no cards are due")
	ErrCardNotFound = errors.New("card not found")
)

// Store is the persistence the service depends on.
type Store interface {
	FindCardByHash(ctx context.Context, hash string) (*domain.MemoryCard, error)
	GetDueCards(ctx context.Context, now time.Time, limit int) ([]domain.MemoryCard, error)
	UpdateCard(ctx context.Context, hash string, fn storage.CardUpdate) (domain.MemoryCard, error)
	GetReviewLogs(ctx context.Context, hash string, limit int) ([]domain.ReviewLog, error)
	CountCards(ctx context.Context, now time.Time) (storage.Stats, error)
}

// Clock returns the current time.
type Clock func() time.Time

// Service grades and selects cards.
type Service struct {
	store  Store
	clock  Clock
	logger *slog.Logger
	newID  func() string
}

// NewService creates a review service. A nil clock uses time.Now and a nil
// logger uses slog.Default.
func NewService(store Store, clock Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		clock:  clock,
		logger: logger.With("component", "review"),
		newID:  func() string { return uuid.New().String() },
	}
}

// Next returns the first card due now.
func (s *Service) Next(ctx context.Context) (domain.MemoryCard, error) {
	cards, err := s.store.GetDueCards(ctx, s.clock(), 1)
	if err != nil {
		return domain.MemoryCard{}, err
	}
	if len(cards) == 0 {
		return domain.MemoryCard{}, ErrNoDueCards
	}
	return cards[0], nil
}

// Due lists up to limit cards due now; limit <= 0 lists all of them.
func (s *Service) Due(ctx context.Context, limit int) ([]domain.MemoryCard, error) {
	return s.store.GetDueCards(ctx, s.clock(), limit)
}

func (s *Service) find(ctx context.Context, hash string) (domain.MemoryCard, error) {
	card, err := s.store.FindCardByHash(ctx, hash)
	if err != nil {
		return domain.MemoryCard{}, err
	}
	if card == nil {
		return domain.MemoryCard{}, fmt.Errorf("%w: %s", ErrCardNotFound, hash)
	}
	return *card, nil
}

func (s *Service) update(ctx context.Context, hash string, fn storage.CardUpdate) (domain.MemoryCard, error) {
	card, err := s.store.UpdateCard(ctx, hash, fn)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.MemoryCard{}, fmt.Errorf("%w: %s", ErrCardNotFound, hash)
	}
	return card, err
}

// Grade applies a review of the given quality to the card identified by hash
// and returns its new schedule. The card is read and written in one
// transaction, so concurrent grades of the same card each count.
func (s *Service) Grade(ctx context.Context, hash string, quality sm2.Quality) (domain.MemoryCard, error) {
	now := s.clock()
	next, err := s.update(ctx, hash, func(card domain.MemoryCard) (domain.MemoryCard, *domain.ReviewLog, error) {
		next, err := sm2.Schedule(card, quality, now)
		if err != nil {
			return card, nil, fmt.Errorf("failed to schedule card %s: %w", hash, err)
		}
		return next, &domain.ReviewLog{
			ID:          s.newID(),
			CardHash:    next.Hash,
			Quality:     int(quality),
			ReviewedAt:  now,
			Repetitions: next.Repetitions,
			Interval:    next.Interval,
			EaseFactor:  next.EaseFactor,
			NextReview:  next.NextReview,
		}, nil
	})
	if err != nil {
		return domain.MemoryCard{}, err
	}

	s.logger.Info("card graded",
		"hash", hash,
		"quality", quality.String(),
		"repetitions", next.Repetitions,
		"interval_days", next.Interval,
		"ease_factor", next.EaseFactor,
		"next_review", next.NextReview,
	)
	return next, nil
}

// Postpone pushes the card's next review back by days.
func (s *Service) Postpone(ctx context.Context, hash string, days int) (domain.MemoryCard, error) {
	now := s.clock()
	next, err := s.update(ctx, hash, func(card domain.MemoryCard) (domain.MemoryCard, *domain.ReviewLog, error) {
		next, err := sm2.Postpone(card, days, now)
		return next, nil, err
	})
	if err != nil {
		return domain.MemoryCard{}, err
	}
	s.logger.Info("card postponed", "hash", hash, "days", days, "next_review", next.NextReview)
	return next, nil
}

// Stats reports deck counts at the current time.
func (s *Service) Stats(ctx context.Context) (storage.Stats, error) {
	return s.store.CountCards(ctx, s.clock())
}

// History returns the card's review logs, newest first.
func (s *Service) History(ctx context.Context, hash string, limit int) ([]domain.ReviewLog, error) {
	if _, err := s.find(ctx, hash); err != nil {
		return nil, err
	}
	return s.store.GetReviewLogs(ctx, hash, limit)
}
