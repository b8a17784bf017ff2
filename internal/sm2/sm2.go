// Package sm2 implements the SuperMemo-2 review scheduler.
//
// The scheduler is a pure function over a card's memory state: it never
// reads the clock and never touches storage. Callers supply "now" and own
// persistence of the returned card.
package sm2

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/conorfennell/lexideck/internal/domain"
)

// MaxInterval caps the review interval at roughly a century.
const MaxInterval = 36500

var (
	ErrInvalidQuality = errors.New("quality must be between 0 and 5")
	ErrInvalidCard    = errors.New("invalid card scheduling state")
	ErrInvalidDays    = errors.New("postpone days out of range")
	ErrZeroTime       = errors.New("review time must be set")
)

// Schedule grades card with quality at time now and returns the updated card.
// The input card is not modified.
func Schedule(card domain.MemoryCard, quality Quality, now time.Time) (domain.MemoryCard, error) {
	if !quality.Valid() {
		return card, fmt.Errorf("%w: got %d", ErrInvalidQuality, int(quality))
	}
	if now.IsZero() {
		return card, ErrZeroTime
	}
	if err := Validate(card); err != nil {
		return card, err
	}

	next := card
	if quality.Passed() {
		switch card.Repetitions {
		case 0:
			next.Interval = 1
		case 1:
			next.Interval = 6
		default:
			next.Interval = int(math.Min(math.Round(float64(card.Interval)*card.EaseFactor), MaxInterval))
		}
		next.Repetitions = card.Repetitions + 1
	} else {
		next.Repetitions = 0
		next.Interval = 1
	}

	next.EaseFactor = nextEaseFactor(card.EaseFactor, quality)
	next.LastReviewed = now
	next.NextReview = now.AddDate(0, 0, next.Interval)
	return next, nil
}

// nextEaseFactor is EF' = EF + (0.1 - (5-q) * (0.08 + (5-q) * 0.02)), floored at 1.3.
func nextEaseFactor(ef float64, quality Quality) float64 {
	d := float64(Perfect - quality)
	return math.Max(domain.MinEaseFactor, ef+(0.1-d*(0.08+d*0.02)))
}

// Validate checks that card holds a schedulable state.
func Validate(card domain.MemoryCard) error {
	switch {
	case card.Repetitions < 0:
		return fmt.Errorf("%w: repetitions %d is negative", ErrInvalidCard, card.Repetitions)
	case card.Interval < 1:
		return fmt.Errorf("%w: interval %d is below 1", ErrInvalidCard, card.Interval)
	case math.IsNaN(card.EaseFactor) || math.IsInf(card.EaseFactor, 0):
		return fmt.Errorf("%w: ease factor is not finite", ErrInvalidCard)
	case card.EaseFactor < domain.MinEaseFactor:
		return fmt.Errorf("%w: ease factor %.2f is below %.1f", ErrInvalidCard, card.EaseFactor, domain.MinEaseFactor)
	}
	return nil
}

// IsDue reports whether card should be shown at now. Cards without a
// scheduled review are always due.
func IsDue(card domain.MemoryCard, now time.Time) bool {
	if card.NextReview.IsZero() {
		return true
	}
	return !card.NextReview.After(now)
}

// Postpone moves the next review days calendar days past the later of the
// current due date and now. The memory state is left unchanged. The new due
// date may not lie more than MaxInterval days after now.
func Postpone(card domain.MemoryCard, days int, now time.Time) (domain.MemoryCard, error) {
	if days < 1 || days > MaxInterval {
		return card, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidDays, days, MaxInterval)
	}
	if now.IsZero() {
		return card, ErrZeroTime
	}
	from := card.NextReview
	if from.Before(now) {
		from = now
	}
	next := from.AddDate(0, 0, days)
	if next.After(now.AddDate(0, 0, MaxInterval)) {
		return card, fmt.Errorf("%w: review would move past %d days from now", ErrInvalidDays, MaxInterval)
	}
	card.NextReview = next
	return card, nil
}
