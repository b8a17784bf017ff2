package domain

import "time"

// Defaults for a card that has never been reviewed.
const (
	DefaultInterval   = 1
	DefaultEaseFactor = 2.5
	MinEaseFactor     = 1.3
)

// MemoryCard is a single word/translation pair together with its
// spaced-repetition state.
type MemoryCard struct {
	Word        string
	Translation string
	Note        string
	Hash        string

	Repetitions int     // consecutive successful reviews
	Interval    int     // days until the next review
	EaseFactor  float64 // interval growth multiplier

	// Zero until the first review.
	LastReviewed time.Time
	NextReview   time.Time
}

// NewMemoryCard returns a card with the default scheduling state.
func NewMemoryCard(word, translation string) MemoryCard {
	return MemoryCard{
		Word:        word,
		Translation: translation,
		Interval:    DefaultInterval,
		EaseFactor:  DefaultEaseFactor,
	}
}

// Reviewed reports whether the card has been graded at least once.
func (c MemoryCard) Reviewed() bool {
	return !c.LastReviewed.IsZero()
}

// ReviewLog records a single grading event and the schedule it produced.
// Quality is the SM-2 grade:
// 0: complete blackout
// 1-2: wrong answer
// 3: correct with serious difficulty
// 4: correct after hesitation
// 5: perfect recall
type ReviewLog struct {
	ID          string
	CardHash    string
	Quality     int
	ReviewedAt  time.Time
	Repetitions int
	Interval    int
	EaseFactor  float64
	NextReview  time.Time
}
