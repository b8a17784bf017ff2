package review

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/lexideck/internal/cardhash"
	"github.com/conorfennell/lexideck/internal/domain"
	"github.com/conorfennell/lexideck/internal/sm2"
	"github.com/conorfennell/lexideck/internal/storage"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(days int) { c.now = c.now.AddDate(0, 0, days) }

func newTestService(t *testing.T, words ...string) (*Service, *storage.DB, *fakeClock, []string) {
	t.Helper()
	ctx := context.Background()
	db, err := storage.OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var hashes []string
	for _, w := range words {
		card := domain.NewMemoryCard(w, "translation of "+w)
		card.Hash = cardhash.Hash(card)
		require.NoError(t, db.InsertCard(ctx, card, 0))
		hashes = append(hashes, card.Hash)
	}

	clock := &fakeClock{now: time.Date(2024, time.January, 15, 10, 0, 0, 0, time.UTC)}
	svc := NewService(db, clock.Now, nil)
	return svc, db, clock, hashes
}

func TestGradePersistsScheduleAndLog(t *testing.T) {
	ctx := context.Background()
	svc, db, clock, hashes := newTestService(t, "der Baum")

	got, err := svc.Grade(ctx, hashes[0], sm2.Perfect)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Repetitions)
	assert.Equal(t, 1, got.Interval)
	assert.InDelta(t, 2.6, got.EaseFactor, 1e-9)
	assert.True(t, got.LastReviewed.Equal(clock.now))
	assert.True(t, got.NextReview.Equal(clock.now.AddDate(0, 0, 1)))

	stored, err := db.FindCardByHash(ctx, hashes[0])
	require.NoError(t, err)
	assert.Equal(t, got.Repetitions, stored.Repetitions)
	assert.True(t, stored.NextReview.Equal(got.NextReview))

	logs, err := svc.History(ctx, hashes[0], 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, int(sm2.Perfect), logs[0].Quality)
	assert.NotEmpty(t, logs[0].ID)
	assert.True(t, logs[0].ReviewedAt.Equal(clock.now))
}

func TestGradeProgressionOverTime(t *testing.T) {
	ctx := context.Background()
	svc, _, clock, hashes := newTestService(t, "la luna")

	wantIntervals := []int{1, 6, 16}
	for i, want := range wantIntervals {
		card, err := svc.Grade(ctx, hashes[0], sm2.Perfect)
		require.NoError(t, err)
		assert.Equal(t, want, card.Interval, "review %d", i+1)
		clock.advance(card.Interval)
	}

	card, err := svc.Grade(ctx, hashes[0], sm2.Wrong)
	require.NoError(t, err)
	assert.Equal(t, 0, card.Repetitions)
	assert.Equal(t, 1, card.Interval)

	logs, err := svc.History(ctx, hashes[0], 0)
	require.NoError(t, err)
	assert.Len(t, logs, 4)
}

func TestGradeErrors(t *testing.T) {
	ctx := context.Background()
	svc, _, _, hashes := newTestService(t, "il cane")

	_, err := svc.Grade(ctx, "missing", sm2.Good)
	assert.ErrorIs(t, err, ErrCardNotFound)

	_, err = svc.Grade(ctx, hashes[0], sm2.Quality(7))
	assert.ErrorIs(t, err, sm2.ErrInvalidQuality)

	logs, err := svc.History(ctx, hashes[0], 0)
	require.NoError(t, err)
	assert.Empty(t, logs, "rejected grades must not be logged")
}

func TestNextAndDue(t *testing.T) {
	ctx := context.Background()
	svc, _, clock, hashes := newTestService(t, "uno", "dos")

	due, err := svc.Due(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, due, 2)

	for _, h := range hashes {
		_, err := svc.Grade(ctx, h, sm2.Good)
		require.NoError(t, err)
	}

	_, err = svc.Next(ctx)
	assert.True(t, errors.Is(err, ErrNoDueCards))

	clock.advance(1)
	next, err := svc.Next(ctx)
	require.NoError(t, err)
	assert.Contains(t, hashes, next.Hash)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.Stats{Total: 2, Due: 2, New: 0, Learned: 0}, stats)
}

func TestPostpone(t *testing.T) {
	ctx := context.Background()
	svc, _, clock, hashes := newTestService(t, "el sol")

	card, err := svc.Postpone(ctx, hashes[0], 3)
	require.NoError(t, err)
	assert.True(t, card.NextReview.Equal(clock.now.AddDate(0, 0, 3)))

	_, err = svc.Next(ctx)
	assert.ErrorIs(t, err, ErrNoDueCards)

	_, err = svc.Postpone(ctx, hashes[0], 0)
	assert.ErrorIs(t, err, sm2.ErrInvalidDays)

	_, err = svc.Postpone(ctx, "missing", 2)
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestHistoryUnknownCard(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.History(context.Background(), "missing", 0)
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestConcurrentGradesAllCount(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(ctx, filepath.Join(t.TempDir(), "lexideck.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	card := domain.NewMemoryCard("la ventana", "the window")
	card.Hash = cardhash.Hash(card)
	require.NoError(t, db.InsertCard(ctx, card, 0))

	clock := &fakeClock{now: time.Date(2024, time.January, 15, 10, 0, 0, 0, time.UTC)}
	svc := NewService(db, clock.Now, nil)

	const graders = 20
	var wg sync.WaitGroup
	errs := make(chan error, graders)
	for i := 0; i < graders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Grade(ctx, card.Hash, sm2.Perfect)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	logs, err := svc.History(ctx, card.Hash, 0)
	require.NoError(t, err)
	assert.Len(t, logs, graders)

	got, err := db.FindCardByHash(ctx, card.Hash)
	require.NoError(t, err)
	assert.Equal(t, graders, got.Repetitions)
	assert.LessOrEqual(t, got.Interval, sm2.MaxInterval)
}

func TestConcurrentPostponesAllCount(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(ctx, filepath.Join(t.TempDir(), "lexideck.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	card := domain.NewMemoryCard("el puente", "the bridge")
	card.Hash = cardhash.Hash(card)
	require.NoError(t, db.InsertCard(ctx, card, 0))

	clock := &fakeClock{now: time.Date(2024, time.January, 15, 10, 0, 0, 0, time.UTC)}
	svc := NewService(db, clock.Now, nil)

	const postpones = 10
	var wg sync.WaitGroup
	for i := 0; i < postpones; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Postpone(ctx, card.Hash, 2)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := db.FindCardByHash(ctx, card.Hash)
	require.NoError(t, err)
	assert.True(t, got.NextReview.Equal(clock.now.AddDate(0, 0, 2*postpones)), "next review %v", got.NextReview)
}
