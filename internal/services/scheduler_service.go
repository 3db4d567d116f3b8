package services

import (
	"context"
	"time"

	"github.com/vytor/studyflash/internal/errors"
	"github.com/vytor/studyflash/internal/flashcard"
	"github.com/vytor/studyflash/internal/logger"
	"github.com/vytor/studyflash/internal/models"
	"github.com/vytor/studyflash/internal/repository"
)

// ReviewResult is what a successful review reports back to the session.
// Interval is only meaningful when RecordReview returned a nil error.
type ReviewResult struct {
	Card     models.Card `json:"card"`
	Quality  int         `json:"quality"`
	Interval int         `json:"interval"`
}

// ReviewScheduler turns review outcomes into new schedules and picks the
// next cards to study.
type ReviewScheduler interface {
	RecordReview(ctx context.Context, cardID string, correct bool, confidence int) (*ReviewResult, error)
	NextBatch(ctx context.Context, now time.Time, limit int) ([]models.Card, error)
	NextBatchFiltered(ctx context.Context, now time.Time, limit int, filter models.CardFilter) ([]models.Card, error)
	Card(ctx context.Context, cardID string) (*models.Card, error)
}

type reviewScheduler struct {
	cards      repository.CardRepository
	now        func() time.Time
	maxRetries int
	backoff    time.Duration
}

// SchedulerOption configures a ReviewScheduler.
type SchedulerOption func(*reviewScheduler)

// WithClock sets the source of review timestamps.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *reviewScheduler) {
		s.now = now
	}
}

// WithRetry bounds how often a review is re-attempted after a storage
// failure, and the initial pause between attempts (doubled each time).
func WithRetry(maxRetries int, backoff time.Duration) SchedulerOption {
	return func(s *reviewScheduler) {
		if maxRetries < 0 {
			maxRetries = 0
		}
		s.maxRetries = maxRetries
		s.backoff = backoff
	}
}

// NewReviewScheduler creates a new ReviewScheduler backed by cards.
func NewReviewScheduler(cards repository.CardRepository, opts ...SchedulerOption) ReviewScheduler {
	s := &reviewScheduler{
		cards:      cards,
		now:        time.Now,
		maxRetries: 3,
		backoff:    50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *reviewScheduler) RecordReview(ctx context.Context, cardID string, correct bool, confidence int) (*ReviewResult, error) {
	log := logger.FromContext(ctx).WithPrefix("scheduler").WithField("card_id", cardID)
	log.Debug("recording review: correct=%v, confidence=%d", correct, confidence)

	quality, err := flashcard.DeriveQuality(correct, confidence)
	if err != nil {
		log.Warn("rejecting review: %v", err)
		return nil, err
	}
	if cardID == "" {
		return nil, errors.NewInvalidInputError("card_id", "must not be empty")
	}

	backoff := s.backoff
	for attempt := 0; ; attempt++ {
		result, err := s.review(ctx, cardID, correct, confidence, quality)
		if err == nil {
			log.Info("review recorded: quality=%d, interval=%d, ease=%.2f", quality, result.Interval, result.Card.EaseFactor)
			return result, nil
		}
		if !errors.IsStorage(err) || attempt >= s.maxRetries {
			log.Error("review failed after %d attempt(s): %v", attempt+1, err)
			return nil, err
		}

		log.Warn("storage failure on attempt %d, retrying in %v: %v", attempt+1, backoff, err)
		select {
		case <-ctx.Done():
			return nil, errors.NewStorageError("record review", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// review is one complete read-update-persist cycle, run by the store as a
// single transaction; retries repeat all of it.
func (s *reviewScheduler) review(ctx context.Context, cardID string, correct bool, confidence, quality int) (*ReviewResult, error) {
	updated, err := s.cards.RecordReview(ctx, cardID, func(card models.Card) (models.Card, models.ReviewEvent) {
		reviewedAt := s.now()
		event := models.ReviewEvent{
			CardID:     cardID,
			ReviewedAt: reviewedAt,
			Correct:    correct,
			Confidence: confidence,
			Quality:    quality,
		}
		return flashcard.ApplyReview(card, quality, correct, reviewedAt), event
	})
	if err != nil {
		return nil, asAppError(err)
	}
	return &ReviewResult{Card: *updated, Quality: quality, Interval: updated.IntervalDays}, nil
}

func (s *reviewScheduler) NextBatch(ctx context.Context, now time.Time, limit int) ([]models.Card, error) {
	return s.NextBatchFiltered(ctx, now, limit, models.CardFilter{})
}

func (s *reviewScheduler) NextBatchFiltered(ctx context.Context, now time.Time, limit int, filter models.CardFilter) ([]models.Card, error) {
	log := logger.FromContext(ctx).WithPrefix("scheduler")
	log.Debug("selecting next batch: limit=%d", limit)

	cards, err := s.cards.DueBefore(ctx, now, limit, filter)
	if err != nil {
		log.Error("failed to select due cards: %v", err)
		return nil, asAppError(err)
	}
	return cards, nil
}

func (s *reviewScheduler) Card(ctx context.Context, cardID string) (*models.Card, error) {
	card, err := s.cards.Get(ctx, cardID)
	if err != nil {
		return nil, asAppError(err)
	}
	return card, nil
}

// asAppError keeps classified errors intact and marks anything else internal.
func asAppError(err error) error {
	if errors.CodeOf(err) != "" {
		return err
	}
	return errors.NewInternalError(err)
}
