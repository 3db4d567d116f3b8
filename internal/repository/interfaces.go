package repository

import (
	"context"
	"time"

	"github.com/vytor/studyflash/internal/models"
)

// ReviewFunc derives a card's next schedule and its history entry from the
// stored state. It runs inside the write transaction and must not block.
type ReviewFunc func(current models.Card) (models.Card, models.ReviewEvent)

// CardRepository is the card store: point lookup, point update and the
// due-card range query. Scheduling writes go through RecordReview, which
// reads the card, applies the review and stores the result together with
// its history entry as one serialized unit.
type CardRepository interface {
	Get(ctx context.Context, id string) (*models.Card, error)
	Upsert(ctx context.Context, card models.Card) error
	DueBefore(ctx context.Context, ts time.Time, limit int, filter models.CardFilter) ([]models.Card, error)
	RecordReview(ctx context.Context, cardID string, review ReviewFunc) (*models.Card, error)
	ReviewHistory(ctx context.Context, cardID string, limit int) ([]models.ReviewEvent, error)
	Count(ctx context.Context) (int, error)
}

// StatsRepository serves read-only aggregates for reporting.
type StatsRepository interface {
	CardStats(ctx context.Context, now time.Time) (*models.CardStat, error)
	SubjectStats(ctx context.Context, now time.Time) ([]models.SubjectStat, error)
}
