package services

import (
	"context"
	"time"

	"github.com/vytor/studyflash/internal/logger"
	"github.com/vytor/studyflash/internal/models"
	"github.com/vytor/studyflash/internal/repository"
)

// StatsReport bundles the reporting views. It is read-only with respect to
// scheduling state.
type StatsReport struct {
	GeneratedAt time.Time            `json:"generated_at"`
	Summary     *models.CardStat     `json:"summary"`
	Subjects    []models.SubjectStat `json:"subjects"`
}

// StatsService handles statistics-related business logic
type StatsService interface {
	Summary(ctx context.Context, now time.Time) (*models.CardStat, error)
	BySubject(ctx context.Context, now time.Time) ([]models.SubjectStat, error)
	Report(ctx context.Context, now time.Time) (*StatsReport, error)
	History(ctx context.Context, cardID string, limit int) ([]models.ReviewEvent, error)
}

type statsService struct {
	statsRepo repository.StatsRepository
	cards     repository.CardRepository
}

// NewStatsService creates a new StatsService
func NewStatsService(statsRepo repository.StatsRepository, cards repository.CardRepository) StatsService {
	return &statsService{statsRepo: statsRepo, cards: cards}
}

func (s *statsService) Summary(ctx context.Context, now time.Time) (*models.CardStat, error) {
	log := logger.FromContext(ctx)
	log.Debug("getting card summary")

	stats, err := s.statsRepo.CardStats(ctx, now)
	if err != nil {
		log.Error("failed to get card stats: %v", err)
		return nil, asAppError(err)
	}
	return stats, nil
}

func (s *statsService) BySubject(ctx context.Context, now time.Time) ([]models.SubjectStat, error) {
	log := logger.FromContext(ctx)
	log.Debug("getting subject stats")

	stats, err := s.statsRepo.SubjectStats(ctx, now)
	if err != nil {
		log.Error("failed to get subject stats: %v", err)
		return nil, asAppError(err)
	}
	return stats, nil
}

func (s *statsService) Report(ctx context.Context, now time.Time) (*StatsReport, error) {
	summary, err := s.Summary(ctx, now)
	if err != nil {
		return nil, err
	}
	subjects, err := s.BySubject(ctx, now)
	if err != nil {
		return nil, err
	}
	return &StatsReport{GeneratedAt: now, Summary: summary, Subjects: subjects}, nil
}

func (s *statsService) History(ctx context.Context, cardID string, limit int) ([]models.ReviewEvent, error) {
	log := logger.FromContext(ctx)
	log.Debug("getting review history: card_id=%s, limit=%d", cardID, limit)

	// Unknown ids are reported as such rather than as an empty history.
	if _, err := s.cards.Get(ctx, cardID); err != nil {
		return nil, asAppError(err)
	}
	events, err := s.cards.ReviewHistory(ctx, cardID, limit)
	if err != nil {
		log.Error("failed to get review history: %v", err)
		return nil, asAppError(err)
	}
	return events, nil
}
