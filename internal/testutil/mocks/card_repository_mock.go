package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/studyflash/internal/models"
	"github.com/vytor/studyflash/internal/repository"
)

// MockCardRepository is a mock implementation of repository.CardRepository
type MockCardRepository struct {
	mock.Mock
}

func (m *MockCardRepository) Get(ctx context.Context, id string) (*models.Card, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Card), args.Error(1)
}

func (m *MockCardRepository) Upsert(ctx context.Context, card models.Card) error {
	args := m.Called(ctx, card)
	return args.Error(0)
}

func (m *MockCardRepository) DueBefore(ctx context.Context, ts time.Time, limit int, filter models.CardFilter) ([]models.Card, error) {
	args := m.Called(ctx, ts, limit, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Card), args.Error(1)
}

// RecordReview returns the configured error, or applies review to the
// configured stored card (a models.Card value) and returns the result.
func (m *MockCardRepository) RecordReview(ctx context.Context, cardID string, review repository.ReviewFunc) (*models.Card, error) {
	args := m.Called(ctx, cardID, review)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	switch stored := args.Get(0).(type) {
	case models.Card:
		updated, _ := review(stored)
		return &updated, nil
	case *models.Card:
		return stored, nil
	default:
		return nil, nil
	}
}

func (m *MockCardRepository) ReviewHistory(ctx context.Context, cardID string, limit int) ([]models.ReviewEvent, error) {
	args := m.Called(ctx, cardID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ReviewEvent), args.Error(1)
}

func (m *MockCardRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
