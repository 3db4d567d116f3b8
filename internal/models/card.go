package models

import "time"

// Scheduling defaults for a freshly imported card.
const (
	DefaultEaseFactor = 2.5
	MinEaseFactor     = 1.3
	DefaultInterval   = 1

	// MaxIntervalDays caps interval growth at roughly a century.
	MaxIntervalDays = 36500
)

type Card struct {
	ID           string     `json:"id"`
	Subject      string     `json:"subject"`
	Topic        string     `json:"topic"`
	Front        string     `json:"front"`
	Back         string     `json:"back"`
	EaseFactor   float64    `json:"ease_factor"`
	IntervalDays int        `json:"interval_days"`
	Repetitions  int        `json:"repetitions"`
	DueAt        time.Time  `json:"due_at"`
	LastReviewed *time.Time `json:"last_reviewed,omitempty"`
	TimesSeen    int        `json:"times_seen"`
	TimesCorrect int        `json:"times_correct"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NewCard returns a card with initial scheduling parameters, due immediately.
func NewCard(id, subject, topic, front, back string, now time.Time) Card {
	return Card{
		ID:           id,
		Subject:      subject,
		Topic:        topic,
		Front:        front,
		Back:         back,
		EaseFactor:   DefaultEaseFactor,
		IntervalDays: DefaultInterval,
		Repetitions:  0,
		DueAt:        now,
		CreatedAt:    now,
	}
}

// IsDue reports whether the card should be shown at t.
func (c Card) IsDue(t time.Time) bool {
	return !c.DueAt.After(t)
}

// SameContent reports whether the immutable prompt/answer pair matches.
func (c Card) SameContent(other Card) bool {
	return c.Front == other.Front && c.Back == other.Back
}

// ReviewEvent is one entry of the append-only review history.
type ReviewEvent struct {
	ID         int64     `json:"id"`
	CardID     string    `json:"card_id"`
	ReviewedAt time.Time `json:"reviewed_at"`
	Correct    bool      `json:"correct"`
	Confidence int       `json:"confidence"`
	Quality    int       `json:"quality"`
}

// CardFilter narrows due-card selection. Zero value matches every card.
type CardFilter struct {
	Subject string
	Topic   string
}
