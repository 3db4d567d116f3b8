package flashcard

import (
	"math"
	"time"

	"github.com/vytor/studyflash/internal/errors"
	"github.com/vytor/studyflash/internal/models"
)

const (
	MinConfidence = 0
	MaxConfidence = 4

	// PassQuality is the lowest quality that counts as a successful recall.
	PassQuality = 3
	MaxQuality  = 5
)

// DeriveQuality maps a review outcome onto the 0-5 SM-2 quality scale.
// Correct answers land in 3..5 and incorrect ones in 0..2, with confidence
// moving the score inside each band. Confidence is halved with integer
// division, so 0/1 and 2/3 produce the same quality.
func DeriveQuality(correct bool, confidence int) (int, error) {
	if confidence < MinConfidence || confidence > MaxConfidence {
		return 0, errors.NewInvalidInputError("confidence", "must be between 0 and 4")
	}
	if correct {
		return min(MaxQuality, PassQuality+confidence/2), nil
	}
	return min(PassQuality-1, confidence/2), nil
}

// NextEaseFactor applies the SM-2 ease update, floored at models.MinEaseFactor.
func NextEaseFactor(ef float64, quality int) float64 {
	miss := float64(MaxQuality - quality)
	ef = ef + (0.1 - miss*(0.08+miss*0.02))
	return math.Max(models.MinEaseFactor, ef)
}

// ApplyReview updates card scheduling using SM-2.
// quality: 0..2 is a lapse, 3..5 a pass.
// The new interval is computed from the ease factor the card had before this
// review; the due date counts from reviewedAt, not from the previous due date.
func ApplyReview(card models.Card, quality int, correct bool, reviewedAt time.Time) models.Card {
	if quality < PassQuality {
		card.Repetitions = 0
		card.IntervalDays = 1
	} else {
		switch card.Repetitions {
		case 0:
			card.IntervalDays = 1
		case 1:
			card.IntervalDays = 6
		default:
			next := math.Round(float64(card.IntervalDays) * card.EaseFactor)
			card.IntervalDays = int(math.Min(next, models.MaxIntervalDays))
		}
		card.IntervalDays = max(1, min(card.IntervalDays, models.MaxIntervalDays))
		card.Repetitions++
	}
	card.EaseFactor = NextEaseFactor(card.EaseFactor, quality)

	card.TimesSeen++
	if correct {
		card.TimesCorrect++
	}
	reviewed := reviewedAt
	card.LastReviewed = &reviewed
	card.DueAt = DueDate(reviewedAt, card.IntervalDays)
	return card
}

// DueDate is reviewedAt plus n calendar days, counted in UTC so every day is
// 24 hours long.
func DueDate(reviewedAt time.Time, n int) time.Time {
	return reviewedAt.UTC().AddDate(0, 0, n)
}
