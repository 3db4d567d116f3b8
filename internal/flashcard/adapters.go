package flashcard

import (
	"strconv"
	"strings"

	"github.com/vytor/studyflash/internal/errors"
)

// Rating is a four-button answer scale.
type Rating int

const (
	Again Rating = 1
	Hard  Rating = 2
	Good  Rating = 3
	Easy  Rating = 4
)

// FromRating maps a button rating onto (correct, confidence).
// Again is an unconfident miss; the other buttons are passes of rising
// confidence.
func FromRating(r Rating) (correct bool, confidence int, err error) {
	switch r {
	case Again:
		return false, 0, nil
	case Hard:
		return true, 0, nil
	case Good:
		return true, 2, nil
	case Easy:
		return true, 4, nil
	default:
		return false, 0, errors.NewInvalidInputError("rating", "must be between 1 and 4")
	}
}

var ratingNames = map[string]Rating{
	"again": Again,
	"hard":  Hard,
	"good":  Good,
	"easy":  Easy,
}

// ParseRating accepts a button name or its number.
func ParseRating(s string) (Rating, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if r, ok := ratingNames[s]; ok {
		return r, nil
	}
	if n, err := strconv.Atoi(s); err == nil && n >= int(Again) && n <= int(Easy) {
		return Rating(n), nil
	}
	return 0, errors.NewInvalidInputError("rating", "must be again, hard, good, easy or 1-4")
}

// FromPercent maps a 0-100 confidence slider onto the 0-4 scale.
func FromPercent(percent int) (int, error) {
	if percent < 0 || percent > 100 {
		return 0, errors.NewInvalidInputError("confidence", "percent must be between 0 and 100")
	}
	// 0-19 -> 0, 20-39 -> 1, ... 80-100 -> 4
	return min(MaxConfidence, percent/20), nil
}
