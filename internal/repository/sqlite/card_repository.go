package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Masterminds/squirrel"
	apperrors "github.com/vytor/studyflash/internal/errors"
	"github.com/vytor/studyflash/internal/logger"
	"github.com/vytor/studyflash/internal/models"
	"github.com/vytor/studyflash/internal/repository"
)

var cardColumns = []string{
	"id", "subject", "topic", "front", "back", "ease_factor", "interval_days", "repetitions",
	"due_at", "last_reviewed", "times_seen", "times_correct", "created_at",
}

type cardRepository struct {
	db *sql.DB
}

// NewCardRepository creates a new CardRepository implementation
func NewCardRepository(db *sql.DB) repository.CardRepository {
	return &cardRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (models.Card, error) {
	var c models.Card
	var lastReviewed sql.NullTime
	err := row.Scan(&c.ID, &c.Subject, &c.Topic, &c.Front, &c.Back, &c.EaseFactor, &c.IntervalDays, &c.Repetitions,
		&c.DueAt, &lastReviewed, &c.TimesSeen, &c.TimesCorrect, &c.CreatedAt)
	c.LastReviewed = fromNullTime(lastReviewed)
	return c, err
}

func (r *cardRepository) Get(ctx context.Context, id string) (*models.Card, error) {
	log := logger.FromContext(ctx).WithPrefix("card_repo")
	log.Debug("getting card: id=%s", id)

	query, args, err := sqlBuilder.Select(cardColumns...).From("cards").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	c, err := scanCard(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("card not found: id=%s", id)
		return nil, apperrors.NewNotFoundError("card", id)
	}
	if err != nil {
		log.Error("failed to get card: %v", err)
		return nil, apperrors.NewStorageError("get card", err)
	}
	return &c, nil
}

// Upsert creates the card on first write and afterwards replaces its
// scheduling fields. Subject and topic keep their original values; a change
// to front or back is rejected.
func (r *cardRepository) Upsert(ctx context.Context, c models.Card) error {
	log := logger.FromContext(ctx).WithPrefix("card_repo")
	log.Debug("upserting card: id=%s, interval=%d, ease=%.2f", c.ID, c.IntervalDays, c.EaseFactor)

	return tx(ctx, r.db, "upsert card", func(tx *sql.Tx) error {
		var front, back string
		err := tx.QueryRowContext(ctx, `SELECT front, back FROM cards WHERE id = ?`, c.ID).Scan(&front, &back)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			createdAt := c.CreatedAt
			if createdAt.IsZero() {
				createdAt = c.DueAt
			}
			_, err = tx.ExecContext(ctx, `
INSERT INTO cards (id, subject, topic, front, back, ease_factor, interval_days, repetitions, due_at, last_reviewed, times_seen, times_correct, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, c.ID, c.Subject, c.Topic, c.Front, c.Back, c.EaseFactor, c.IntervalDays, c.Repetitions,
				utc(c.DueAt), nullTime(c.LastReviewed), c.TimesSeen, c.TimesCorrect, utc(createdAt))
			if err != nil {
				log.Error("failed to insert card: %v", err)
			}
			return err
		case err != nil:
			log.Error("failed to read card for upsert: %v", err)
			return err
		}

		if front != c.Front {
			log.Warn("rejecting upsert that changes front: id=%s", c.ID)
			return apperrors.NewConflictError("card", c.ID, "front")
		}
		if back != c.Back {
			log.Warn("rejecting upsert that changes back: id=%s", c.ID)
			return apperrors.NewConflictError("card", c.ID, "back")
		}
		return updateSchedule(ctx, tx, c)
	})
}

func updateSchedule(ctx context.Context, tx *sql.Tx, c models.Card) error {
	_, err := tx.ExecContext(ctx, `
UPDATE cards
SET ease_factor = ?, interval_days = ?, repetitions = ?, due_at = ?, last_reviewed = ?, times_seen = ?, times_correct = ?
WHERE id = ?
`, c.EaseFactor, c.IntervalDays, c.Repetitions, utc(c.DueAt), nullTime(c.LastReviewed), c.TimesSeen, c.TimesCorrect, c.ID)
	return err
}

// DueBefore returns up to limit cards due at or before ts, most overdue
// first and least-practiced first on equal due dates.
func (r *cardRepository) DueBefore(ctx context.Context, ts time.Time, limit int, filter models.CardFilter) ([]models.Card, error) {
	log := logger.FromContext(ctx).WithPrefix("card_repo")
	log.Debug("fetching due cards: before=%s, limit=%d, subject=%q, topic=%q", ts.Format(time.RFC3339), limit, filter.Subject, filter.Topic)

	if limit <= 0 {
		return []models.Card{}, nil
	}

	query := sqlBuilder.Select(cardColumns...).From("cards").Where(squirrel.LtOrEq{"due_at": utc(ts)})
	if filter.Subject != "" {
		query = query.Where(squirrel.Eq{"subject": filter.Subject})
	}
	if filter.Topic != "" {
		query = query.Where(squirrel.Eq{"topic": filter.Topic})
	}
	// id breaks remaining ties so repeated calls return the same sequence.
	query = query.OrderBy("due_at ASC", "repetitions ASC", "id ASC").Limit(uint64(limit))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Error("failed to build query: %v", err)
		return nil, apperrors.NewInternalError(err)
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		log.Error("failed to query due cards: %v", err)
		return nil, apperrors.NewStorageError("query due cards", err)
	}
	defer rows.Close()

	cards := []models.Card{}
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			log.Error("failed to scan card row: %v", err)
			return nil, apperrors.NewStorageError("scan due cards", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("query due cards", err)
	}
	log.Debug("found %d due cards", len(cards))
	return cards, nil
}

// RecordReview reads the card, lets review compute its next state and writes
// the new schedule plus the history entry, all in one immediate transaction.
// Concurrent reviews of a card therefore apply one after the other.
func (r *cardRepository) RecordReview(ctx context.Context, cardID string, review repository.ReviewFunc) (*models.Card, error) {
	log := logger.FromContext(ctx).WithPrefix("card_repo")
	log.Debug("recording review: id=%s", cardID)

	query, args, err := sqlBuilder.Select(cardColumns...).From("cards").Where(squirrel.Eq{"id": cardID}).ToSql()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	var updated models.Card
	err = tx(ctx, r.db, "record review", func(tx *sql.Tx) error {
		current, err := scanCard(tx.QueryRowContext(ctx, query, args...))
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFoundError("card", cardID)
		}
		if err != nil {
			log.Error("failed to read card for review: %v", err)
			return err
		}

		var ev models.ReviewEvent
		updated, ev = review(current)
		if updated.ID != current.ID || !current.SameContent(updated) {
			return apperrors.NewConflictError("card", cardID, "content")
		}
		ev.CardID = current.ID

		if err := updateSchedule(ctx, tx, updated); err != nil {
			log.Error("failed to update card: %v", err)
			return err
		}

		_, err = tx.ExecContext(ctx, `
INSERT INTO review_history (card_id, reviewed_at, correct, confidence, quality)
VALUES (?, ?, ?, ?, ?)
`, ev.CardID, utc(ev.ReviewedAt), ev.Correct, ev.Confidence, ev.Quality)
		if err != nil {
			log.Error("failed to insert review history: %v", err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Debug("review recorded: id=%s, interval=%d", cardID, updated.IntervalDays)
	return &updated, nil
}

// ReviewHistory returns the most recent review events for a card, newest first.
func (r *cardRepository) ReviewHistory(ctx context.Context, cardID string, limit int) ([]models.ReviewEvent, error) {
	log := logger.FromContext(ctx).WithPrefix("card_repo")
	log.Debug("fetching review history: card_id=%s, limit=%d", cardID, limit)

	query := sqlBuilder.Select("id", "card_id", "reviewed_at", "correct", "confidence", "quality").
		From("review_history").
		Where(squirrel.Eq{"card_id": cardID}).
		OrderBy("reviewed_at DESC", "id DESC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		log.Error("failed to query review history: %v", err)
		return nil, apperrors.NewStorageError("query review history", err)
	}
	defer rows.Close()

	events := []models.ReviewEvent{}
	for rows.Next() {
		var ev models.ReviewEvent
		if err := rows.Scan(&ev.ID, &ev.CardID, &ev.ReviewedAt, &ev.Correct, &ev.Confidence, &ev.Quality); err != nil {
			log.Error("failed to scan review row: %v", err)
			return nil, apperrors.NewStorageError("scan review history", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("query review history", err)
	}
	return events, nil
}

func (r *cardRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards`).Scan(&n); err != nil {
		logger.FromContext(ctx).WithPrefix("card_repo").Error("failed to count cards: %v", err)
		return 0, apperrors.NewStorageError("count cards", err)
	}
	return n, nil
}
