package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	apperrors "github.com/vytor/studyflash/internal/errors"
	"github.com/vytor/studyflash/internal/logger"
	"github.com/vytor/studyflash/internal/models"
	"github.com/vytor/studyflash/internal/repository"
)

const (
	masteredIntervalDays = 21
	strugglingEase       = 1.8
)

type statsRepository struct {
	db *sql.DB
}

// NewStatsRepository creates a new StatsRepository implementation
func NewStatsRepository(db *sql.DB) repository.StatsRepository {
	return &statsRepository{db: db}
}

func aggregateColumns(q squirrel.SelectBuilder, now time.Time) squirrel.SelectBuilder {
	return q.
		Column("COUNT(*)").
		Column("COALESCE(SUM(times_seen), 0)").
		Column("COALESCE(SUM(times_correct), 0)").
		Column(squirrel.Expr("COALESCE(SUM(CASE WHEN due_at <= ? THEN 1 ELSE 0 END), 0)", utc(now))).
		Column("COALESCE(AVG(ease_factor), 0)").
		Column("COALESCE(AVG(interval_days), 0)")
}

func accuracy(correct, seen int) float64 {
	if seen == 0 {
		return 0
	}
	return float64(correct) / float64(seen)
}

func (r *statsRepository) CardStats(ctx context.Context, now time.Time) (*models.CardStat, error) {
	log := logger.FromContext(ctx).WithPrefix("stats_repo")
	log.Debug("fetching card stats")

	query := aggregateColumns(sqlBuilder.Select(), now).
		Column(squirrel.Expr("COALESCE(SUM(CASE WHEN due_at > ? AND due_at <= ? THEN 1 ELSE 0 END), 0)", utc(now), utc(now.Add(24*time.Hour)))).
		Column(squirrel.Expr("COALESCE(SUM(CASE WHEN interval_days >= ? THEN 1 ELSE 0 END), 0)", masteredIntervalDays)).
		Column(squirrel.Expr("COALESCE(SUM(CASE WHEN ease_factor < ? THEN 1 ELSE 0 END), 0)", strugglingEase)).
		From("cards")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Error("failed to build query: %v", err)
		return nil, apperrors.NewInternalError(err)
	}

	var s models.CardStat
	var correct int
	err = r.db.QueryRowContext(ctx, sqlStr, args...).Scan(
		&s.TotalCards, &s.TotalReviews, &correct, &s.CardsDue, &s.AvgEaseFactor, &s.AvgIntervalDays,
		&s.CardsDueSoon, &s.CardsMastered, &s.CardsStruggling,
	)
	if err != nil {
		log.Error("failed to query card stats: %v", err)
		return nil, apperrors.NewStorageError("card stats", err)
	}
	s.OverallAccuracy = accuracy(correct, s.TotalReviews)
	return &s, nil
}

func (r *statsRepository) SubjectStats(ctx context.Context, now time.Time) ([]models.SubjectStat, error) {
	log := logger.FromContext(ctx).WithPrefix("stats_repo")
	log.Debug("fetching subject stats")

	query := aggregateColumns(sqlBuilder.Select("subject"), now).
		From("cards").
		GroupBy("subject").
		OrderBy("subject ASC")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Error("failed to build query: %v", err)
		return nil, apperrors.NewInternalError(err)
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		log.Error("failed to query subject stats: %v", err)
		return nil, apperrors.NewStorageError("subject stats", err)
	}
	defer rows.Close()

	stats := []models.SubjectStat{}
	for rows.Next() {
		var s models.SubjectStat
		var correct int
		if err := rows.Scan(&s.Subject, &s.TotalCards, &s.TotalReviews, &correct, &s.CardsDue, &s.AvgEaseFactor, &s.AvgIntervalDays); err != nil {
			log.Error("failed to scan subject stat row: %v", err)
			return nil, apperrors.NewStorageError("subject stats", err)
		}
		s.AvgAccuracy = accuracy(correct, s.TotalReviews)
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("subject stats", err)
	}
	log.Debug("found %d subjects", len(stats))
	return stats, nil
}
