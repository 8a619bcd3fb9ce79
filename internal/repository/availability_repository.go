package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coliving-calendar-api/internal/models"
)

// ErrBookedOverlap is returned when a block would cover a booked day.
var ErrBookedOverlap = errors.New("window overlaps booked days")

var availabilityColumns = []string{"apartment_id", "date", "status", "booking_reference", "notes", "updated_at"}

// AvailabilityRepository persists per-day apartment availability.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs the repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// ListUnavailable returns booked and blocked days inside the window ordered by date.
func (r *AvailabilityRepository) ListUnavailable(ctx context.Context, apartmentID string, window models.DateWindow) ([]models.AvailabilityDay, error) {
	query, args, err := psql.Select(availabilityColumns...).
		From("apartment_availability").
		Where(squirrel.Eq{"apartment_id": apartmentID}).
		Where(squirrel.NotEq{"status": string(models.AvailabilityAvailable)}).
		Where(squirrel.GtOrEq{"date": window.Start}).
		Where(squirrel.Lt{"date": window.End}).
		OrderBy("date ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build availability query: %w", err)
	}

	var days []models.AvailabilityDay
	if err := r.db.SelectContext(ctx, &days, query, args...); err != nil {
		return nil, fmt.Errorf("list unavailable days: %w", err)
	}
	return days, nil
}

// UpsertBlocked marks every day of the window as blocked. Booked days inside the
// window abort the whole operation with ErrBookedOverlap.
func (r *AvailabilityRepository) UpsertBlocked(ctx context.Context, apartmentID string, window models.DateWindow, notes *string) (n int64, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin block transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	lockQuery, lockArgs, err := psql.Select("date").
		From("apartment_availability").
		Where(squirrel.Eq{"apartment_id": apartmentID}).
		Where(squirrel.Eq{"status": string(models.AvailabilityBooked)}).
		Where(squirrel.GtOrEq{"date": window.Start}).
		Where(squirrel.Lt{"date": window.End}).
		OrderBy("date ASC").
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build booked lock query: %w", err)
	}
	var booked []time.Time
	if err = tx.SelectContext(ctx, &booked, lockQuery, lockArgs...); err != nil {
		return 0, fmt.Errorf("lock booked days: %w", err)
	}
	if len(booked) > 0 {
		err = fmt.Errorf("%w: %s", ErrBookedOverlap, booked[0].Format("2006-01-02"))
		return 0, err
	}

	now := time.Now().UTC()
	insert := psql.Insert("apartment_availability").
		Columns("apartment_id", "date", "status", "notes", "updated_at")
	for day := window.Start; day.Before(window.End); day = day.AddDate(0, 0, 1) {
		insert = insert.Values(apartmentID, day, string(models.AvailabilityBlocked), notes, now)
	}
	query, args, err := insert.
		Suffix("ON CONFLICT (apartment_id, date) DO UPDATE SET status = EXCLUDED.status, notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at WHERE apartment_availability.status <> 'booked'").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build block upsert: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("upsert blocked days: %w", err)
	}
	if n, err = res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("blocked rows affected: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit block transaction: %w", err)
	}
	return n, nil
}

// DeleteBlocked removes manual blocks inside the window and returns the number of days freed.
func (r *AvailabilityRepository) DeleteBlocked(ctx context.Context, apartmentID string, window models.DateWindow) (int64, error) {
	query, args, err := psql.Delete("apartment_availability").
		Where(squirrel.Eq{"apartment_id": apartmentID}).
		Where(squirrel.Eq{"status": string(models.AvailabilityBlocked)}).
		Where(squirrel.GtOrEq{"date": window.Start}).
		Where(squirrel.Lt{"date": window.End}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build unblock query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete blocked days: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("unblocked rows affected: %w", err)
	}
	return n, nil
}
