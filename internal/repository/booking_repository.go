package repository

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coliving-calendar-api/internal/models"
)

var bookingColumns = []string{"id", "apartment_id", "check_in_date", "check_out_date", "guest_name", "booking_reference", "status", "created_at"}

// BookingRepository reads bookings written by the booking widget.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs the repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// ListConfirmed returns every confirmed booking of an apartment with a non-empty stay.
func (r *BookingRepository) ListConfirmed(ctx context.Context, apartmentID string) ([]models.Booking, error) {
	return r.list(ctx, r.confirmed(apartmentID))
}

// ListConfirmedBetween returns confirmed bookings whose stay intersects the window.
func (r *BookingRepository) ListConfirmedBetween(ctx context.Context, apartmentID string, window models.DateWindow) ([]models.Booking, error) {
	builder := r.confirmed(apartmentID).
		Where(squirrel.Lt{"check_in_date": window.End}).
		Where(squirrel.Gt{"check_out_date": window.Start})
	return r.list(ctx, builder)
}

func (r *BookingRepository) confirmed(apartmentID string) squirrel.SelectBuilder {
	return psql.Select(bookingColumns...).
		From("bookings").
		Where(squirrel.Eq{"apartment_id": apartmentID}).
		Where(squirrel.Eq{"status": string(models.BookingConfirmed)}).
		Where("check_out_date > check_in_date")
}

func (r *BookingRepository) list(ctx context.Context, builder squirrel.SelectBuilder) ([]models.Booking, error) {
	query, args, err := builder.OrderBy("check_in_date ASC", "id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build bookings query: %w", err)
	}
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("list confirmed bookings: %w", err)
	}
	return bookings, nil
}
