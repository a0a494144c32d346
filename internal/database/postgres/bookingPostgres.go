package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eventpro/booking-api/internal/entity"
	"github.com/lib/pq"
)

const bookingColumns = `id, event_id, user_id, quantity, total_price, status, COALESCE(idempotency_key, ''), created_at, updated_at`

// ErrDuplicateIdempotencyKey is returned when a Reserve carries an
// idempotency key that already produced a booking for the same user.
var ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")

type bookingRepository struct {
	db *sql.DB
}

func NewBookingRepository(db *sql.DB) BookingRepository {
	return &bookingRepository{db: db}
}

// Reserve creates the booking and increments the event counter as a single
// transaction. The event update is a compare-and-swap on the row version
// read by the caller: if any concurrent Reserve or Cancel touched the event
// since that read, zero rows match and the transaction is rolled back with
// entity.ErrContention so the caller can re-read and retry.
func (r *bookingRepository) Reserve(ctx context.Context, booking *entity.Booking, expectedVersion int64) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE events
		SET current_bookings = current_bookings + $1,
		    version = version + 1,
		    updated_at = $2
		WHERE id = $3
		  AND version = $4
		  AND current_bookings + $1 <= capacity
	`

	result, err := tx.ExecContext(ctx, query,
		booking.Quantity,
		time.Now(),
		booking.EventID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update event counter: %v", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %v", err)
	}
	if rowsAffected == 0 {
		return entity.ErrContention
	}

	query = `
		INSERT INTO bookings (
			event_id, user_id, quantity, total_price, status,
			idempotency_key, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	now := time.Now()
	idemKey := sql.NullString{String: booking.IdempotencyKey, Valid: booking.IdempotencyKey != ""}

	err = tx.QueryRowContext(ctx, query,
		booking.EventID,
		booking.UserID,
		booking.Quantity,
		booking.TotalPrice,
		booking.Status,
		idemKey,
		now,
		now,
	).Scan(&booking.ID)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			// Retried request with the same idempotency key raced us past
			// the redis fast path. The original booking stands.
			return ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to create booking: %v", err)
	}

	booking.CreatedAt = now
	booking.UpdatedAt = now

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

// Cancel sets the booking to cancelled and decrements the event counter in
// one transaction. The booking row is locked so the status check, the
// ownership check and the counter adjustment observe a consistent state.
func (r *bookingRepository) Cancel(ctx context.Context, bookingID int64, actingUserID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	var booking entity.Booking
	query := `
		SELECT event_id, user_id, quantity, status
		FROM bookings
		WHERE id = $1
		FOR UPDATE
	`
	err = tx.QueryRowContext(ctx, query, bookingID).Scan(
		&booking.EventID,
		&booking.UserID,
		&booking.Quantity,
		&booking.Status,
	)
	if err == sql.ErrNoRows {
		return false, entity.ErrBookingNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to lock booking: %v", err)
	}

	if booking.UserID != actingUserID {
		return false, entity.ErrUnauthorized
	}

	if booking.Status == entity.BookingStatusCancelled {
		// Idempotent: the counter was already adjusted by the first cancel.
		return false, tx.Commit()
	}

	query = `UPDATE bookings SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := tx.ExecContext(ctx, query, entity.BookingStatusCancelled, time.Now(), bookingID); err != nil {
		return false, fmt.Errorf("failed to update booking status: %v", err)
	}

	// The guard refuses a decrement below zero instead of clamping; hitting
	// it means the counter and the bookings table disagree.
	query = `
		UPDATE events
		SET current_bookings = current_bookings - $1,
		    version = version + 1,
		    updated_at = $2
		WHERE id = $3
		  AND current_bookings - $1 >= 0
	`
	result, err := tx.ExecContext(ctx, query, booking.Quantity, time.Now(), booking.EventID)
	if err != nil {
		return false, fmt.Errorf("failed to update event counter: %v", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %v", err)
	}
	if rowsAffected == 0 {
		return false, entity.ErrInvariantViolation
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %v", err)
	}

	return true, nil
}

// GetByID retrieves a booking by its ID
func (r *bookingRepository) GetByID(ctx context.Context, id int64) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, entity.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %v", err)
	}

	return booking, nil
}

// GetByIdempotencyKey retrieves the booking previously created for a
// (user, key) pair, if any.
func (r *bookingRepository) GetByIdempotencyKey(ctx context.Context, userID, key string) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1 AND idempotency_key = $2`

	booking, err := scanBooking(r.db.QueryRowContext(ctx, query, userID, key))
	if err == sql.ErrNoRows {
		return nil, entity.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking by idempotency key: %v", err)
	}

	return booking, nil
}

// GetByUserIDWithEvents retrieves a user's bookings joined with event
// metadata. Bookings whose event no longer resolves are still returned,
// with a nil Event.
func (r *bookingRepository) GetByUserIDWithEvents(ctx context.Context, userID string) ([]*entity.BookingWithEvent, error) {
	query := `
		SELECT
			b.id, b.event_id, b.user_id, b.quantity, b.total_price, b.status,
			COALESCE(b.idempotency_key, ''), b.created_at, b.updated_at,
			e.id, e.title, e.description, e.location, e.image_url, e.date_time,
			e.price, e.capacity, e.current_bookings, e.status, e.version,
			e.created_at, e.updated_at
		FROM bookings b
		LEFT JOIN events e ON b.event_id = e.id
		WHERE b.user_id = $1
		ORDER BY b.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings with events: %v", err)
	}
	defer rows.Close()

	var results []*entity.BookingWithEvent
	for rows.Next() {
		var item entity.BookingWithEvent
		var (
			eventID         sql.NullInt64
			title           sql.NullString
			description     sql.NullString
			location        sql.NullString
			imageURL        sql.NullString
			dateTime        sql.NullTime
			price           sql.NullFloat64
			capacity        sql.NullInt64
			currentBookings sql.NullInt64
			status          sql.NullString
			version         sql.NullInt64
			createdAt       sql.NullTime
			updatedAt       sql.NullTime
		)

		err := rows.Scan(
			&item.ID,
			&item.EventID,
			&item.UserID,
			&item.Quantity,
			&item.TotalPrice,
			&item.Status,
			&item.IdempotencyKey,
			&item.CreatedAt,
			&item.UpdatedAt,
			&eventID,
			&title,
			&description,
			&location,
			&imageURL,
			&dateTime,
			&price,
			&capacity,
			&currentBookings,
			&status,
			&version,
			&createdAt,
			&updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking with event: %v", err)
		}

		if eventID.Valid {
			item.Event = &entity.Event{
				ID:              eventID.Int64,
				Title:           title.String,
				Description:     description.String,
				Location:        location.String,
				ImageURL:        imageURL.String,
				DateTime:        dateTime.Time,
				Price:           price.Float64,
				Capacity:        int(capacity.Int64),
				CurrentBookings: int(currentBookings.Int64),
				Status:          entity.EventStatus(status.String),
				Version:         version.Int64,
				CreatedAt:       createdAt.Time,
				UpdatedAt:       updatedAt.Time,
			}
		}

		results = append(results, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bookings with events: %v", err)
	}

	return results, nil
}

// GetByEventID retrieves all bookings for a specific event
func (r *bookingRepository) GetByEventID(ctx context.Context, eventID int64) ([]*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE event_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings by event: %v", err)
	}
	defer rows.Close()

	return scanBookings(rows)
}

func (r *bookingRepository) GetAll(ctx context.Context) ([]*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query all bookings: %w", err)
	}
	defer rows.Close()

	return scanBookings(rows)
}

func (r *bookingRepository) GetRecentBookings(ctx context.Context, limit int) ([]*entity.Booking, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent bookings: %w", err)
	}
	defer rows.Close()

	return scanBookings(rows)
}

// GetEventStats returns the booking summary for one event
func (r *bookingRepository) GetEventStats(ctx context.Context, eventID int64) (*entity.EventStats, error) {
	query := `
		SELECT
			e.capacity, e.current_bookings,
			COUNT(b.id) FILTER (WHERE b.status = 'active') as active_bookings,
			COALESCE(SUM(b.quantity) FILTER (WHERE b.status = 'active'), 0) as booked_quantity,
			COALESCE(SUM(b.total_price) FILTER (WHERE b.status = 'active'), 0) as revenue
		FROM events e
		LEFT JOIN bookings b ON e.id = b.event_id
		WHERE e.id = $1
		GROUP BY e.id
	`

	var (
		stats           entity.EventStats
		capacity        int
		currentBookings int
	)
	err := r.db.QueryRowContext(ctx, query, eventID).Scan(
		&capacity,
		&currentBookings,
		&stats.ActiveBookings,
		&stats.BookedQuantity,
		&stats.Revenue,
	)
	if err == sql.ErrNoRows {
		return nil, entity.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event stats: %v", err)
	}

	stats.EventID = eventID
	stats.AvailableSpots = capacity - currentBookings
	if capacity > 0 {
		stats.Utilization = float64(currentBookings) / float64(capacity)
	}

	return &stats, nil
}

func scanBooking(row *sql.Row) (*entity.Booking, error) {
	var booking entity.Booking
	err := row.Scan(
		&booking.ID,
		&booking.EventID,
		&booking.UserID,
		&booking.Quantity,
		&booking.TotalPrice,
		&booking.Status,
		&booking.IdempotencyKey,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func scanBookings(rows *sql.Rows) ([]*entity.Booking, error) {
	var bookings []*entity.Booking
	for rows.Next() {
		var booking entity.Booking
		err := rows.Scan(
			&booking.ID,
			&booking.EventID,
			&booking.UserID,
			&booking.Quantity,
			&booking.TotalPrice,
			&booking.Status,
			&booking.IdempotencyKey,
			&booking.CreatedAt,
			&booking.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %v", err)
		}
		bookings = append(bookings, &booking)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bookings: %v", err)
	}

	return bookings, nil
}
