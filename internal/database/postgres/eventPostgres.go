package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/eventpro/booking-api/internal/entity"
)

const eventColumns = `id, title, description, location, image_url, date_time, price, capacity, current_bookings, status, version, created_at, updated_at`

type eventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(ctx context.Context, event *entity.Event) error {
	query := `
		INSERT INTO events (title, description, location, image_url, date_time,
			price, capacity, current_bookings, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, 0, $9, $10)
		RETURNING id
	`

	now := time.Now()
	err := r.db.QueryRowContext(ctx, query,
		event.Title,
		event.Description,
		event.Location,
		event.ImageURL,
		event.DateTime,
		event.Price,
		event.Capacity,
		event.Status,
		now,
		now,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	event.CurrentBookings = 0
	event.Version = 0
	event.CreatedAt = now
	event.UpdatedAt = now
	return nil
}

func (r *eventRepository) GetByID(ctx context.Context, id int64) (*entity.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	event, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, entity.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %v", err)
	}

	return event, nil
}

func (r *eventRepository) GetActive(ctx context.Context, limit int) ([]*entity.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE status = 'active'
		ORDER BY date_time ASC
	`

	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query active events: %v", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (r *eventRepository) GetAll(ctx context.Context) ([]*entity.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events ORDER BY date_time ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %v", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// Update changes display fields and capacity. The capacity guard keeps the
// invariant: it may never drop below the seats already booked.
func (r *eventRepository) Update(ctx context.Context, event *entity.Event) error {
	// The CHECK constraint on the table is the final guard; the explicit
	// condition keeps the failure mode a clean zero-row result.
	query := `
		UPDATE events
		SET title = $1, description = $2, location = $3, image_url = $4,
		    date_time = $5, price = $6, capacity = $7,
		    version = version + 1, updated_at = $8
		WHERE id = $9
		  AND $7 >= current_bookings
	`

	result, err := r.db.ExecContext(ctx, query,
		event.Title,
		event.Description,
		event.Location,
		event.ImageURL,
		event.DateTime,
		event.Price,
		event.Capacity,
		time.Now(),
		event.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Either the event is gone or the new capacity is below the
		// booked count; the caller distinguishes by re-reading.
		return entity.ErrEventNotFound
	}

	return nil
}

func (r *eventRepository) SetStatus(ctx context.Context, id int64, status entity.EventStatus) error {
	query := `UPDATE events SET status = $1, version = version + 1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set event status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrEventNotFound
	}

	return nil
}

func (r *eventRepository) GetEventsByDateRange(ctx context.Context, from, to time.Time) ([]*entity.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE date_time BETWEEN $1 AND $2
		ORDER BY date_time ASC
	`

	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query events by date range: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// CounterDrift finds events whose stored counter disagrees with the sum of
// their active booking quantities.
func (r *eventRepository) CounterDrift(ctx context.Context) ([]*entity.CounterDrift, error) {
	query := `
		SELECT
			e.id, e.current_bookings,
			COALESCE(SUM(b.quantity) FILTER (WHERE b.status = 'active'), 0) as active_quantity
		FROM events e
		LEFT JOIN bookings b ON e.id = b.event_id
		GROUP BY e.id
		HAVING e.current_bookings <> COALESCE(SUM(b.quantity) FILTER (WHERE b.status = 'active'), 0)
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query counter drift: %v", err)
	}
	defer rows.Close()

	var drifts []*entity.CounterDrift
	for rows.Next() {
		var drift entity.CounterDrift
		if err := rows.Scan(&drift.EventID, &drift.CurrentBookings, &drift.ActiveQuantity); err != nil {
			return nil, fmt.Errorf("failed to scan counter drift: %v", err)
		}
		drifts = append(drifts, &drift)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating counter drift: %v", err)
	}

	return drifts, nil
}

func scanEvent(row *sql.Row) (*entity.Event, error) {
	var event entity.Event
	err := row.Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&event.Location,
		&event.ImageURL,
		&event.DateTime,
		&event.Price,
		&event.Capacity,
		&event.CurrentBookings,
		&event.Status,
		&event.Version,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func scanEvents(rows *sql.Rows) ([]*entity.Event, error) {
	var events []*entity.Event
	for rows.Next() {
		var event entity.Event
		err := rows.Scan(
			&event.ID,
			&event.Title,
			&event.Description,
			&event.Location,
			&event.ImageURL,
			&event.DateTime,
			&event.Price,
			&event.Capacity,
			&event.CurrentBookings,
			&event.Status,
			&event.Version,
			&event.CreatedAt,
			&event.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %v", err)
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %v", err)
	}

	return events, nil
}
