package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldserve/booking-api/internal/model"
)

// bookingRow flattens the booking with its address snapshot columns.
type bookingRow struct {
	model.Booking
	model.Address `json:"-"`
}

func (row *bookingRow) toBooking() *model.Booking {
	b := row.Booking
	b.Address = row.Address
	return &b
}

const bookingColumns = `
	id, user_id, technician_id, category_id, issue_id,
	scheduled_start, scheduled_end, status,
	address_line1, address_line2, address_city, address_state,
	address_postal_code, address_country, address_notes,
	customer_name, customer_email, customer_phone,
	estimated_total, final_total, payment_method, notes,
	reminder_job_id, idempotency_key, cancel_reason, completed_at,
	created_at, updated_at, deleted_at
`

func (r *bookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	now := time.Now().UTC()
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	booking.CreatedAt = now
	booking.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO bookings (
			id, user_id, technician_id, category_id, issue_id,
			scheduled_start, scheduled_end, status,
			address_line1, address_line2, address_city, address_state,
			address_postal_code, address_country, address_notes,
			customer_name, customer_email, customer_phone,
			estimated_total, final_total, payment_method, notes,
			reminder_job_id, idempotency_key, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26
		)
	`
	_, err = tx.ExecContext(ctx, query,
		booking.ID,
		booking.UserID,
		booking.TechnicianID,
		booking.CategoryID,
		booking.IssueID,
		booking.ScheduledStart,
		booking.ScheduledEnd,
		booking.Status,
		booking.Address.Line1,
		booking.Address.Line2,
		booking.Address.City,
		booking.Address.State,
		booking.Address.PostalCode,
		booking.Address.Country,
		booking.Address.Notes,
		booking.CustomerName,
		booking.CustomerEmail,
		booking.CustomerPhone,
		booking.EstimatedTotal,
		booking.FinalTotal,
		booking.PaymentMethod,
		booking.Notes,
		booking.ReminderJobID,
		booking.IdempotencyKey,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	itemQuery := `
		INSERT INTO booking_items (
			id, booking_id, issue_id, service_name, description,
			unit_price, quantity, line_total, position
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for i := range booking.Items {
		item := &booking.Items[i]
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.BookingID = booking.ID
		item.Position = i
		if _, err := tx.ExecContext(ctx, itemQuery,
			item.ID,
			item.BookingID,
			item.IssueID,
			item.ServiceName,
			item.Description,
			item.UnitPrice,
			item.Quantity,
			item.LineTotal,
			item.Position,
		); err != nil {
			return fmt.Errorf("failed to create booking item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *bookingRepository) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 AND deleted_at IS NULL`

	var row bookingRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("booking not found")
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	booking := row.toBooking()
	if err := r.loadItems(ctx, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

func (r *bookingRepository) loadItems(ctx context.Context, booking *model.Booking) error {
	query := `
		SELECT id, booking_id, issue_id, service_name, description,
			   unit_price, quantity, line_total, position
		FROM booking_items
		WHERE booking_id = $1
		ORDER BY position ASC
	`
	if err := r.db.SelectContext(ctx, &booking.Items, query, booking.ID); err != nil {
		return fmt.Errorf("failed to load booking items: %w", err)
	}
	return nil
}

func (r *bookingRepository) Update(ctx context.Context, booking *model.Booking) error {
	booking.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE bookings
		SET scheduled_start = $1, scheduled_end = $2, status = $3,
			notes = $4, final_total = $5, reminder_job_id = $6,
			cancel_reason = $7, completed_at = $8, updated_at = $9
		WHERE id = $10 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query,
		booking.ScheduledStart,
		booking.ScheduledEnd,
		booking.Status,
		booking.Notes,
		booking.FinalTotal,
		booking.ReminderJobID,
		booking.CancelReason,
		booking.CompletedAt,
		booking.UpdatedAt,
		booking.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("booking not found")
	}
	return nil
}

func (r *bookingRepository) List(ctx context.Context, filters *model.BookingFilters) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE deleted_at IS NULL`
	args := []interface{}{}
	argCount := 1

	if filters != nil {
		if filters.TechnicianID != uuid.Nil {
			query += fmt.Sprintf(" AND technician_id = $%d", argCount)
			args = append(args, filters.TechnicianID)
			argCount++
		}
		if filters.UserID != uuid.Nil {
			query += fmt.Sprintf(" AND user_id = $%d", argCount)
			args = append(args, filters.UserID)
			argCount++
		}
		if filters.Status != "" {
			query += fmt.Sprintf(" AND status = $%d", argCount)
			args = append(args, filters.Status)
			argCount++
		}
		if !filters.StartDate.IsZero() {
			query += fmt.Sprintf(" AND scheduled_start >= $%d", argCount)
			args = append(args, filters.StartDate)
			argCount++
		}
		if !filters.EndDate.IsZero() {
			query += fmt.Sprintf(" AND scheduled_start < $%d", argCount)
			args = append(args, filters.EndDate)
			argCount++
		}
	}

	query += " ORDER BY scheduled_start ASC"

	var rows []bookingRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	bookings := make([]*model.Booking, 0, len(rows))
	for i := range rows {
		booking := rows[i].toBooking()
		if err := r.loadItems(ctx, booking); err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	return bookings, nil
}

func (r *bookingRepository) GetByIdempotencyKey(ctx context.Context, userID *uuid.UUID, customerEmail, key string) (*model.Booking, error) {
	var (
		query string
		args  []interface{}
	)
	if userID != nil {
		query = `SELECT ` + bookingColumns + `
			FROM bookings
			WHERE user_id = $1 AND idempotency_key = $2 AND deleted_at IS NULL`
		args = []interface{}{*userID, key}
	} else {
		query = `SELECT ` + bookingColumns + `
			FROM bookings
			WHERE user_id IS NULL AND customer_email = $1 AND idempotency_key = $2 AND deleted_at IS NULL`
		args = []interface{}{customerEmail, key}
	}

	var row bookingRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up idempotency key: %w", err)
	}

	booking := row.toBooking()
	if err := r.loadItems(ctx, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

func (r *bookingRepository) HasOverlap(ctx context.Context, technicianID uuid.UUID, start, end time.Time, excludeBookingID *uuid.UUID) (bool, error) {
	// Strict half-open overlap: a booking ending exactly at start does
	// not conflict. excludeBookingID lets a reschedule ignore its own row.
	query := `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE technician_id = $1
			AND status != 'cancelled'
			AND deleted_at IS NULL
			AND scheduled_start < $3
			AND $2 < scheduled_end
			AND ($4::uuid IS NULL OR id != $4)
		)
	`
	var hasOverlap bool
	if err := r.db.GetContext(ctx, &hasOverlap, query, technicianID, start, end, excludeBookingID); err != nil {
		return false, fmt.Errorf("failed to check booking overlap: %w", err)
	}
	return hasOverlap, nil
}

func (r *bookingRepository) CountForTechnicianBetween(ctx context.Context, technicianID uuid.UUID, from, to time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM bookings
		WHERE technician_id = $1
		AND status != 'cancelled'
		AND deleted_at IS NULL
		AND scheduled_start >= $2
		AND scheduled_start < $3
	`
	var count int
	if err := r.db.GetContext(ctx, &count, query, technicianID, from, to); err != nil {
		return 0, fmt.Errorf("failed to count technician bookings: %w", err)
	}
	return count, nil
}
