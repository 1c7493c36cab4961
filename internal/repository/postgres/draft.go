package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldserve/booking-api/internal/model"
)

type draftRow struct {
	ID               uuid.UUID       `db:"id"`
	UserID           *uuid.UUID      `db:"user_id"`
	GuestName        string          `db:"guest_name"`
	GuestEmail       string          `db:"guest_email"`
	GuestPhone       string          `db:"guest_phone"`
	CategoryID       *uuid.UUID      `db:"category_id"`
	IssueID          *uuid.UUID      `db:"issue_id"`
	Items            json.RawMessage `db:"items"`
	TechnicianID     *uuid.UUID      `db:"technician_id"`
	SlotID           *uuid.UUID      `db:"slot_id"`
	ScheduledStart   *time.Time      `db:"scheduled_start"`
	ScheduledEnd     *time.Time      `db:"scheduled_end"`
	EstimatedMinutes int             `db:"estimated_minutes"`
	PaymentMethod    string          `db:"payment_method"`
	Notes            string          `db:"notes"`
	Status           string          `db:"status"`
	CreatedAt        time.Time       `db:"created_at"`
	ExpiresAt        time.Time       `db:"expires_at"`
	model.Address
}

func (row *draftRow) toDraft() (*model.BookingDraft, error) {
	var items []model.DraftItem
	if len(row.Items) > 0 {
		if err := json.Unmarshal(row.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal draft items: %w", err)
		}
	}
	return &model.BookingDraft{
		ID:               row.ID,
		UserID:           row.UserID,
		GuestName:        row.GuestName,
		GuestEmail:       row.GuestEmail,
		GuestPhone:       row.GuestPhone,
		CategoryID:       row.CategoryID,
		IssueID:          row.IssueID,
		Items:            items,
		Address:          row.Address,
		TechnicianID:     row.TechnicianID,
		SlotID:           row.SlotID,
		ScheduledStart:   row.ScheduledStart,
		ScheduledEnd:     row.ScheduledEnd,
		EstimatedMinutes: row.EstimatedMinutes,
		PaymentMethod:    model.PaymentMethod(row.PaymentMethod),
		Notes:            row.Notes,
		Status:           model.DraftStatus(row.Status),
		CreatedAt:        row.CreatedAt,
		ExpiresAt:        row.ExpiresAt,
	}, nil
}

const draftColumns = `
	id, user_id, guest_name, guest_email, guest_phone,
	category_id, issue_id, items, technician_id, slot_id,
	scheduled_start, scheduled_end, estimated_minutes,
	payment_method, notes, status,
	address_line1, address_line2, address_city, address_state,
	address_postal_code, address_country, address_notes,
	created_at, expires_at
`

func (r *draftRepository) Create(ctx context.Context, draft *model.BookingDraft) error {
	items, err := json.Marshal(draft.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal draft items: %w", err)
	}

	query := `
		INSERT INTO booking_drafts (` + draftColumns + `)
		VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25
		)
	`
	_, err = r.db.ExecContext(ctx, query,
		draft.ID,
		draft.UserID,
		draft.GuestName,
		draft.GuestEmail,
		draft.GuestPhone,
		draft.CategoryID,
		draft.IssueID,
		items,
		draft.TechnicianID,
		draft.SlotID,
		draft.ScheduledStart,
		draft.ScheduledEnd,
		draft.EstimatedMinutes,
		draft.PaymentMethod,
		draft.Notes,
		draft.Status,
		draft.Address.Line1,
		draft.Address.Line2,
		draft.Address.City,
		draft.Address.State,
		draft.Address.PostalCode,
		draft.Address.Country,
		draft.Address.Notes,
		draft.CreatedAt,
		draft.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create draft: %w", err)
	}
	return nil
}

func (r *draftRepository) Get(ctx context.Context, id uuid.UUID) (*model.BookingDraft, error) {
	query := `SELECT ` + draftColumns + ` FROM booking_drafts WHERE id = $1`

	var row draftRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("draft not found")
		}
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	return row.toDraft()
}

func (r *draftRepository) Update(ctx context.Context, draft *model.BookingDraft) error {
	items, err := json.Marshal(draft.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal draft items: %w", err)
	}

	query := `
		UPDATE booking_drafts
		SET user_id = $1, guest_name = $2, guest_email = $3, guest_phone = $4,
			category_id = $5, issue_id = $6, items = $7,
			technician_id = $8, slot_id = $9,
			scheduled_start = $10, scheduled_end = $11, estimated_minutes = $12,
			payment_method = $13, notes = $14, status = $15,
			address_line1 = $16, address_line2 = $17, address_city = $18,
			address_state = $19, address_postal_code = $20,
			address_country = $21, address_notes = $22
		WHERE id = $23
	`
	result, err := r.db.ExecContext(ctx, query,
		draft.UserID,
		draft.GuestName,
		draft.GuestEmail,
		draft.GuestPhone,
		draft.CategoryID,
		draft.IssueID,
		items,
		draft.TechnicianID,
		draft.SlotID,
		draft.ScheduledStart,
		draft.ScheduledEnd,
		draft.EstimatedMinutes,
		draft.PaymentMethod,
		draft.Notes,
		draft.Status,
		draft.Address.Line1,
		draft.Address.Line2,
		draft.Address.City,
		draft.Address.State,
		draft.Address.PostalCode,
		draft.Address.Country,
		draft.Address.Notes,
		draft.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update draft: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("draft not found")
	}
	return nil
}

func (r *draftRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM booking_drafts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("draft not found")
	}
	return nil
}
