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

func (r *slotRepository) ListBetween(ctx context.Context, technicianID uuid.UUID, from, to time.Time) ([]*model.TechnicianSlot, error) {
	query := `
		SELECT id, technician_id, start_time, end_time, created_at
		FROM technician_slots
		WHERE technician_id = $1
		AND start_time < $3
		AND end_time > $2
		ORDER BY start_time ASC
	`
	var slots []*model.TechnicianSlot
	if err := r.db.SelectContext(ctx, &slots, query, technicianID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list technician slots: %w", err)
	}
	return slots, nil
}

func (r *slotRepository) FindCovering(ctx context.Context, technicianID uuid.UUID, start, end time.Time) (*model.TechnicianSlot, error) {
	query := `
		SELECT id, technician_id, start_time, end_time, created_at
		FROM technician_slots
		WHERE technician_id = $1
		AND start_time <= $2
		AND end_time >= $3
		ORDER BY start_time ASC
		LIMIT 1
	`
	var slot model.TechnicianSlot
	if err := r.db.GetContext(ctx, &slot, query, technicianID, start, end); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find covering slot: %w", err)
	}
	return &slot, nil
}

func (r *slotRepository) HasUnavailabilityOverlap(ctx context.Context, technicianID uuid.UUID, start, end time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM technician_unavailability
			WHERE technician_id = $1
			AND start_time < $3
			AND $2 < end_time
		)
	`
	var hasOverlap bool
	if err := r.db.GetContext(ctx, &hasOverlap, query, technicianID, start, end); err != nil {
		return false, fmt.Errorf("failed to check unavailability overlap: %w", err)
	}
	return hasOverlap, nil
}
