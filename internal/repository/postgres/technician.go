package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fieldserve/booking-api/internal/model"
)

func (r *technicianRepository) Get(ctx context.Context, id uuid.UUID) (*model.Technician, error) {
	query := `
		SELECT id, name, email, phone, category_id, status,
			   created_at, updated_at, deleted_at
		FROM technicians
		WHERE id = $1 AND deleted_at IS NULL
	`
	var technician model.Technician
	if err := r.db.GetContext(ctx, &technician, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("technician not found")
		}
		return nil, fmt.Errorf("failed to get technician: %w", err)
	}
	return &technician, nil
}

func (r *technicianRepository) ListActiveByCategory(ctx context.Context, categoryID uuid.UUID) ([]*model.Technician, error) {
	query := `
		SELECT id, name, email, phone, category_id, status,
			   created_at, updated_at, deleted_at
		FROM technicians
		WHERE category_id = $1
		AND status = $2
		AND deleted_at IS NULL
		ORDER BY created_at ASC
	`
	var technicians []*model.Technician
	if err := r.db.SelectContext(ctx, &technicians, query, categoryID, model.TechnicianStatusActive); err != nil {
		return nil, fmt.Errorf("failed to list technicians: %w", err)
	}
	return technicians, nil
}
