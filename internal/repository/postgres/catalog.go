package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fieldserve/booking-api/internal/model"
)

func (r *catalogRepository) GetIssue(ctx context.Context, id uuid.UUID) (*model.ServiceIssue, error) {
	query := `
		SELECT id, category_id, name, description, base_price, estimated_minutes,
			   created_at, updated_at, deleted_at
		FROM service_issues
		WHERE id = $1 AND deleted_at IS NULL
	`
	var issue model.ServiceIssue
	if err := r.db.GetContext(ctx, &issue, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("service issue not found")
		}
		return nil, fmt.Errorf("failed to get service issue: %w", err)
	}
	return &issue, nil
}

func (r *catalogRepository) GetCategory(ctx context.Context, id uuid.UUID) (*model.ServiceCategory, error) {
	query := `
		SELECT id, name, description, created_at, updated_at, deleted_at
		FROM service_categories
		WHERE id = $1 AND deleted_at IS NULL
	`
	var category model.ServiceCategory
	if err := r.db.GetContext(ctx, &category, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("service category not found")
		}
		return nil, fmt.Errorf("failed to get service category: %w", err)
	}
	return &category, nil
}
