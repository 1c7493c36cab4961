package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ServiceCategory struct {
	Base
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description,omitempty"`
}

// ServiceIssue is a bookable catalog entry within a category.
type ServiceIssue struct {
	Base
	CategoryID       uuid.UUID       `db:"category_id" json:"category_id"`
	Name             string          `db:"name" json:"name"`
	Description      string          `db:"description" json:"description,omitempty"`
	BasePrice        decimal.Decimal `db:"base_price" json:"base_price"`
	EstimatedMinutes int             `db:"estimated_minutes" json:"estimated_minutes"`
}
