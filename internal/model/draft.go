package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DraftStatus string

const (
	// DraftStatusPending drafts are mutable.
	DraftStatusPending DraftStatus = "pending"
	// DraftStatusSubmitted drafts are kept immutable, awaiting the guest
	// to authenticate and retry confirm.
	DraftStatusSubmitted DraftStatus = "submitted"
)

// DraftTTL is how long a draft stays confirmable after creation.
const DraftTTL = 6 * time.Hour

type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodOnline PaymentMethod = "online"
)

// Address is the snapshot of where the service takes place.
type Address struct {
	Line1      string  `db:"address_line1" json:"line1"`
	Line2      *string `db:"address_line2" json:"line2,omitempty"`
	City       string  `db:"address_city" json:"city"`
	State      *string `db:"address_state" json:"state,omitempty"`
	PostalCode string  `db:"address_postal_code" json:"postal_code"`
	Country    string  `db:"address_country" json:"country"`
	Notes      *string `db:"address_notes" json:"notes,omitempty"`
}

// Complete reports whether the mandatory address fields are populated.
func (a Address) Complete() bool {
	return a.Line1 != "" && a.City != "" && a.PostalCode != "" && a.Country != ""
}

// DraftItem is one requested service line on a draft.
type DraftItem struct {
	IssueID           uuid.UUID        `json:"issue_id"`
	Quantity          int              `json:"quantity"`
	UnitPriceOverride *decimal.Decimal `json:"unit_price_override,omitempty"`
	DurationMinutes   int              `json:"duration_minutes"`
}

// BookingDraft accumulates booking intent across the pipeline steps.
// A pending draft is mutable; a submitted one is immutable except for
// deletion. A draft past ExpiresAt cannot be confirmed.
type BookingDraft struct {
	ID               uuid.UUID     `json:"id"`
	UserID           *uuid.UUID    `json:"user_id,omitempty"`
	GuestName        string        `json:"guest_name,omitempty"`
	GuestEmail       string        `json:"guest_email,omitempty"`
	GuestPhone       string        `json:"guest_phone,omitempty"`
	CategoryID       *uuid.UUID    `json:"category_id,omitempty"`
	IssueID          *uuid.UUID    `json:"issue_id,omitempty"`
	Items            []DraftItem   `json:"items"`
	Address          Address       `json:"address"`
	TechnicianID     *uuid.UUID    `json:"technician_id,omitempty"`
	SlotID           *uuid.UUID    `json:"slot_id,omitempty"`
	ScheduledStart   *time.Time    `json:"scheduled_start,omitempty"`
	ScheduledEnd     *time.Time    `json:"scheduled_end,omitempty"`
	EstimatedMinutes int           `json:"estimated_minutes"`
	PaymentMethod    PaymentMethod `json:"payment_method,omitempty"`
	Notes            string        `json:"notes,omitempty"`
	Status           DraftStatus   `json:"status"`
	CreatedAt        time.Time     `json:"created_at"`
	ExpiresAt        time.Time     `json:"expires_at"`
}

// Expired reports whether the draft can no longer be confirmed.
func (d *BookingDraft) Expired(now time.Time) bool {
	return now.After(d.ExpiresAt)
}

type StartDraftItem struct {
	IssueID           uuid.UUID        `json:"issue_id" validate:"required"`
	Quantity          int              `json:"quantity" validate:"required,gt=0"`
	UnitPriceOverride *decimal.Decimal `json:"unit_price_override,omitempty"`
}

type StartDraftRequest struct {
	IssueID       uuid.UUID        `json:"issue_id" validate:"required"`
	CategoryID    *uuid.UUID       `json:"category_id,omitempty"`
	Items         []StartDraftItem `json:"items,omitempty" validate:"dive"`
	UserID        *uuid.UUID       `json:"-"`
	GuestName     string           `json:"guest_name,omitempty"`
	GuestEmail    string           `json:"guest_email,omitempty" validate:"omitempty,email"`
	GuestPhone    string           `json:"guest_phone,omitempty"`
	Notes         string           `json:"notes,omitempty" validate:"max=1000"`
	PaymentMethod PaymentMethod    `json:"payment_method,omitempty" validate:"omitempty,oneof=cash card online"`
}

type UpdateAddressRequest struct {
	Line1      string  `json:"line1" validate:"required"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city" validate:"required"`
	State      *string `json:"state,omitempty"`
	PostalCode string  `json:"postal_code" validate:"required"`
	Country    string  `json:"country" validate:"required"`
	Notes      *string `json:"notes,omitempty"`
}

type SelectSlotRequest struct {
	StartTime       time.Time  `json:"start_time" validate:"required"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationMinutes int        `json:"duration_minutes,omitempty"`
	TechnicianID    *uuid.UUID `json:"technician_id,omitempty"`
}

type ConfirmDraftRequest struct {
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
	PaymentMethod  PaymentMethod `json:"payment_method,omitempty" validate:"omitempty,oneof=cash card online"`
	UserID         *uuid.UUID    `json:"-"`
}
