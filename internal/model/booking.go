package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusPendingTechnician BookingStatus = "pending_technician_confirmation"
	BookingStatusPendingCustomer   BookingStatus = "pending_customer_confirmation"
	BookingStatusConfirmed         BookingStatus = "confirmed"
	BookingStatusCompleted         BookingStatus = "completed"
	BookingStatusCancelled         BookingStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s BookingStatus) Terminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

// BookingItem is a catalog snapshot captured at creation time. Catalog
// changes afterwards must not alter historical bookings.
type BookingItem struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	BookingID   uuid.UUID       `db:"booking_id" json:"booking_id"`
	IssueID     uuid.UUID       `db:"issue_id" json:"issue_id"`
	ServiceName string          `db:"service_name" json:"service_name"`
	Description string          `db:"description" json:"description,omitempty"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	Quantity    int             `db:"quantity" json:"quantity"`
	LineTotal   decimal.Decimal `db:"line_total" json:"line_total"`
	Position    int             `db:"position" json:"position"`
}

type Booking struct {
	Base
	UserID         *uuid.UUID       `db:"user_id" json:"user_id,omitempty"`
	TechnicianID   uuid.UUID        `db:"technician_id" json:"technician_id"`
	CategoryID     uuid.UUID        `db:"category_id" json:"category_id"`
	IssueID        uuid.UUID        `db:"issue_id" json:"issue_id"`
	Items          []BookingItem    `db:"-" json:"items"`
	ScheduledStart time.Time        `db:"scheduled_start" json:"scheduled_start"`
	ScheduledEnd   time.Time        `db:"scheduled_end" json:"scheduled_end"`
	Status         BookingStatus    `db:"status" json:"status"`
	Address        Address          `db:"-" json:"address"`
	CustomerName   string           `db:"customer_name" json:"customer_name"`
	CustomerEmail  string           `db:"customer_email" json:"customer_email"`
	CustomerPhone  string           `db:"customer_phone" json:"customer_phone,omitempty"`
	EstimatedTotal decimal.Decimal  `db:"estimated_total" json:"estimated_total"`
	FinalTotal     *decimal.Decimal `db:"final_total" json:"final_total,omitempty"`
	PaymentMethod  PaymentMethod    `db:"payment_method" json:"payment_method,omitempty"`
	Notes          string           `db:"notes" json:"notes,omitempty"`
	ReminderJobID  *string          `db:"reminder_job_id" json:"reminder_job_id,omitempty"`
	IdempotencyKey string           `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CancelReason   *string          `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CompletedAt    *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
}

// CreateBookingItem is one requested line on a booking-creation request.
type CreateBookingItem struct {
	IssueID           uuid.UUID        `json:"issue_id" validate:"required"`
	Quantity          int              `json:"quantity" validate:"required,gt=0"`
	UnitPriceOverride *decimal.Decimal `json:"unit_price_override,omitempty"`
}

// CreateBookingRequest is the Finalizer input: validated booking intent
// from the draft pipeline or from a direct guest/registered request.
type CreateBookingRequest struct {
	UserID         *uuid.UUID          `json:"-"`
	GuestName      string              `json:"guest_name,omitempty"`
	GuestEmail     string              `json:"guest_email,omitempty" validate:"omitempty,email"`
	GuestPhone     string              `json:"guest_phone,omitempty"`
	TechnicianID   uuid.UUID           `json:"technician_id" validate:"required"`
	CategoryID     uuid.UUID           `json:"category_id" validate:"required"`
	IssueID        uuid.UUID           `json:"issue_id" validate:"required"`
	Items          []CreateBookingItem `json:"items" validate:"required,min=1,dive"`
	ScheduledStart time.Time           `json:"scheduled_start" validate:"required"`
	ScheduledEnd   time.Time           `json:"scheduled_end" validate:"required,gtfield=ScheduledStart"`
	Address        Address             `json:"address"`
	Notes          string              `json:"notes,omitempty" validate:"max=1000"`
	PaymentMethod  PaymentMethod       `json:"payment_method,omitempty" validate:"omitempty,oneof=cash card online"`
	IdempotencyKey string              `json:"idempotency_key,omitempty"`
}

type RescheduleBookingRequest struct {
	StartTime time.Time  `json:"start_time" validate:"required"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

type BookingFilters struct {
	TechnicianID uuid.UUID
	UserID       uuid.UUID
	Status       BookingStatus
	StartDate    time.Time
	EndDate      time.Time
}
