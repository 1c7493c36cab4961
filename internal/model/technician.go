package model

import (
	"time"

	"github.com/google/uuid"
)

type TechnicianStatus string

const (
	TechnicianStatusActive   TechnicianStatus = "active"
	TechnicianStatusInactive TechnicianStatus = "inactive"
)

type Technician struct {
	Base
	Name       string           `db:"name" json:"name"`
	Email      string           `db:"email" json:"email"`
	Phone      string           `db:"phone" json:"phone,omitempty"`
	CategoryID uuid.UUID        `db:"category_id" json:"category_id"`
	Status     TechnicianStatus `db:"status" json:"status"`
}

// TechnicianSlot is a technician-declared window of general availability.
type TechnicianSlot struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TechnicianID uuid.UUID `db:"technician_id" json:"technician_id"`
	StartTime    time.Time `db:"start_time" json:"start_time"`
	EndTime      time.Time `db:"end_time" json:"end_time"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Covers reports whether the slot fully contains [start, end).
func (s *TechnicianSlot) Covers(start, end time.Time) bool {
	return !s.StartTime.After(start) && !s.EndTime.Before(end)
}

// TechnicianUnavailability is an explicit block-out window that overrides
// a slot, e.g. vacation.
type TechnicianUnavailability struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TechnicianID uuid.UUID `db:"technician_id" json:"technician_id"`
	StartTime    time.Time `db:"start_time" json:"start_time"`
	EndTime      time.Time `db:"end_time" json:"end_time"`
	Reason       string    `db:"reason" json:"reason,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Assignment is the result of an auto-assignment search: the winning
// technician, the slot that covers the interval, and the resolved window.
type Assignment struct {
	TechnicianID uuid.UUID  `json:"technician_id"`
	SlotID       *uuid.UUID `json:"slot_id,omitempty"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      time.Time  `json:"end_time"`
}
