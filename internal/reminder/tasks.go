package reminder

import (
	"time"

	"github.com/google/uuid"
)

// TypeBookingReminder is the asynq task type for pre-visit reminders.
const TypeBookingReminder = "booking:reminder"

// Queue is the asynq queue reminders run on.
const Queue = "reminders"

// Lead is how far before the scheduled start the reminder fires.
const Lead = 24 * time.Hour

// TaskPayload is the reminder task body.
type TaskPayload struct {
	BookingID      uuid.UUID `json:"booking_id"`
	CustomerName   string    `json:"customer_name"`
	CustomerEmail  string    `json:"customer_email"`
	TechnicianName string    `json:"technician_name,omitempty"`
	ScheduledStart time.Time `json:"scheduled_start"`
}
