package reminder

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/fieldserve/booking-api/internal/email"
	"github.com/fieldserve/booking-api/internal/model"
	"github.com/fieldserve/booking-api/internal/repository"
	"github.com/fieldserve/booking-api/pkg/logger"
)

// Handler processes reminder tasks in the worker. It re-reads the booking
// so reminders for bookings cancelled after scheduling are silently
// dropped even if the job was not revoked.
type Handler struct {
	bookings repository.BookingRepository
	sender   email.Sender
	logger   *logger.Logger
}

func NewHandler(bookings repository.BookingRepository, sender email.Sender, logger *logger.Logger) *Handler {
	return &Handler{
		bookings: bookings,
		sender:   sender,
		logger:   logger,
	}
}

// Register wires the handler into an asynq mux.
func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeBookingReminder, h.HandleBookingReminder)
}

func (h *Handler) HandleBookingReminder(ctx context.Context, t *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal reminder payload: %v: %w", err, asynq.SkipRetry)
	}

	booking, err := h.bookings.Get(ctx, payload.BookingID)
	if err != nil {
		h.logger.Warn("reminder target booking not readable, dropping",
			"booking_id", payload.BookingID.String(), "error", err.Error())
		return nil
	}
	if booking.Status == model.BookingStatusCancelled || booking.Status == model.BookingStatusCompleted {
		return nil
	}

	if err := h.sender.SendReminder(payload.CustomerEmail, payload.CustomerName, payload.TechnicianName, booking.ScheduledStart); err != nil {
		return err
	}

	h.logger.Info("reminder sent",
		"booking_id", booking.ID.String(), "email", payload.CustomerEmail)
	return nil
}
