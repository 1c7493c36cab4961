package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldserve/booking-api/internal/model"
	"github.com/fieldserve/booking-api/internal/repository"
)

// Service records domain events in the transactional outbox. A separate
// processor drains the table and publishes to the broker, so event
// delivery survives broker downtime.
type Service struct {
	outbox repository.OutboxRepository
}

func NewService(outbox repository.OutboxRepository) *Service {
	return &Service{outbox: outbox}
}

// Emit stores one pending outbox event. The payload is marshalled here so
// callers pass plain structs.
func (s *Service) Emit(ctx context.Context, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	now := time.Now().UTC()
	return s.outbox.Create(ctx, &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   body,
		Status:    string(model.OutboxStatusPending),
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// EmitBooking emits a booking.* event with the standard payload shape.
func (s *Service) EmitBooking(ctx context.Context, eventType string, booking *model.Booking) error {
	return s.Emit(ctx, eventType, model.BookingEventPayload{
		BookingID:      booking.ID,
		TechnicianID:   booking.TechnicianID,
		CustomerEmail:  booking.CustomerEmail,
		Status:         booking.Status,
		ScheduledStart: booking.ScheduledStart,
		ScheduledEnd:   booking.ScheduledEnd,
		OccurredAt:     time.Now().UTC(),
	})
}
