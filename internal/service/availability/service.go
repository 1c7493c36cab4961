package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldserve/booking-api/internal/model"
	"github.com/fieldserve/booking-api/internal/repository"
)

const (
	// DefaultDurationMinutes is applied when a caller passes a
	// non-positive duration.
	DefaultDurationMinutes = 60

	// SlotWindowDays is the width of the slot listing window. Wider than
	// a single day on purpose: one query serves both same-day and
	// near-future slot picking.
	SlotWindowDays = 14
)

// Service answers "is technician X free for [s,e)?" against slots,
// existing bookings, and unavailability windows.
type Service struct {
	slots    repository.SlotRepository
	bookings repository.BookingRepository
}

func NewService(slots repository.SlotRepository, bookings repository.BookingRepository) *Service {
	return &Service{
		slots:    slots,
		bookings: bookings,
	}
}

// HasOverlap reports whether any non-cancelled booking for the technician
// intersects [start, end). Touching intervals do not conflict.
func (s *Service) HasOverlap(ctx context.Context, technicianID uuid.UUID, start, end time.Time) (bool, error) {
	overlap, err := s.bookings.HasOverlap(ctx, technicianID, start, end, nil)
	if err != nil {
		return false, fmt.Errorf("failed to check booking overlap: %w", err)
	}
	return overlap, nil
}

// ListSlots returns all slots intersecting the 14-day window starting at
// day. Callers filter down to the interval they care about.
func (s *Service) ListSlots(ctx context.Context, technicianID uuid.UUID, day time.Time) ([]*model.TechnicianSlot, error) {
	from := day.UTC()
	to := from.AddDate(0, 0, SlotWindowDays)

	slots, err := s.slots.ListBetween(ctx, technicianID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	return slots, nil
}

// HasUnavailabilityOverlap reports whether a block-out window intersects
// [start, end).
func (s *Service) HasUnavailabilityOverlap(ctx context.Context, technicianID uuid.UUID, start, end time.Time) (bool, error) {
	overlap, err := s.slots.HasUnavailabilityOverlap(ctx, technicianID, start, end)
	if err != nil {
		return false, fmt.Errorf("failed to check unavailability overlap: %w", err)
	}
	return overlap, nil
}

// IsAvailable reports whether the technician can take a job starting at
// start for durationMinutes: some slot must fully cover the interval, and
// neither an existing booking nor an unavailability window may intersect it.
func (s *Service) IsAvailable(ctx context.Context, technicianID uuid.UUID, start time.Time, durationMinutes int) (bool, error) {
	if durationMinutes <= 0 {
		durationMinutes = DefaultDurationMinutes
	}
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	return s.IsIntervalFree(ctx, technicianID, start, end, nil)
}

// IsIntervalFree is the full availability check over an explicit interval.
// excludeBookingID, when set, removes that booking from the overlap check
// so a reschedule can move within or next to its current window.
func (s *Service) IsIntervalFree(ctx context.Context, technicianID uuid.UUID, start, end time.Time, excludeBookingID *uuid.UUID) (bool, error) {
	slot, err := s.slots.FindCovering(ctx, technicianID, start, end)
	if err != nil {
		return false, fmt.Errorf("failed to find covering slot: %w", err)
	}
	if slot == nil {
		return false, nil
	}

	overlap, err := s.bookings.HasOverlap(ctx, technicianID, start, end, excludeBookingID)
	if err != nil {
		return false, fmt.Errorf("failed to check booking overlap: %w", err)
	}
	if overlap {
		return false, nil
	}

	blocked, err := s.HasUnavailabilityOverlap(ctx, technicianID, start, end)
	if err != nil {
		return false, err
	}
	return !blocked, nil
}

// FindCoveringSlot exposes the slot lookup for callers that need the slot
// id attached to a selection. Returns (nil, nil) when no slot covers the
// interval.
func (s *Service) FindCoveringSlot(ctx context.Context, technicianID uuid.UUID, start, end time.Time) (*model.TechnicianSlot, error) {
	slot, err := s.slots.FindCovering(ctx, technicianID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to find covering slot: %w", err)
	}
	return slot, nil
}
