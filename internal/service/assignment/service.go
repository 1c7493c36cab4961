package assignment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fieldserve/booking-api/internal/model"
	"github.com/fieldserve/booking-api/internal/repository"
	"github.com/fieldserve/booking-api/internal/service/availability"
	"github.com/fieldserve/booking-api/pkg/metrics"
)

// Service finds a qualified, available technician for a requested
// interval, load-balanced by same-day booking count.
type Service struct {
	technicians  repository.TechnicianRepository
	bookings     repository.BookingRepository
	availability *availability.Service
	metrics      *metrics.Metrics
}

func NewService(
	technicians repository.TechnicianRepository,
	bookings repository.BookingRepository,
	availability *availability.Service,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		technicians:  technicians,
		bookings:     bookings,
		availability: availability,
		metrics:      metrics,
	}
}

// FindBest picks the qualified, available technician with the fewest
// bookings on the requested day. Ties go to the first candidate in
// iteration order. Returns (nil, nil) when nobody qualifies.
func (s *Service) FindBest(ctx context.Context, categoryID, issueID uuid.UUID, start time.Time, durationMinutes int) (*model.Assignment, error) {
	if s.metrics != nil {
		timer := prometheus.NewTimer(s.metrics.AssignmentLatency)
		defer timer.ObserveDuration()
	}

	if durationMinutes <= 0 {
		durationMinutes = availability.DefaultDurationMinutes
	}
	end := start.Add(time.Duration(durationMinutes) * time.Minute)

	// Qualification today is category membership; a finer skills matrix
	// would slot in here.
	candidates, err := s.technicians.ListActiveByCategory(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate technicians: %w", err)
	}

	dayStart := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var (
		best      *model.Technician
		bestSlot  *model.TechnicianSlot
		bestCount int
	)

	for _, candidate := range candidates {
		slot, err := s.availability.FindCoveringSlot(ctx, candidate.ID, start, end)
		if err != nil {
			return nil, err
		}
		if slot == nil {
			continue
		}

		overlap, err := s.availability.HasOverlap(ctx, candidate.ID, start, end)
		if err != nil {
			return nil, err
		}
		if overlap {
			continue
		}

		blocked, err := s.availability.HasUnavailabilityOverlap(ctx, candidate.ID, start, end)
		if err != nil {
			return nil, err
		}
		if blocked {
			continue
		}

		count, err := s.bookings.CountForTechnicianBetween(ctx, candidate.ID, dayStart, dayEnd)
		if err != nil {
			return nil, fmt.Errorf("failed to count same-day bookings: %w", err)
		}

		// Strictly fewer wins; the first candidate keeps ties.
		if best == nil || count < bestCount {
			best = candidate
			bestSlot = slot
			bestCount = count
		}
	}

	if best == nil {
		if s.metrics != nil {
			s.metrics.AssignmentSearches.WithLabelValues("none").Inc()
		}
		return nil, nil
	}

	if s.metrics != nil {
		s.metrics.AssignmentSearches.WithLabelValues("assigned").Inc()
	}

	slotID := bestSlot.ID
	return &model.Assignment{
		TechnicianID: best.ID,
		SlotID:       &slotID,
		StartTime:    start,
		EndTime:      end,
	}, nil
}

// IsAvailable checks a caller-specified technician directly, bypassing
// auto-assignment. An explicitly requested technician is never swapped
// for another.
func (s *Service) IsAvailable(ctx context.Context, technicianID uuid.UUID, start time.Time, durationMinutes int) (bool, error) {
	return s.availability.IsAvailable(ctx, technicianID, start, durationMinutes)
}
