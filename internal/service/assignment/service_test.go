package assignment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldserve/booking-api/internal/model"
	"github.com/fieldserve/booking-api/internal/service/availability"
)

type fakeTechnicianRepo struct {
	technicians []*model.Technician
}

func (f *fakeTechnicianRepo) Get(_ context.Context, id uuid.UUID) (*model.Technician, error) {
	for _, t := range f.technicians {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, assert.AnError
}

func (f *fakeTechnicianRepo) ListActiveByCategory(_ context.Context, categoryID uuid.UUID) ([]*model.Technician, error) {
	var out []*model.Technician
	for _, t := range f.technicians {
		if t.CategoryID == categoryID && t.Status == model.TechnicianStatusActive {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeSlotRepo struct {
	slots          []*model.TechnicianSlot
	unavailability []*model.TechnicianUnavailability
}

func (f *fakeSlotRepo) ListBetween(_ context.Context, technicianID uuid.UUID, from, to time.Time) ([]*model.TechnicianSlot, error) {
	var out []*model.TechnicianSlot
	for _, s := range f.slots {
		if s.TechnicianID == technicianID && s.StartTime.Before(to) && from.Before(s.EndTime) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSlotRepo) FindCovering(_ context.Context, technicianID uuid.UUID, start, end time.Time) (*model.TechnicianSlot, error) {
	for _, s := range f.slots {
		if s.TechnicianID == technicianID && s.Covers(start, end) {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeSlotRepo) HasUnavailabilityOverlap(_ context.Context, technicianID uuid.UUID, start, end time.Time) (bool, error) {
	for _, u := range f.unavailability {
		if u.TechnicianID == technicianID && u.StartTime.Before(end) && start.Before(u.EndTime) {
			return true, nil
		}
	}
	return false, nil
}

type fakeBookingRepo struct {
	bookings []*model.Booking
}

func (f *fakeBookingRepo) Create(_ context.Context, b *model.Booking) error {
	f.bookings = append(f.bookings, b)
	return nil
}

func (f *fakeBookingRepo) Get(_ context.Context, id uuid.UUID) (*model.Booking, error) {
	return nil, assert.AnError
}

func (f *fakeBookingRepo) Update(_ context.Context, _ *model.Booking) error { return nil }

func (f *fakeBookingRepo) List(_ context.Context, _ *model.BookingFilters) ([]*model.Booking, error) {
	return f.bookings, nil
}

func (f *fakeBookingRepo) GetByIdempotencyKey(_ context.Context, _ *uuid.UUID, _, _ string) (*model.Booking, error) {
	return nil, nil
}

func (f *fakeBookingRepo) HasOverlap(_ context.Context, technicianID uuid.UUID, start, end time.Time, excludeBookingID *uuid.UUID) (bool, error) {
	for _, b := range f.bookings {
		if b.TechnicianID != technicianID || b.Status == model.BookingStatusCancelled {
			continue
		}
		if excludeBookingID != nil && b.ID == *excludeBookingID {
			continue
		}
		if b.ScheduledStart.Before(end) && start.Before(b.ScheduledEnd) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBookingRepo) CountForTechnicianBetween(_ context.Context, technicianID uuid.UUID, from, to time.Time) (int, error) {
	count := 0
	for _, b := range f.bookings {
		if b.TechnicianID != technicianID || b.Status == model.BookingStatusCancelled {
			continue
		}
		if !b.ScheduledStart.Before(from) && b.ScheduledStart.Before(to) {
			count++
		}
	}
	return count, nil
}

func at(hour, min int) time.Time {
	return time.Date(2026, 3, 10, hour, min, 0, 0, time.UTC)
}

func activeTechnician(categoryID uuid.UUID) *model.Technician {
	return &model.Technician{
		Base:       model.Base{ID: uuid.New()},
		Name:       "Tech",
		CategoryID: categoryID,
		Status:     model.TechnicianStatusActive,
	}
}

func workday(techID uuid.UUID) *model.TechnicianSlot {
	return &model.TechnicianSlot{
		ID:           uuid.New(),
		TechnicianID: techID,
		StartTime:    at(9, 0),
		EndTime:      at(17, 0),
	}
}

func booked(techID uuid.UUID, start, end time.Time) *model.Booking {
	return &model.Booking{
		Base:           model.Base{ID: uuid.New()},
		TechnicianID:   techID,
		ScheduledStart: start,
		ScheduledEnd:   end,
		Status:         model.BookingStatusConfirmed,
	}
}

func newTestService(technicians *fakeTechnicianRepo, slots *fakeSlotRepo, bookings *fakeBookingRepo) *Service {
	avail := availability.NewService(slots, bookings)
	return NewService(technicians, bookings, avail, nil)
}

func TestFindBestPicksLeastLoaded(t *testing.T) {
	categoryID := uuid.New()
	busy := activeTechnician(categoryID)
	idle := activeTechnician(categoryID)

	technicians := &fakeTechnicianRepo{technicians: []*model.Technician{busy, idle}}
	slots := &fakeSlotRepo{slots: []*model.TechnicianSlot{workday(busy.ID), workday(idle.ID)}}
	bookings := &fakeBookingRepo{bookings: []*model.Booking{
		booked(busy.ID, at(9, 0), at(10, 0)),
		booked(busy.ID, at(14, 0), at(15, 0)),
	}}

	svc := newTestService(technicians, slots, bookings)
	assigned, err := svc.FindBest(context.Background(), categoryID, uuid.New(), at(11, 0), 60)
	require.NoError(t, err)
	require.NotNil(t, assigned)
	assert.Equal(t, idle.ID, assigned.TechnicianID)
	require.NotNil(t, assigned.SlotID)
	assert.Equal(t, at(11, 0), assigned.StartTime)
	assert.Equal(t, at(12, 0), assigned.EndTime)
}

func TestFindBestFirstCandidateKeepsTies(t *testing.T) {
	categoryID := uuid.New()
	first := activeTechnician(categoryID)
	second := activeTechnician(categoryID)

	technicians := &fakeTechnicianRepo{technicians: []*model.Technician{first, second}}
	slots := &fakeSlotRepo{slots: []*model.TechnicianSlot{workday(first.ID), workday(second.ID)}}

	svc := newTestService(technicians, slots, &fakeBookingRepo{})
	assigned, err := svc.FindBest(context.Background(), categoryID, uuid.New(), at(11, 0), 60)
	require.NoError(t, err)
	require.NotNil(t, assigned)
	assert.Equal(t, first.ID, assigned.TechnicianID)
}

func TestFindBestSkipsBlockedCandidates(t *testing.T) {
	categoryID := uuid.New()
	noSlot := activeTechnician(categoryID)
	overlapping := activeTechnician(categoryID)
	blockedOut := activeTechnician(categoryID)
	free := activeTechnician(categoryID)

	technicians := &fakeTechnicianRepo{technicians: []*model.Technician{noSlot, overlapping, blockedOut, free}}
	slots := &fakeSlotRepo{
		slots: []*model.TechnicianSlot{workday(overlapping.ID), workday(blockedOut.ID), workday(free.ID)},
		unavailability: []*model.TechnicianUnavailability{{
			ID:           uuid.New(),
			TechnicianID: blockedOut.ID,
			StartTime:    at(10, 0),
			EndTime:      at(12, 0),
		}},
	}
	bookings := &fakeBookingRepo{bookings: []*model.Booking{
		booked(overlapping.ID, at(11, 0), at(12, 0)),
	}}

	svc := newTestService(technicians, slots, bookings)
	assigned, err := svc.FindBest(context.Background(), categoryID, uuid.New(), at(11, 0), 60)
	require.NoError(t, err)
	require.NotNil(t, assigned)
	assert.Equal(t, free.ID, assigned.TechnicianID)
}

func TestFindBestNobodyAvailable(t *testing.T) {
	categoryID := uuid.New()
	tech := activeTechnician(categoryID)
	inactive := activeTechnician(categoryID)
	inactive.Status = model.TechnicianStatusInactive

	technicians := &fakeTechnicianRepo{technicians: []*model.Technician{tech, inactive}}
	slots := &fakeSlotRepo{slots: []*model.TechnicianSlot{workday(inactive.ID)}}

	svc := newTestService(technicians, slots, &fakeBookingRepo{})
	assigned, err := svc.FindBest(context.Background(), categoryID, uuid.New(), at(11, 0), 60)
	require.NoError(t, err)
	assert.Nil(t, assigned)
}

func TestFindBestCoercesDuration(t *testing.T) {
	categoryID := uuid.New()
	tech := activeTechnician(categoryID)

	technicians := &fakeTechnicianRepo{technicians: []*model.Technician{tech}}
	slots := &fakeSlotRepo{slots: []*model.TechnicianSlot{workday(tech.ID)}}

	svc := newTestService(technicians, slots, &fakeBookingRepo{})
	assigned, err := svc.FindBest(context.Background(), categoryID, uuid.New(), at(11, 0), 0)
	require.NoError(t, err)
	require.NotNil(t, assigned)
	assert.Equal(t, at(12, 0), assigned.EndTime)
}

func TestFindBestLoadCountIsSameDayOnly(t *testing.T) {
	categoryID := uuid.New()
	busyYesterday := activeTechnician(categoryID)
	busyToday := activeTechnician(categoryID)

	technicians := &fakeTechnicianRepo{technicians: []*model.Technician{busyYesterday, busyToday}}
	slots := &fakeSlotRepo{slots: []*model.TechnicianSlot{workday(busyYesterday.ID), workday(busyToday.ID)}}
	bookings := &fakeBookingRepo{bookings: []*model.Booking{
		booked(busyYesterday.ID, at(9, 0).AddDate(0, 0, -1), at(10, 0).AddDate(0, 0, -1)),
		booked(busyYesterday.ID, at(14, 0).AddDate(0, 0, -1), at(15, 0).AddDate(0, 0, -1)),
		booked(busyToday.ID, at(9, 0), at(10, 0)),
	}}

	svc := newTestService(technicians, slots, bookings)
	assigned, err := svc.FindBest(context.Background(), categoryID, uuid.New(), at(11, 0), 60)
	require.NoError(t, err)
	require.NotNil(t, assigned)
	// Yesterday's jobs do not count against today's load.
	assert.Equal(t, busyYesterday.ID, assigned.TechnicianID)
}
