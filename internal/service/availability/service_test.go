package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldserve/booking-api/internal/model"
)

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
	for _, b := range f.bookings {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, assert.AnError
}

func (f *fakeBookingRepo) Update(_ context.Context, b *model.Booking) error { return nil }

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

func day(hour, min int) time.Time {
	return time.Date(2026, 3, 10, hour, min, 0, 0, time.UTC)
}

func slotFor(techID uuid.UUID, start, end time.Time) *model.TechnicianSlot {
	return &model.TechnicianSlot{
		ID:           uuid.New(),
		TechnicianID: techID,
		StartTime:    start,
		EndTime:      end,
	}
}

func bookingFor(techID uuid.UUID, start, end time.Time) *model.Booking {
	return &model.Booking{
		Base:           model.Base{ID: uuid.New()},
		TechnicianID:   techID,
		ScheduledStart: start,
		ScheduledEnd:   end,
		Status:         model.BookingStatusConfirmed,
	}
}

func TestIsAvailable(t *testing.T) {
	techID := uuid.New()
	slots := &fakeSlotRepo{slots: []*model.TechnicianSlot{
		slotFor(techID, day(9, 0), day(17, 0)),
	}}
	bookings := &fakeBookingRepo{}
	svc := NewService(slots, bookings)
	ctx := context.Background()

	t.Run("free interval inside slot", func(t *testing.T) {
		ok, err := svc.IsAvailable(ctx, techID, day(10, 0), 60)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("no covering slot", func(t *testing.T) {
		ok, err := svc.IsAvailable(ctx, techID, day(16, 30), 60)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("outside any slot", func(t *testing.T) {
		ok, err := svc.IsAvailable(ctx, techID, day(7, 0), 60)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("default duration when non-positive", func(t *testing.T) {
		// 16:30 with the 60-minute default runs past the slot end.
		ok, err := svc.IsAvailable(ctx, techID, day(16, 30), 0)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = svc.IsAvailable(ctx, techID, day(16, 0), -5)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestIsAvailableBookingConflicts(t *testing.T) {
	techID := uuid.New()
	slots := &fakeSlotRepo{slots: []*model.TechnicianSlot{
		slotFor(techID, day(9, 0), day(17, 0)),
	}}
	bookings := &fakeBookingRepo{bookings: []*model.Booking{
		bookingFor(techID, day(10, 0), day(11, 0)),
	}}
	svc := NewService(slots, bookings)
	ctx := context.Background()

	t.Run("overlapping booking blocks", func(t *testing.T) {
		ok, err := svc.IsAvailable(ctx, techID, day(10, 30), 60)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("touching intervals do not conflict", func(t *testing.T) {
		ok, err := svc.IsAvailable(ctx, techID, day(11, 0), 60)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = svc.IsAvailable(ctx, techID, day(9, 0), 60)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("cancelled bookings are ignored", func(t *testing.T) {
		cancelled := bookingFor(techID, day(14, 0), day(15, 0))
		cancelled.Status = model.BookingStatusCancelled
		bookings.bookings = append(bookings.bookings, cancelled)

		ok, err := svc.IsAvailable(ctx, techID, day(14, 0), 60)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestIsAvailableUnavailabilityBlocks(t *testing.T) {
	techID := uuid.New()
	slots := &fakeSlotRepo{
		slots: []*model.TechnicianSlot{slotFor(techID, day(9, 0), day(17, 0))},
		unavailability: []*model.TechnicianUnavailability{{
			ID:           uuid.New(),
			TechnicianID: techID,
			StartTime:    day(12, 0),
			EndTime:      day(13, 0),
		}},
	}
	svc := NewService(slots, &fakeBookingRepo{})
	ctx := context.Background()

	ok, err := svc.IsAvailable(ctx, techID, day(12, 30), 60)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.IsAvailable(ctx, techID, day(13, 0), 60)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsIntervalFreeExcludesBooking(t *testing.T) {
	techID := uuid.New()
	existing := bookingFor(techID, day(10, 0), day(11, 0))
	slots := &fakeSlotRepo{slots: []*model.TechnicianSlot{
		slotFor(techID, day(9, 0), day(17, 0)),
	}}
	bookings := &fakeBookingRepo{bookings: []*model.Booking{existing}}
	svc := NewService(slots, bookings)
	ctx := context.Background()

	// Moving the booking half an hour later overlaps its own old window.
	free, err := svc.IsIntervalFree(ctx, techID, day(10, 30), day(11, 30), nil)
	require.NoError(t, err)
	assert.False(t, free)

	free, err = svc.IsIntervalFree(ctx, techID, day(10, 30), day(11, 30), &existing.ID)
	require.NoError(t, err)
	assert.True(t, free)
}

func TestListSlotsWindow(t *testing.T) {
	techID := uuid.New()
	inWindow := slotFor(techID, day(9, 0), day(17, 0))
	outOfWindow := slotFor(techID, day(9, 0).AddDate(0, 0, SlotWindowDays+1), day(17, 0).AddDate(0, 0, SlotWindowDays+1))
	slots := &fakeSlotRepo{slots: []*model.TechnicianSlot{inWindow, outOfWindow}}
	svc := NewService(slots, &fakeBookingRepo{})

	listed, err := svc.ListSlots(context.Background(), techID, day(0, 0))
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, inWindow.ID, listed[0].ID)
}
