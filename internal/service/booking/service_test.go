package booking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldserve/booking-api/internal/model"
	"github.com/fieldserve/booking-api/internal/reminder"
	"github.com/fieldserve/booking-api/internal/service/availability"
	"github.com/fieldserve/booking-api/internal/service/catalog"
	"github.com/fieldserve/booking-api/internal/service/event"
	apperrors "github.com/fieldserve/booking-api/pkg/errors"
	"github.com/fieldserve/booking-api/pkg/logger"
)

type fakeBookingRepo struct {
	bookings []*model.Booking
}

func (f *fakeBookingRepo) Create(_ context.Context, b *model.Booking) error {
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	stored := *b
	f.bookings = append(f.bookings, &stored)
	return nil
}

func (f *fakeBookingRepo) Get(_ context.Context, id uuid.UUID) (*model.Booking, error) {
	for _, b := range f.bookings {
		if b.ID == id {
			copied := *b
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("booking not found")
}

func (f *fakeBookingRepo) Update(_ context.Context, b *model.Booking) error {
	for i, existing := range f.bookings {
		if existing.ID == b.ID {
			stored := *b
			f.bookings[i] = &stored
			return nil
		}
	}
	return fmt.Errorf("booking not found")
}

func (f *fakeBookingRepo) List(_ context.Context, _ *model.BookingFilters) ([]*model.Booking, error) {
	return f.bookings, nil
}

func (f *fakeBookingRepo) GetByIdempotencyKey(_ context.Context, userID *uuid.UUID, customerEmail, key string) (*model.Booking, error) {
	for _, b := range f.bookings {
		if b.IdempotencyKey != key {
			continue
		}
		if userID != nil {
			if b.UserID != nil && *b.UserID == *userID {
				copied := *b
				return &copied, nil
			}
			continue
		}
		if b.UserID == nil && b.CustomerEmail == customerEmail {
			copied := *b
			return &copied, nil
		}
	}
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

type fakeSlotRepo struct {
	slots []*model.TechnicianSlot
}

func (f *fakeSlotRepo) ListBetween(_ context.Context, technicianID uuid.UUID, from, to time.Time) ([]*model.TechnicianSlot, error) {
	return f.slots, nil
}

func (f *fakeSlotRepo) FindCovering(_ context.Context, technicianID uuid.UUID, start, end time.Time) (*model.TechnicianSlot, error) {
	for _, s := range f.slots {
		if s.TechnicianID == technicianID && s.Covers(start, end) {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeSlotRepo) HasUnavailabilityOverlap(_ context.Context, _ uuid.UUID, _, _ time.Time) (bool, error) {
	return false, nil
}

type fakeTechnicianRepo struct {
	technicians []*model.Technician
}

func (f *fakeTechnicianRepo) Get(_ context.Context, id uuid.UUID) (*model.Technician, error) {
	for _, t := range f.technicians {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, fmt.Errorf("technician not found")
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

type fakeUserRepo struct {
	users []*model.User
}

func (f *fakeUserRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user not found")
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

type fakeCatalogRepo struct {
	issues     []*model.ServiceIssue
	categories []*model.ServiceCategory
}

func (f *fakeCatalogRepo) GetIssue(_ context.Context, id uuid.UUID) (*model.ServiceIssue, error) {
	for _, i := range f.issues {
		if i.ID == id {
			return i, nil
		}
	}
	return nil, fmt.Errorf("service issue not found")
}

func (f *fakeCatalogRepo) GetCategory(_ context.Context, id uuid.UUID) (*model.ServiceCategory, error) {
	for _, c := range f.categories {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("service category not found")
}

type fakeOutboxRepo struct {
	events []*model.OutboxEvent
}

func (f *fakeOutboxRepo) Create(_ context.Context, e *model.OutboxEvent) error {
	f.events = append(f.events, e)
	return nil
}

func (f *fakeOutboxRepo) GetPendingEvents(_ context.Context, _ int) ([]*model.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeOutboxRepo) UpdateStatus(_ context.Context, _ uuid.UUID, _ model.OutboxStatus, _ *string, _ *time.Time) error {
	return nil
}

func (f *fakeOutboxRepo) types() []string {
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.EventType)
	}
	return out
}

type fakeScheduler struct {
	scheduled map[string]time.Time
	cancelled []string
	nextID    int
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{scheduled: make(map[string]time.Time)}
}

func (f *fakeScheduler) Schedule(_ context.Context, _ reminder.TaskPayload, at time.Time) (string, error) {
	f.nextID++
	id := fmt.Sprintf("job-%d", f.nextID)
	f.scheduled[id] = at
	return id, nil
}

func (f *fakeScheduler) Cancel(_ context.Context, jobID string) error {
	f.cancelled = append(f.cancelled, jobID)
	delete(f.scheduled, jobID)
	return nil
}

type fixture struct {
	svc         *Service
	bookings    *fakeBookingRepo
	technicians *fakeTechnicianRepo
	users       *fakeUserRepo
	outbox      *fakeOutboxRepo
	scheduler   *fakeScheduler

	categoryID uuid.UUID
	issue      *model.ServiceIssue
	technician *model.Technician
	now        time.Time
}

func visitAt(hour int) time.Time {
	return time.Date(2026, 3, 10, hour, 0, 0, 0, time.UTC)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	categoryID := uuid.New()
	issue := &model.ServiceIssue{
		Base:             model.Base{ID: uuid.New()},
		CategoryID:       categoryID,
		Name:             "Leaking tap repair",
		Description:      "Replace washers and reseat valve",
		BasePrice:        decimal.RequireFromString("80.00"),
		EstimatedMinutes: 60,
	}
	technician := &model.Technician{
		Base:       model.Base{ID: uuid.New()},
		Name:       "Sam Field",
		CategoryID: categoryID,
		Status:     model.TechnicianStatusActive,
	}

	bookings := &fakeBookingRepo{}
	slots := &fakeSlotRepo{slots: []*model.TechnicianSlot{{
		ID:           uuid.New(),
		TechnicianID: technician.ID,
		StartTime:    visitAt(8),
		EndTime:      visitAt(18),
	}}}
	technicians := &fakeTechnicianRepo{technicians: []*model.Technician{technician}}
	users := &fakeUserRepo{}
	outbox := &fakeOutboxRepo{}
	scheduler := newFakeScheduler()

	quiet := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	svc := NewService(
		Config{},
		bookings,
		technicians,
		users,
		catalog.NewService(&fakeCatalogRepo{issues: []*model.ServiceIssue{issue}}),
		availability.NewService(slots, bookings),
		event.NewService(outbox),
		scheduler,
		nil,
		quiet,
	)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	return &fixture{
		svc:         svc,
		bookings:    bookings,
		technicians: technicians,
		users:       users,
		outbox:      outbox,
		scheduler:   scheduler,
		categoryID:  categoryID,
		issue:       issue,
		technician:  technician,
		now:         now,
	}
}

func (f *fixture) guestRequest() *model.CreateBookingRequest {
	return &model.CreateBookingRequest{
		GuestName:      "Jordan Pike",
		GuestEmail:     "jordan@example.com",
		GuestPhone:     "+44 7700 900123",
		TechnicianID:   f.technician.ID,
		CategoryID:     f.categoryID,
		IssueID:        f.issue.ID,
		Items:          []model.CreateBookingItem{{IssueID: f.issue.ID, Quantity: 2}},
		ScheduledStart: visitAt(10),
		ScheduledEnd:   visitAt(11),
		Address: model.Address{
			Line1:      "12 Harbour Row",
			City:       "Bristol",
			PostalCode: "BS1 4ND",
			Country:    "GB",
		},
		PaymentMethod:  model.PaymentMethodCard,
		IdempotencyKey: "key-1",
	}
}

func TestCreateSnapshotsCatalogPricing(t *testing.T) {
	f := newFixture(t)

	created, err := f.svc.Create(context.Background(), f.guestRequest())
	require.NoError(t, err)

	assert.Equal(t, model.BookingStatusPendingTechnician, created.Status)
	require.Len(t, created.Items, 1)
	item := created.Items[0]
	assert.Equal(t, "Leaking tap repair", item.ServiceName)
	assert.True(t, item.UnitPrice.Equal(decimal.RequireFromString("80.00")), item.UnitPrice.String())
	assert.True(t, item.LineTotal.Equal(decimal.RequireFromString("160.00")), item.LineTotal.String())
	assert.True(t, created.EstimatedTotal.Equal(decimal.RequireFromString("160.00")), created.EstimatedTotal.String())
	assert.Equal(t, "jordan@example.com", created.CustomerEmail)
	assert.Equal(t, []string{model.EventBookingCreated}, f.outbox.types())
}

func TestCreateHonorsPriceOverride(t *testing.T) {
	f := newFixture(t)
	override := decimal.RequireFromString("65.50")
	req := f.guestRequest()
	req.Items = []model.CreateBookingItem{{IssueID: f.issue.ID, Quantity: 1, UnitPriceOverride: &override}}

	created, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, created.EstimatedTotal.Equal(override), created.EstimatedTotal.String())
}

func TestCreateIdempotentReplay(t *testing.T) {
	f := newFixture(t)

	first, err := f.svc.Create(context.Background(), f.guestRequest())
	require.NoError(t, err)

	second, err := f.svc.Create(context.Background(), f.guestRequest())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.bookings.bookings, 1)
	// No second created event either.
	assert.Equal(t, []string{model.EventBookingCreated}, f.outbox.types())
}

func TestCreateIdempotencyKeyScopedPerOwner(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), f.guestRequest())
	require.NoError(t, err)

	other := f.guestRequest()
	other.GuestEmail = "other@example.com"
	other.ScheduledStart = visitAt(14)
	other.ScheduledEnd = visitAt(15)

	created, err := f.svc.Create(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, "other@example.com", created.CustomerEmail)
	assert.Len(t, f.bookings.bookings, 2)
}

func TestCreateGuestWithRegisteredEmail(t *testing.T) {
	f := newFixture(t)
	registered := &model.User{
		Base:  model.Base{ID: uuid.New()},
		Name:  "Jordan Pike",
		Email: "jordan@example.com",
	}
	f.users.users = append(f.users.users, registered)

	_, err := f.svc.Create(context.Background(), f.guestRequest())
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	var accountExists *AccountExistsError
	require.True(t, errors.As(err, &accountExists))
	assert.Equal(t, registered.ID, accountExists.UserID)
	assert.Empty(t, f.bookings.bookings)
}

func TestCreateConflictWhenNotAvailable(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), f.guestRequest())
	require.NoError(t, err)

	overlapping := f.guestRequest()
	overlapping.GuestEmail = "second@example.com"
	overlapping.IdempotencyKey = "key-2"
	overlapping.ScheduledStart = visitAt(10).Add(30 * time.Minute)
	overlapping.ScheduledEnd = visitAt(11).Add(30 * time.Minute)

	_, err = f.svc.Create(context.Background(), overlapping)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestCreateSchedulesReminder(t *testing.T) {
	f := newFixture(t)

	created, err := f.svc.Create(context.Background(), f.guestRequest())
	require.NoError(t, err)

	require.NotNil(t, created.ReminderJobID)
	fireAt, ok := f.scheduler.scheduled[*created.ReminderJobID]
	require.True(t, ok)
	assert.Equal(t, visitAt(10).Add(-24*time.Hour), fireAt)
}

func TestCreateSkipsReminderWhenTooClose(t *testing.T) {
	f := newFixture(t)
	req := f.guestRequest()
	req.ScheduledStart = f.now.Add(2 * time.Hour)
	req.ScheduledEnd = f.now.Add(3 * time.Hour)

	// Move the slot so the near-term interval is covered.
	f.svc.availability = availability.NewService(&fakeSlotRepo{slots: []*model.TechnicianSlot{{
		ID:           uuid.New(),
		TechnicianID: f.technician.ID,
		StartTime:    f.now,
		EndTime:      f.now.Add(12 * time.Hour),
	}}}, f.bookings)

	created, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, created.ReminderJobID)
	assert.Empty(t, f.scheduler.scheduled)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create(context.Background(), f.guestRequest())
	require.NoError(t, err)

	t.Run("outside window succeeds and revokes reminder", func(t *testing.T) {
		cancelled, err := f.svc.Cancel(context.Background(), created.ID, "changed plans")
		require.NoError(t, err)
		assert.Equal(t, model.BookingStatusCancelled, cancelled.Status)
		require.NotNil(t, cancelled.CancelReason)
		assert.Equal(t, "changed plans", *cancelled.CancelReason)
		assert.Len(t, f.scheduler.cancelled, 1)
		assert.Contains(t, f.outbox.types(), model.EventBookingCancelled)
	})

	t.Run("cancelling again is rejected", func(t *testing.T) {
		_, err := f.svc.Cancel(context.Background(), created.ID, "")
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err))
		assert.Len(t, f.scheduler.cancelled, 1)
	})
}

func TestCancelInsideWindowRejected(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create(context.Background(), f.guestRequest())
	require.NoError(t, err)

	f.svc.now = func() time.Time { return visitAt(10).Add(-2 * time.Hour) }

	_, err = f.svc.Cancel(context.Background(), created.ID, "too late")
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestComplete(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create(context.Background(), f.guestRequest())
	require.NoError(t, err)

	final := decimal.RequireFromString("175.00")
	completed, err := f.svc.Complete(context.Background(), created.ID, &final, nil)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)
	require.NotNil(t, completed.FinalTotal)
	assert.True(t, completed.FinalTotal.Equal(final))
	assert.Contains(t, f.outbox.types(), model.EventBookingCompleted)

	// Retrying returns the completed booking unchanged.
	again, err := f.svc.Complete(context.Background(), created.ID, nil, nil)
	require.NoError(t, err)
	assert.True(t, again.FinalTotal.Equal(final))
}

func TestCompleteCallerSuppliedTimestamp(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create(context.Background(), f.guestRequest())
	require.NoError(t, err)

	finishedAt := visitAt(11).Add(20 * time.Minute)
	completed, err := f.svc.Complete(context.Background(), created.ID, nil, &finishedAt)
	require.NoError(t, err)
	require.NotNil(t, completed.CompletedAt)
	assert.Equal(t, finishedAt, *completed.CompletedAt)
}

func TestCompleteDefaultsToEstimatedTotal(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create(context.Background(), f.guestRequest())
	require.NoError(t, err)

	completed, err := f.svc.Complete(context.Background(), created.ID, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, completed.FinalTotal)
	assert.True(t, completed.FinalTotal.Equal(created.EstimatedTotal))
}

func TestCompleteCancelledRejected(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create(context.Background(), f.guestRequest())
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), created.ID, "")
	require.NoError(t, err)

	_, err = f.svc.Complete(context.Background(), created.ID, nil, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestReschedule(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create(context.Background(), f.guestRequest())
	require.NoError(t, err)

	t.Run("overlapping own window succeeds", func(t *testing.T) {
		moved, err := f.svc.Reschedule(context.Background(), created.ID, &model.RescheduleBookingRequest{
			StartTime: visitAt(10).Add(30 * time.Minute),
		})
		require.NoError(t, err)
		assert.Equal(t, visitAt(10).Add(30*time.Minute), moved.ScheduledStart)
		// Duration preserved when no end time is given.
		assert.Equal(t, visitAt(11).Add(30*time.Minute), moved.ScheduledEnd)
	})

	t.Run("outside any slot rejected", func(t *testing.T) {
		_, err := f.svc.Reschedule(context.Background(), created.ID, &model.RescheduleBookingRequest{
			StartTime: visitAt(19),
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err))
	})

	t.Run("terminal booking rejected", func(t *testing.T) {
		_, err := f.svc.Cancel(context.Background(), created.ID, "")
		require.NoError(t, err)

		_, err = f.svc.Reschedule(context.Background(), created.ID, &model.RescheduleBookingRequest{
			StartTime: visitAt(12),
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err))
	})
}

func TestRescheduleMovesReminder(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create(context.Background(), f.guestRequest())
	require.NoError(t, err)
	originalJob := *created.ReminderJobID

	moved, err := f.svc.Reschedule(context.Background(), created.ID, &model.RescheduleBookingRequest{
		StartTime: visitAt(14),
	})
	require.NoError(t, err)

	assert.Contains(t, f.scheduler.cancelled, originalJob)
	require.NotNil(t, moved.ReminderJobID)
	fireAt := f.scheduler.scheduled[*moved.ReminderJobID]
	assert.Equal(t, visitAt(14).Add(-24*time.Hour), fireAt)
}

func TestUpdateNotes(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create(context.Background(), f.guestRequest())
	require.NoError(t, err)

	updated, err := f.svc.UpdateNotes(context.Background(), created.ID, "gate code 4411")
	require.NoError(t, err)
	assert.Equal(t, "gate code 4411", updated.Notes)
	assert.Contains(t, f.outbox.types(), model.EventBookingUpdated)

	_, err = f.svc.Cancel(context.Background(), created.ID, "")
	require.NoError(t, err)

	_, err = f.svc.UpdateNotes(context.Background(), created.ID, "too late")
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestConfirmTransitions(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create(context.Background(), f.guestRequest())
	require.NoError(t, err)

	confirmed, err := f.svc.Confirm(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, confirmed.Status)

	// Confirming again is harmless.
	again, err := f.svc.Confirm(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, again.Status)

	_, err = f.svc.Complete(context.Background(), created.ID, nil, nil)
	require.NoError(t, err)

	_, err = f.svc.Confirm(context.Background(), created.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestCreateRegisteredUser(t *testing.T) {
	f := newFixture(t)
	user := &model.User{
		Base:  model.Base{ID: uuid.New()},
		Name:  "Ana Reyes",
		Email: "ana@example.com",
		Phone: "+1 555 0100",
	}
	f.users.users = append(f.users.users, user)

	req := f.guestRequest()
	req.UserID = &user.ID
	req.GuestName = ""
	req.GuestEmail = ""

	created, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, created.UserID)
	assert.Equal(t, user.ID, *created.UserID)
	assert.Equal(t, "ana@example.com", created.CustomerEmail)
	assert.Equal(t, "Ana Reyes", created.CustomerName)
}
