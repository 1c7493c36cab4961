package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fieldserve/booking-api/internal/model"
	"github.com/fieldserve/booking-api/internal/reminder"
	"github.com/fieldserve/booking-api/internal/repository"
	"github.com/fieldserve/booking-api/internal/service/availability"
	"github.com/fieldserve/booking-api/internal/service/catalog"
	"github.com/fieldserve/booking-api/internal/service/event"
	apperrors "github.com/fieldserve/booking-api/pkg/errors"
	"github.com/fieldserve/booking-api/pkg/logger"
	"github.com/fieldserve/booking-api/pkg/metrics"
)

// DefaultCancellationWindow is how close to the visit a booking can no
// longer be cancelled.
const DefaultCancellationWindow = 24 * time.Hour

// AccountExistsError signals that a guest attempted to book with an email
// that already belongs to a registered account. The caller should ask the
// customer to sign in as that user instead.
type AccountExistsError struct {
	UserID uuid.UUID
}

func (e *AccountExistsError) Error() string {
	return "an account with this email already exists, please sign in"
}

// Config tunes the lifecycle policies.
type Config struct {
	CancellationWindow time.Duration `mapstructure:"cancellation_window"`
	ReminderLead       time.Duration `mapstructure:"reminder_lead"`
}

func (c *Config) applyDefaults() {
	if c.CancellationWindow <= 0 {
		c.CancellationWindow = DefaultCancellationWindow
	}
	if c.ReminderLead <= 0 {
		c.ReminderLead = reminder.Lead
	}
}

// Service owns durable bookings: idempotent creation with catalog
// snapshots, and the cancel/reschedule/complete lifecycle.
type Service struct {
	cfg          Config
	bookings     repository.BookingRepository
	technicians  repository.TechnicianRepository
	users        repository.UserRepository
	catalog      *catalog.Service
	availability *availability.Service
	events       *event.Service
	reminders    reminder.Scheduler
	metrics      *metrics.Metrics
	logger       *logger.Logger
	now          func() time.Time
}

func NewService(
	cfg Config,
	bookings repository.BookingRepository,
	technicians repository.TechnicianRepository,
	users repository.UserRepository,
	catalog *catalog.Service,
	availability *availability.Service,
	events *event.Service,
	reminders reminder.Scheduler,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Service {
	cfg.applyDefaults()
	return &Service{
		cfg:          cfg,
		bookings:     bookings,
		technicians:  technicians,
		users:        users,
		catalog:      catalog,
		availability: availability,
		events:       events,
		reminders:    reminders,
		metrics:      metrics,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Create finalizes a booking. Replays of the same idempotency key return
// the original booking unchanged. The availability check is repeated here
// so a stale draft or a lost race surfaces as a conflict, not a double
// booking.
func (s *Service) Create(ctx context.Context, req *model.CreateBookingRequest) (*model.Booking, error) {
	name, email, phone, err := s.resolveCustomer(ctx, req)
	if err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		existing, err := s.bookings.GetByIdempotencyKey(ctx, req.UserID, email, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if s.metrics != nil {
				s.metrics.IdempotentReplays.Inc()
			}
			s.logger.Info("booking creation replayed from idempotency key",
				"booking_id", existing.ID.String(), "idempotency_key", req.IdempotencyKey)
			return existing, nil
		}
	}

	technician, err := s.technicians.Get(ctx, req.TechnicianID)
	if err != nil {
		return nil, apperrors.NotFound("technician", err)
	}
	if technician.Status != model.TechnicianStatusActive {
		return nil, apperrors.Conflict("technician is not active", nil)
	}
	if technician.CategoryID != req.CategoryID {
		return nil, apperrors.BadRequest("technician does not serve this service category", nil)
	}

	items, total, err := s.snapshotItems(ctx, req)
	if err != nil {
		return nil, err
	}

	free, err := s.availability.IsIntervalFree(ctx, req.TechnicianID, req.ScheduledStart, req.ScheduledEnd, nil)
	if err != nil {
		return nil, err
	}
	if !free {
		return nil, apperrors.Conflict("technician is no longer available for the selected time", nil)
	}

	booking := &model.Booking{
		Base:           model.Base{ID: uuid.New()},
		UserID:         req.UserID,
		TechnicianID:   req.TechnicianID,
		CategoryID:     req.CategoryID,
		IssueID:        req.IssueID,
		Items:          items,
		ScheduledStart: req.ScheduledStart.UTC(),
		ScheduledEnd:   req.ScheduledEnd.UTC(),
		Status:         model.BookingStatusPendingTechnician,
		Address:        req.Address,
		CustomerName:   name,
		CustomerEmail:  email,
		CustomerPhone:  phone,
		EstimatedTotal: total,
		PaymentMethod:  req.PaymentMethod,
		Notes:          req.Notes,
		IdempotencyKey: req.IdempotencyKey,
	}

	// Schedule first so the job id lands in the insert; revoke on failure.
	s.scheduleReminder(ctx, booking, technician.Name)

	if err := s.bookings.Create(ctx, booking); err != nil {
		s.cancelReminder(ctx, booking)
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}
	if s.metrics != nil {
		s.metrics.BookingsCreated.Inc()
	}

	s.emit(ctx, model.EventBookingCreated, booking)

	s.logger.Info("booking created",
		"booking_id", booking.ID.String(), "technician_id", booking.TechnicianID.String())
	return booking, nil
}

// resolveCustomer normalizes the customer identity on the request. A guest
// email that matches a registered account is rejected so the booking can
// land on the account instead.
func (s *Service) resolveCustomer(ctx context.Context, req *model.CreateBookingRequest) (name, email, phone string, err error) {
	if req.UserID != nil {
		user, err := s.users.Get(ctx, *req.UserID)
		if err != nil {
			return "", "", "", apperrors.NotFound("user", err)
		}
		return user.Name, user.Email, user.Phone, nil
	}

	email = strings.ToLower(strings.TrimSpace(req.GuestEmail))
	if email == "" || req.GuestName == "" {
		return "", "", "", apperrors.BadRequest("guest bookings require a name and email", nil)
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", "", "", err
	}
	if existing != nil {
		return "", "", "", apperrors.Conflict("account exists", &AccountExistsError{UserID: existing.ID})
	}
	return req.GuestName, email, req.GuestPhone, nil
}

// snapshotItems resolves every requested line against the catalog and
// freezes names and prices onto the booking.
func (s *Service) snapshotItems(ctx context.Context, req *model.CreateBookingRequest) ([]model.BookingItem, decimal.Decimal, error) {
	items := make([]model.BookingItem, 0, len(req.Items))
	total := decimal.Zero

	for i, line := range req.Items {
		issue, err := s.catalog.GetIssue(ctx, line.IssueID)
		if err != nil {
			return nil, decimal.Zero, apperrors.NotFound("service issue", err)
		}
		if issue.CategoryID != req.CategoryID {
			return nil, decimal.Zero, apperrors.BadRequest("service issue does not belong to the selected category", nil)
		}

		unitPrice := issue.BasePrice
		if line.UnitPriceOverride != nil {
			unitPrice = *line.UnitPriceOverride
		}
		lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)

		items = append(items, model.BookingItem{
			IssueID:     issue.ID,
			ServiceName: issue.Name,
			Description: issue.Description,
			UnitPrice:   unitPrice.Round(2),
			Quantity:    line.Quantity,
			LineTotal:   lineTotal,
			Position:    i,
		})
		total = total.Add(lineTotal)
	}
	return items, total.Round(2), nil
}

// Get returns a booking with its item snapshots.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	booking, err := s.bookings.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NotFound("booking", err)
	}
	return booking, nil
}

// List returns bookings matching the filters, ordered by start time.
func (s *Service) List(ctx context.Context, filters *model.BookingFilters) ([]*model.Booking, error) {
	return s.bookings.List(ctx, filters)
}

// Confirm advances a pending booking to confirmed. Either side's pending
// state can be confirmed; the other transitions are rejected.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	booking, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch booking.Status {
	case model.BookingStatusConfirmed:
		return booking, nil
	case model.BookingStatusPendingTechnician, model.BookingStatusPendingCustomer:
	default:
		return nil, apperrors.Conflict(fmt.Sprintf("cannot confirm a %s booking", booking.Status), nil)
	}

	booking.Status = model.BookingStatusConfirmed
	if err := s.bookings.Update(ctx, booking); err != nil {
		return nil, err
	}
	s.emit(ctx, model.EventBookingUpdated, booking)
	return booking, nil
}

// Cancel cancels a booking outside the cancellation window. A booking is
// cancelled at most once; repeat attempts are rejected.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*model.Booking, error) {
	booking, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status == model.BookingStatusCancelled {
		return nil, apperrors.Conflict("booking is already cancelled", nil)
	}
	if booking.Status == model.BookingStatusCompleted {
		return nil, apperrors.Conflict("completed bookings cannot be cancelled", nil)
	}

	now := s.now()
	if now.After(booking.ScheduledStart.Add(-s.cfg.CancellationWindow)) {
		return nil, apperrors.Conflict(
			fmt.Sprintf("bookings cannot be cancelled within %s of the scheduled start", s.cfg.CancellationWindow), nil)
	}

	booking.Status = model.BookingStatusCancelled
	if reason != "" {
		booking.CancelReason = &reason
	}
	s.cancelReminder(ctx, booking)

	if err := s.bookings.Update(ctx, booking); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.BookingsCancelled.Inc()
	}
	s.emit(ctx, model.EventBookingCancelled, booking)

	s.logger.Info("booking cancelled", "booking_id", booking.ID.String())
	return booking, nil
}

// Reschedule moves a non-terminal booking to a new window with the same
// technician. The new window must pass the full availability check,
// ignoring the booking's own current window.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, req *model.RescheduleBookingRequest) (*model.Booking, error) {
	booking, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status.Terminal() {
		return nil, apperrors.Conflict(fmt.Sprintf("cannot reschedule a %s booking", booking.Status), nil)
	}

	start := req.StartTime.UTC()
	end := start.Add(booking.ScheduledEnd.Sub(booking.ScheduledStart))
	if req.EndTime != nil {
		end = req.EndTime.UTC()
	}
	if !end.After(start) {
		return nil, apperrors.BadRequest("end time must be after start time", nil)
	}

	slot, err := s.availability.FindCoveringSlot(ctx, booking.TechnicianID, start, end)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, apperrors.Conflict("technician has no slot covering the new time", nil)
	}
	free, err := s.availability.IsIntervalFree(ctx, booking.TechnicianID, start, end, &booking.ID)
	if err != nil {
		return nil, err
	}
	if !free {
		return nil, apperrors.Conflict("technician is not available for the requested time", nil)
	}

	booking.ScheduledStart = start
	booking.ScheduledEnd = end

	s.cancelReminder(ctx, booking)
	technicianName := ""
	if technician, err := s.technicians.Get(ctx, booking.TechnicianID); err == nil {
		technicianName = technician.Name
	}
	s.scheduleReminder(ctx, booking, technicianName)

	if err := s.bookings.Update(ctx, booking); err != nil {
		return nil, err
	}
	s.emit(ctx, model.EventBookingUpdated, booking)

	s.logger.Info("booking rescheduled",
		"booking_id", booking.ID.String(), "scheduled_start", start)
	return booking, nil
}

// Complete marks the work done. Completing an already completed booking
// returns it unchanged, so technician apps and the payment settlement
// callback can both retry safely. When completedAt is nil the current
// time is recorded.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, finalTotal *decimal.Decimal, completedAt *time.Time) (*model.Booking, error) {
	booking, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status == model.BookingStatusCompleted {
		return booking, nil
	}
	if booking.Status == model.BookingStatusCancelled {
		return nil, apperrors.Conflict("cancelled bookings cannot be completed", nil)
	}

	when := s.now()
	if completedAt != nil {
		when = *completedAt
	}
	booking.Status = model.BookingStatusCompleted
	booking.CompletedAt = &when
	if finalTotal != nil {
		rounded := finalTotal.Round(2)
		booking.FinalTotal = &rounded
	} else {
		total := booking.EstimatedTotal
		booking.FinalTotal = &total
	}
	s.cancelReminder(ctx, booking)

	if err := s.bookings.Update(ctx, booking); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.BookingsCompleted.Inc()
	}
	s.emit(ctx, model.EventBookingCompleted, booking)

	s.logger.Info("booking completed", "booking_id", booking.ID.String())
	return booking, nil
}

// UpdateNotes replaces the customer-visible notes on a non-terminal booking.
func (s *Service) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (*model.Booking, error) {
	booking, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status.Terminal() {
		return nil, apperrors.Conflict(fmt.Sprintf("cannot update notes on a %s booking", booking.Status), nil)
	}

	booking.Notes = notes
	if err := s.bookings.Update(ctx, booking); err != nil {
		return nil, err
	}
	s.emit(ctx, model.EventBookingUpdated, booking)
	return booking, nil
}

// scheduleReminder books a pre-visit reminder when the lead time still
// fits. Scheduling failures are logged, never propagated.
func (s *Service) scheduleReminder(ctx context.Context, booking *model.Booking, technicianName string) {
	if s.reminders == nil {
		return
	}
	fireAt := booking.ScheduledStart.Add(-s.cfg.ReminderLead)
	if !fireAt.After(s.now()) {
		return
	}

	jobID, err := s.reminders.Schedule(ctx, reminder.TaskPayload{
		BookingID:      booking.ID,
		CustomerName:   booking.CustomerName,
		CustomerEmail:  booking.CustomerEmail,
		TechnicianName: technicianName,
		ScheduledStart: booking.ScheduledStart,
	}, fireAt)
	if err != nil {
		s.logger.Error(err, "failed to schedule booking reminder", "booking_id", booking.ID.String())
		return
	}
	booking.ReminderJobID = &jobID
}

func (s *Service) cancelReminder(ctx context.Context, booking *model.Booking) {
	if s.reminders == nil || booking.ReminderJobID == nil {
		return
	}
	if err := s.reminders.Cancel(ctx, *booking.ReminderJobID); err != nil {
		s.logger.Error(err, "failed to cancel booking reminder", "booking_id", booking.ID.String())
	}
	booking.ReminderJobID = nil
}

// emit records the event in the outbox. Failures are logged; the booking
// change itself already committed.
func (s *Service) emit(ctx context.Context, eventType string, booking *model.Booking) {
	if s.events == nil {
		return
	}
	if err := s.events.EmitBooking(ctx, eventType, booking); err != nil {
		s.logger.Error(err, "failed to emit booking event",
			"booking_id", booking.ID.String(), "event_type", eventType)
	}
}
