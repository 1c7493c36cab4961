package draft

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fieldserve/booking-api/internal/model"
	"github.com/fieldserve/booking-api/internal/repository"
	"github.com/fieldserve/booking-api/internal/service/assignment"
	"github.com/fieldserve/booking-api/internal/service/availability"
	"github.com/fieldserve/booking-api/internal/service/booking"
	"github.com/fieldserve/booking-api/internal/service/catalog"
	apperrors "github.com/fieldserve/booking-api/pkg/errors"
	"github.com/fieldserve/booking-api/pkg/logger"
	"github.com/fieldserve/booking-api/pkg/metrics"
)

// Config tunes the draft pipeline.
type Config struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// Service runs the multi-step booking wizard. Drafts accumulate intent
// across steps and become durable bookings only at confirm time, where
// every earlier decision is re-validated.
type Service struct {
	cfg          Config
	drafts       repository.DraftRepository
	users        repository.UserRepository
	catalog      *catalog.Service
	assignment   *assignment.Service
	availability *availability.Service
	bookings     *booking.Service
	metrics      *metrics.Metrics
	logger       *logger.Logger
	now          func() time.Time
}

func NewService(
	cfg Config,
	drafts repository.DraftRepository,
	users repository.UserRepository,
	catalog *catalog.Service,
	assignment *assignment.Service,
	availability *availability.Service,
	bookings *booking.Service,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = model.DraftTTL
	}
	return &Service{
		cfg:          cfg,
		drafts:       drafts,
		users:        users,
		catalog:      catalog,
		assignment:   assignment,
		availability: availability,
		bookings:     bookings,
		metrics:      metrics,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Start opens a draft for the requested service issue. Guests start drafts
// with just a name and email; nothing is reserved yet.
func (s *Service) Start(ctx context.Context, req *model.StartDraftRequest) (*model.BookingDraft, error) {
	issue, err := s.catalog.GetIssue(ctx, req.IssueID)
	if err != nil {
		return nil, apperrors.NotFound("service issue", err)
	}

	categoryID := issue.CategoryID
	if req.CategoryID != nil && *req.CategoryID != categoryID {
		return nil, apperrors.BadRequest("service issue does not belong to the selected category", nil)
	}

	if req.UserID == nil {
		if req.GuestName == "" || req.GuestEmail == "" {
			return nil, apperrors.BadRequest("guest drafts require a name and email", nil)
		}
	} else if req.GuestName == "" || req.GuestEmail == "" {
		// Registered callers can omit contact details; fill them in from
		// the account so the booking snapshot is complete either way.
		user, err := s.users.Get(ctx, *req.UserID)
		if err != nil {
			return nil, apperrors.NotFound("user", err)
		}
		if req.GuestName == "" {
			req.GuestName = user.Name
		}
		if req.GuestEmail == "" {
			req.GuestEmail = user.Email
		}
		if req.GuestPhone == "" {
			req.GuestPhone = user.Phone
		}
	}

	lines := req.Items
	if len(lines) == 0 {
		lines = []model.StartDraftItem{{IssueID: req.IssueID, Quantity: 1}}
	}

	items := make([]model.DraftItem, 0, len(lines))
	estimatedMinutes := 0
	for _, line := range lines {
		lineIssue := issue
		if line.IssueID != issue.ID {
			lineIssue, err = s.catalog.GetIssue(ctx, line.IssueID)
			if err != nil {
				return nil, apperrors.NotFound("service issue", err)
			}
			if lineIssue.CategoryID != categoryID {
				return nil, apperrors.BadRequest("all items must belong to the same service category", nil)
			}
		}
		// Issues without a catalog estimate still take up time; each
		// line falls back to the default on its own.
		lineMinutes := lineIssue.EstimatedMinutes
		if lineMinutes <= 0 {
			lineMinutes = availability.DefaultDurationMinutes
		}
		items = append(items, model.DraftItem{
			IssueID:           lineIssue.ID,
			Quantity:          line.Quantity,
			UnitPriceOverride: line.UnitPriceOverride,
			DurationMinutes:   lineMinutes,
		})
		estimatedMinutes += lineMinutes * line.Quantity
	}
	if estimatedMinutes <= 0 {
		estimatedMinutes = availability.DefaultDurationMinutes
	}

	now := s.now()
	draft := &model.BookingDraft{
		ID:               uuid.New(),
		UserID:           req.UserID,
		GuestName:        req.GuestName,
		GuestEmail:       strings.ToLower(strings.TrimSpace(req.GuestEmail)),
		GuestPhone:       req.GuestPhone,
		CategoryID:       &categoryID,
		IssueID:          &req.IssueID,
		Items:            items,
		EstimatedMinutes: estimatedMinutes,
		PaymentMethod:    req.PaymentMethod,
		Notes:            req.Notes,
		Status:           model.DraftStatusPending,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.cfg.TTL),
	}

	if err := s.drafts.Create(ctx, draft); err != nil {
		return nil, err
	}

	s.logger.Info("booking draft started",
		"draft_id", draft.ID.String(), "issue_id", req.IssueID.String())
	return draft, nil
}

// Get returns a draft, expired or not; expiry only blocks confirm.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.BookingDraft, error) {
	draft, err := s.drafts.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NotFound("draft", err)
	}
	return draft, nil
}

func (s *Service) getMutable(ctx context.Context, id uuid.UUID) (*model.BookingDraft, error) {
	draft, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if draft.Status != model.DraftStatusPending {
		return nil, apperrors.Conflict("submitted drafts cannot be modified", nil)
	}
	return draft, nil
}

// UpdateAddress records where the visit happens.
func (s *Service) UpdateAddress(ctx context.Context, id uuid.UUID, req *model.UpdateAddressRequest) (*model.BookingDraft, error) {
	draft, err := s.getMutable(ctx, id)
	if err != nil {
		return nil, err
	}

	draft.Address = model.Address{
		Line1:      strings.TrimSpace(req.Line1),
		Line2:      trimOptional(req.Line2),
		City:       strings.TrimSpace(req.City),
		State:      trimOptional(req.State),
		PostalCode: strings.TrimSpace(req.PostalCode),
		Country:    strings.TrimSpace(req.Country),
		Notes:      trimOptional(req.Notes),
	}
	if err := s.drafts.Update(ctx, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// SelectSlot picks the visit window. Without an explicit technician the
// best available one is auto-assigned; an explicitly chosen technician is
// checked but never swapped for another.
func (s *Service) SelectSlot(ctx context.Context, id uuid.UUID, req *model.SelectSlotRequest) (*model.BookingDraft, error) {
	draft, err := s.getMutable(ctx, id)
	if err != nil {
		return nil, err
	}
	if draft.IssueID == nil || draft.CategoryID == nil {
		return nil, apperrors.BadRequest("draft has no service selected", nil)
	}

	start := req.StartTime.UTC()
	if !start.After(s.now()) {
		return nil, apperrors.BadRequest("start time must be in the future", nil)
	}
	if req.EndTime != nil && !req.EndTime.After(start) {
		return nil, apperrors.BadRequest("end time must be after start time", nil)
	}

	// The draft's own estimate wins; an explicit duration or end time only
	// fills in when the draft has none.
	durationMinutes := draft.EstimatedMinutes
	if durationMinutes <= 0 {
		durationMinutes = req.DurationMinutes
	}
	if durationMinutes <= 0 && req.EndTime != nil {
		durationMinutes = int(req.EndTime.UTC().Sub(start) / time.Minute)
	}
	if durationMinutes <= 0 {
		durationMinutes = availability.DefaultDurationMinutes
	}
	end := start.Add(time.Duration(durationMinutes) * time.Minute)

	if req.TechnicianID != nil {
		free, err := s.availability.IsIntervalFree(ctx, *req.TechnicianID, start, end, nil)
		if err != nil {
			return nil, err
		}
		if !free {
			return nil, apperrors.Conflict("the selected technician is not available for this time", nil)
		}
		slot, err := s.availability.FindCoveringSlot(ctx, *req.TechnicianID, start, end)
		if err != nil {
			return nil, err
		}
		draft.TechnicianID = req.TechnicianID
		if slot != nil {
			slotID := slot.ID
			draft.SlotID = &slotID
		}
	} else {
		assigned, err := s.assignment.FindBest(ctx, *draft.CategoryID, *draft.IssueID, start, durationMinutes)
		if err != nil {
			return nil, err
		}
		if assigned == nil {
			return nil, apperrors.Conflict("no technicians are available for this time", nil)
		}
		draft.TechnicianID = &assigned.TechnicianID
		draft.SlotID = assigned.SlotID
	}

	draft.ScheduledStart = &start
	draft.ScheduledEnd = &end
	if err := s.drafts.Update(ctx, draft); err != nil {
		return nil, err
	}

	s.logger.Info("draft slot selected",
		"draft_id", draft.ID.String(), "technician_id", draft.TechnicianID.String(), "start", start)
	return draft, nil
}

// Confirm turns the draft into a durable booking. Expiry, completeness,
// and availability are all re-checked here; a guest whose email turns out
// to belong to a registered account has the draft parked as submitted
// until they sign in and retry.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID, req *model.ConfirmDraftRequest) (*model.Booking, error) {
	draft, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if draft.Expired(s.now()) {
		s.countConfirm("expired")
		return nil, apperrors.Conflict("draft has expired, please start over", nil)
	}
	if draft.Status == model.DraftStatusSubmitted && req.UserID == nil {
		s.countConfirm("requires_login")
		return nil, apperrors.Conflict("this draft requires signing in to complete", nil)
	}
	if draft.IssueID == nil || draft.CategoryID == nil || draft.TechnicianID == nil ||
		draft.ScheduledStart == nil || draft.ScheduledEnd == nil || len(draft.Items) == 0 {
		s.countConfirm("incomplete")
		return nil, apperrors.BadRequest("draft is missing a service or time selection", nil)
	}
	if !draft.ScheduledEnd.After(*draft.ScheduledStart) {
		s.countConfirm("incomplete")
		return nil, apperrors.BadRequest("draft has an invalid time window", nil)
	}
	if !draft.Address.Complete() {
		s.countConfirm("incomplete")
		return nil, apperrors.BadRequest("draft is missing a complete address", nil)
	}

	userID := draft.UserID
	if req.UserID != nil {
		userID = req.UserID
	}
	paymentMethod := draft.PaymentMethod
	if req.PaymentMethod != "" {
		paymentMethod = req.PaymentMethod
	}

	items := make([]model.CreateBookingItem, 0, len(draft.Items))
	for _, line := range draft.Items {
		items = append(items, model.CreateBookingItem{
			IssueID:           line.IssueID,
			Quantity:          line.Quantity,
			UnitPriceOverride: line.UnitPriceOverride,
		})
	}

	created, err := s.bookings.Create(ctx, &model.CreateBookingRequest{
		UserID:         userID,
		GuestName:      draft.GuestName,
		GuestEmail:     draft.GuestEmail,
		GuestPhone:     draft.GuestPhone,
		TechnicianID:   *draft.TechnicianID,
		CategoryID:     *draft.CategoryID,
		IssueID:        *draft.IssueID,
		Items:          items,
		ScheduledStart: *draft.ScheduledStart,
		ScheduledEnd:   *draft.ScheduledEnd,
		Address:        draft.Address,
		Notes:          draft.Notes,
		PaymentMethod:  paymentMethod,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		var accountExists *booking.AccountExistsError
		if errors.As(err, &accountExists) && draft.Status == model.DraftStatusPending {
			draft.Status = model.DraftStatusSubmitted
			if updateErr := s.drafts.Update(ctx, draft); updateErr != nil {
				s.logger.Error(updateErr, "failed to park draft as submitted", "draft_id", draft.ID.String())
			}
			s.countConfirm("requires_login")
			return nil, err
		}
		if apperrors.IsConflict(err) {
			s.countConfirm("conflict")
		} else {
			s.countConfirm("error")
		}
		return nil, err
	}

	if err := s.drafts.Delete(ctx, draft.ID); err != nil {
		s.logger.Error(err, "failed to delete confirmed draft", "draft_id", draft.ID.String())
	}
	s.countConfirm("confirmed")

	s.logger.Info("draft confirmed",
		"draft_id", draft.ID.String(), "booking_id", created.ID.String())
	return created, nil
}

// trimOptional trims an optional field, collapsing blanks to nil.
func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func (s *Service) countConfirm(result string) {
	if s.metrics != nil {
		s.metrics.DraftConfirmResults.WithLabelValues(result).Inc()
	}
}
