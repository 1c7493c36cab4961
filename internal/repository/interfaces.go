package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fieldserve/booking-api/internal/model"
)

// Narrow, purpose-specific repository interfaces. Each component depends
// only on the queries it needs; persistence concerns stay out of the
// scheduling logic.
type (
	// DraftRepository stores ephemeral booking drafts. Expired drafts are
	// not swept here; expiry is checked lazily at confirm time.
	DraftRepository interface {
		Create(ctx context.Context, draft *model.BookingDraft) error
		Get(ctx context.Context, id uuid.UUID) (*model.BookingDraft, error)
		Update(ctx context.Context, draft *model.BookingDraft) error
		Delete(ctx context.Context, id uuid.UUID) error
	}

	// BookingRepository stores durable bookings and answers the overlap
	// and load queries the scheduling components need. Soft-deleted rows
	// are excluded explicitly in every read.
	BookingRepository interface {
		Create(ctx context.Context, booking *model.Booking) error
		Get(ctx context.Context, id uuid.UUID) (*model.Booking, error)
		Update(ctx context.Context, booking *model.Booking) error
		List(ctx context.Context, filters *model.BookingFilters) ([]*model.Booking, error)
		// GetByIdempotencyKey returns (nil, nil) when no booking matches.
		// For registered owners the key is scoped to the user id; for
		// guests it is scoped to the customer email.
		GetByIdempotencyKey(ctx context.Context, userID *uuid.UUID, customerEmail, key string) (*model.Booking, error)
		// HasOverlap reports whether any non-cancelled booking for the
		// technician intersects [start, end) under strict half-open overlap.
		// A non-nil excludeBookingID is left out of the check so a
		// reschedule does not collide with itself.
		HasOverlap(ctx context.Context, technicianID uuid.UUID, start, end time.Time, excludeBookingID *uuid.UUID) (bool, error)
		// CountForTechnicianBetween counts non-cancelled bookings whose
		// start falls in [from, to), used for load balancing.
		CountForTechnicianBetween(ctx context.Context, technicianID uuid.UUID, from, to time.Time) (int, error)
	}

	// SlotRepository answers slot and unavailability queries.
	SlotRepository interface {
		// ListBetween returns slots intersecting [from, to), ordered by start.
		ListBetween(ctx context.Context, technicianID uuid.UUID, from, to time.Time) ([]*model.TechnicianSlot, error)
		// FindCovering returns a slot fully containing [start, end), or
		// (nil, nil) when none exists.
		FindCovering(ctx context.Context, technicianID uuid.UUID, start, end time.Time) (*model.TechnicianSlot, error)
		HasUnavailabilityOverlap(ctx context.Context, technicianID uuid.UUID, start, end time.Time) (bool, error)
	}

	TechnicianRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Technician, error)
		ListActiveByCategory(ctx context.Context, categoryID uuid.UUID) ([]*model.Technician, error)
	}

	// CatalogRepository resolves service issues and categories, read-only.
	CatalogRepository interface {
		GetIssue(ctx context.Context, id uuid.UUID) (*model.ServiceIssue, error)
		GetCategory(ctx context.Context, id uuid.UUID) (*model.ServiceCategory, error)
	}

	UserRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		// GetByEmail returns (nil, nil) when no account exists.
		GetByEmail(ctx context.Context, email string) (*model.User, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error
	}
)
