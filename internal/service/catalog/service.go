package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/fieldserve/booking-api/internal/model"
	"github.com/fieldserve/booking-api/internal/repository"
)

const (
	cacheTTL      = 5 * time.Minute
	cacheInterval = 10 * time.Minute
)

// Service resolves catalog entries with a short in-process cache. The
// catalog changes rarely and every draft step and booking creation reads
// it, so a few minutes of staleness is an acceptable trade. Booking
// snapshots make stale prices harmless after creation anyway.
type Service struct {
	repo  repository.CatalogRepository
	cache *cache.Cache
}

func NewService(repo repository.CatalogRepository) *Service {
	return &Service{
		repo:  repo,
		cache: cache.New(cacheTTL, cacheInterval),
	}
}

func issueKey(id uuid.UUID) string    { return "issue:" + id.String() }
func categoryKey(id uuid.UUID) string { return "category:" + id.String() }

// GetIssue returns the service issue, from cache when fresh.
func (s *Service) GetIssue(ctx context.Context, id uuid.UUID) (*model.ServiceIssue, error) {
	if cached, ok := s.cache.Get(issueKey(id)); ok {
		return cached.(*model.ServiceIssue), nil
	}

	issue, err := s.repo.GetIssue(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve service issue: %w", err)
	}
	s.cache.Set(issueKey(id), issue, cache.DefaultExpiration)
	return issue, nil
}

// GetCategory returns the service category, from cache when fresh.
func (s *Service) GetCategory(ctx context.Context, id uuid.UUID) (*model.ServiceCategory, error) {
	if cached, ok := s.cache.Get(categoryKey(id)); ok {
		return cached.(*model.ServiceCategory), nil
	}

	category, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve service category: %w", err)
	}
	s.cache.Set(categoryKey(id), category, cache.DefaultExpiration)
	return category, nil
}
