package services

import (
	"context"
	"fmt"
	"time"

	"github.com/calcfunding/publishing-backend/internal/clients/cache"
	"github.com/calcfunding/publishing-backend/internal/clients/providers"
	"github.com/calcfunding/publishing-backend/internal/platform/logger"
	"github.com/calcfunding/publishing-backend/internal/types"
)

// ScopedProviderCacheKey is the redis list holding the provider summaries in
// scope for a specification.
func ScopedProviderCacheKey(specificationID string) string {
	return fmt.Sprintf("scoped-provider-summaries:%s", specificationID)
}

// ScopedProvidersService maintains the cached provider-summary list the
// allocation fan-out partitions over.
type ScopedProvidersService interface {
	// EnsurePopulated fills the cache list when absent and returns the
	// provider count either way.
	EnsurePopulated(ctx context.Context, specificationID string) (int64, error)
	PopulateProviderSummariesForSpecification(ctx context.Context, specificationID string) (int64, error)
	GetProviderSummariesPartition(ctx context.Context, specificationID string, offset, count int64) ([]types.ProviderSummary, error)
}

type scopedProvidersService struct {
	log       *logger.Logger
	cache     cache.Cache
	providers providers.Client
	ttl       time.Duration
}

func NewScopedProvidersService(baseLog *logger.Logger, cacheClient cache.Cache, providersClient providers.Client, ttl time.Duration) ScopedProvidersService {
	return &scopedProvidersService{
		log:       baseLog.With("service", "ScopedProvidersService"),
		cache:     cacheClient,
		providers: providersClient,
		ttl:       ttl,
	}
}

func (s *scopedProvidersService) EnsurePopulated(ctx context.Context, specificationID string) (int64, error) {
	key := ScopedProviderCacheKey(specificationID)
	exists, err := s.cache.KeyExists(ctx, key)
	if err != nil {
		return 0, err
	}
	if !exists {
		return s.PopulateProviderSummariesForSpecification(ctx, specificationID)
	}
	return s.cache.ListLength(ctx, key)
}

func (s *scopedProvidersService) PopulateProviderSummariesForSpecification(ctx context.Context, specificationID string) (int64, error) {
	summaries, err := s.providers.GetScopedProviderSummaries(ctx, specificationID)
	if err != nil {
		return 0, fmt.Errorf("fetch scoped providers for specification '%s': %w", specificationID, err)
	}
	key := ScopedProviderCacheKey(specificationID)
	if err := s.cache.Delete(ctx, key); err != nil {
		return 0, err
	}
	items := make([]interface{}, 0, len(summaries))
	for i := range summaries {
		items = append(items, summaries[i])
	}
	if err := s.cache.ListPushJSON(ctx, key, items, s.ttl); err != nil {
		return 0, err
	}
	s.log.Info("Populated scoped provider summaries", "specification_id", specificationID, "provider_count", len(summaries))
	return int64(len(summaries)), nil
}

func (s *scopedProvidersService) GetProviderSummariesPartition(ctx context.Context, specificationID string, offset, count int64) ([]types.ProviderSummary, error) {
	var out []types.ProviderSummary
	key := ScopedProviderCacheKey(specificationID)
	if err := s.cache.ListRangeJSON(ctx, key, offset, offset+count-1, &out); err != nil {
		return nil, err
	}
	return out, nil
}
