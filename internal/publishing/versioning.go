package publishing

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/calcfunding/publishing-backend/internal/platform/logger"
	"github.com/calcfunding/publishing-backend/internal/repos"
	"github.com/calcfunding/publishing-backend/internal/types"
)

// PublishedProviderVersioningService creates and persists immutable
// published-provider versions governed by the status state machine.
type PublishedProviderVersioningService interface {
	AssemblePublishedProviderCreateVersionRequests(providers []*types.PublishedProvider, author types.Reference, targetStatus types.PublishedProviderStatus) []*types.PublishedProviderCreateVersionRequest
	CreateVersions(ctx context.Context, requests []*types.PublishedProviderCreateVersionRequest) ([]*types.PublishedProvider, error)
	SaveVersions(ctx context.Context, providers []*types.PublishedProvider) error
}

type publishedProviderVersioningService struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.PublishedProvidersRepo
}

func NewPublishedProviderVersioningService(db *gorm.DB, baseLog *logger.Logger, repo repos.PublishedProvidersRepo) PublishedProviderVersioningService {
	return &publishedProviderVersioningService{
		db:   db,
		log:  baseLog.With("service", "PublishedProviderVersioningService"),
		repo: repo,
	}
}

// AssemblePublishedProviderCreateVersionRequests clones each provider's
// current version into a proposed next version stamped with the author and
// target status. Providers already at the target status are skipped, except
// for Draft which always versions.
func (s *publishedProviderVersioningService) AssemblePublishedProviderCreateVersionRequests(providers []*types.PublishedProvider, author types.Reference, targetStatus types.PublishedProviderStatus) []*types.PublishedProviderCreateVersionRequest {
	requests := make([]*types.PublishedProviderCreateVersionRequest, 0, len(providers))
	now := time.Now()
	for _, provider := range providers {
		if provider == nil || provider.Current == nil {
			continue
		}
		if targetStatus != types.PublishedProviderStatusDraft && provider.Status() == targetStatus {
			continue
		}
		newVersion := cloneVersion(provider.Current)
		newVersion.Author = author
		newVersion.Status = targetStatus
		newVersion.PublishStatus = types.PublishStatusForProviderStatus(targetStatus)
		newVersion.Date = now
		newVersion.Version = provider.Current.Version + 1
		if targetStatus == types.PublishedProviderStatusReleased {
			newVersion.MajorVersion = provider.Current.MajorVersion + 1
			newVersion.MinorVersion = 0
		} else {
			newVersion.MinorVersion = provider.Current.MinorVersion + 1
		}
		requests = append(requests, &types.PublishedProviderCreateVersionRequest{
			PublishedProvider: provider,
			NewVersion:        newVersion,
		})
	}
	return requests
}

func (s *publishedProviderVersioningService) CreateVersions(ctx context.Context, requests []*types.PublishedProviderCreateVersionRequest) ([]*types.PublishedProvider, error) {
	providers := make([]*types.PublishedProvider, 0, len(requests))
	for _, request := range requests {
		if request == nil || request.PublishedProvider == nil || request.NewVersion == nil {
			continue
		}
		// First-ever version has no current version to take a partition from.
		partitionKey := ""
		if request.PublishedProvider.Current != nil {
			partitionKey = request.PublishedProvider.PartitionKey()
		}
		if _, err := s.repo.CreateVersion(ctx, nil, request.NewVersion, partitionKey); err != nil {
			s.log.Error("Failed to create version for published provider version id", "version_id", request.NewVersion.FundingID(), "error", err)
			return nil, err
		}
		request.PublishedProvider.Current = request.NewVersion
		providers = append(providers, request.PublishedProvider)
	}
	return providers, nil
}

func (s *publishedProviderVersioningService) SaveVersions(ctx context.Context, providers []*types.PublishedProvider) error {
	if len(providers) == 0 {
		return nil
	}
	if err := s.repo.UpsertPublishedProviders(ctx, nil, providers); err != nil {
		s.log.Error("Failed to save published provider versions", "error", err)
		return err
	}
	return nil
}

func cloneVersion(version *types.PublishedProviderVersion) *types.PublishedProviderVersion {
	clone := *version
	if version.Provider != nil {
		provider := *version.Provider
		clone.Provider = &provider
	}
	if version.FundingLines != nil {
		clone.FundingLines = append([]types.FundingLineValue(nil), version.FundingLines...)
	}
	if version.TotalFunding != nil {
		total := *version.TotalFunding
		clone.TotalFunding = &total
	}
	return &clone
}
