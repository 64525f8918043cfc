package publishing

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/gorm"

	"github.com/calcfunding/publishing-backend/internal/platform/logger"
	"github.com/calcfunding/publishing-backend/internal/types"
)

type fakePublishedProvidersRepo struct {
	providers       []*types.PublishedProvider
	createdVersions []*types.PublishedProviderVersion
	partitionKeys   []string
	upserted        [][]*types.PublishedProvider
	createErr       error
}

func (f *fakePublishedProvidersRepo) GetPublishedProvidersForSpecification(ctx context.Context, tx *gorm.DB, specificationID string) ([]*types.PublishedProvider, error) {
	return f.providers, nil
}

func (f *fakePublishedProvidersRepo) UpsertPublishedProviders(ctx context.Context, tx *gorm.DB, providers []*types.PublishedProvider) error {
	f.upserted = append(f.upserted, providers)
	return nil
}

func (f *fakePublishedProvidersRepo) CreateVersion(ctx context.Context, tx *gorm.DB, newVersion *types.PublishedProviderVersion, partitionKey string) (*types.PublishedProviderVersion, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.createdVersions = append(f.createdVersions, newVersion)
	f.partitionKeys = append(f.partitionKeys, partitionKey)
	return newVersion, nil
}

func publishedProviderAt(providerID string, status types.PublishedProviderStatus, version, major, minor int) *types.PublishedProvider {
	return &types.PublishedProvider{
		Current: &types.PublishedProviderVersion{
			ProviderID:      providerID,
			SpecificationID: "spec1",
			FundingStreamID: "PSG",
			FundingPeriodID: "AY-1920",
			Version:         version,
			MajorVersion:    major,
			MinorVersion:    minor,
			Status:          status,
		},
	}
}

func TestAssembleSkipsProvidersAlreadyAtTargetStatus(t *testing.T) {
	service := NewPublishedProviderVersioningService(nil, logger.NewNop(), &fakePublishedProvidersRepo{})
	author := types.Reference{ID: "user1", Name: "A User"}

	released := []*types.PublishedProvider{
		publishedProviderAt("p1", types.PublishedProviderStatusReleased, 3, 2, 0),
		publishedProviderAt("p2", types.PublishedProviderStatusReleased, 1, 1, 0),
	}
	requests := service.AssemblePublishedProviderCreateVersionRequests(released, author, types.PublishedProviderStatusReleased)
	if len(requests) != 0 {
		t.Fatalf("expected zero requests for providers already released, got %d", len(requests))
	}

	mixed := []*types.PublishedProvider{
		publishedProviderAt("p1", types.PublishedProviderStatusReleased, 3, 2, 0),
		publishedProviderAt("p2", types.PublishedProviderStatusApproved, 2, 1, 1),
		publishedProviderAt("p3", types.PublishedProviderStatusUpdated, 5, 1, 4),
	}
	requests = service.AssemblePublishedProviderCreateVersionRequests(mixed, author, types.PublishedProviderStatusReleased)
	if len(requests) != 2 {
		t.Fatalf("expected requests only for non-released providers, got %d", len(requests))
	}
	for _, request := range requests {
		if request.PublishedProvider.Status() == types.PublishedProviderStatusReleased {
			t.Fatalf("released provider must not receive a request")
		}
	}
}

func TestAssembleAlwaysVersionsForDraftTarget(t *testing.T) {
	service := NewPublishedProviderVersioningService(nil, logger.NewNop(), &fakePublishedProvidersRepo{})

	providers := []*types.PublishedProvider{
		publishedProviderAt("p1", types.PublishedProviderStatusDraft, 1, 0, 1),
	}
	requests := service.AssemblePublishedProviderCreateVersionRequests(providers, types.Reference{}, types.PublishedProviderStatusDraft)
	if len(requests) != 1 {
		t.Fatalf("draft target must version a draft provider, got %d requests", len(requests))
	}
}

func TestAssembleReleasedBumpsMajorAndResetsMinor(t *testing.T) {
	service := NewPublishedProviderVersioningService(nil, logger.NewNop(), &fakePublishedProvidersRepo{})
	author := types.Reference{ID: "user1"}

	providers := []*types.PublishedProvider{
		publishedProviderAt("p1", types.PublishedProviderStatusApproved, 4, 2, 3),
	}
	requests := service.AssemblePublishedProviderCreateVersionRequests(providers, author, types.PublishedProviderStatusReleased)
	if len(requests) != 1 {
		t.Fatalf("expected one request, got %d", len(requests))
	}
	next := requests[0].NewVersion
	if next.Version != 5 {
		t.Fatalf("version = %d, want 5", next.Version)
	}
	if next.MajorVersion != 3 || next.MinorVersion != 0 {
		t.Fatalf("major/minor = %d/%d, want 3/0", next.MajorVersion, next.MinorVersion)
	}
	if next.Status != types.PublishedProviderStatusReleased {
		t.Fatalf("status = %s", next.Status)
	}
	if next.PublishStatus != types.PublicationStatusApproved {
		t.Fatalf("released versions publish as Approved, got %s", next.PublishStatus)
	}
	if next.Author != author {
		t.Fatalf("author not stamped")
	}
	if providers[0].Current.Version != 4 {
		t.Fatalf("existing version must not be mutated")
	}
}

func TestAssembleNonReleasedBumpsMinorOnly(t *testing.T) {
	service := NewPublishedProviderVersioningService(nil, logger.NewNop(), &fakePublishedProvidersRepo{})

	providers := []*types.PublishedProvider{
		publishedProviderAt("p1", types.PublishedProviderStatusDraft, 1, 0, 1),
	}
	requests := service.AssemblePublishedProviderCreateVersionRequests(providers, types.Reference{}, types.PublishedProviderStatusUpdated)
	next := requests[0].NewVersion
	if next.MajorVersion != 0 || next.MinorVersion != 2 {
		t.Fatalf("major/minor = %d/%d, want 0/2", next.MajorVersion, next.MinorVersion)
	}
	if next.PublishStatus != types.PublicationStatus("Updated") {
		t.Fatalf("publish status = %s, want Updated", next.PublishStatus)
	}
}

func TestCreateVersionsUsesCurrentPartitionKeyAndAdvancesCurrent(t *testing.T) {
	repo := &fakePublishedProvidersRepo{}
	service := NewPublishedProviderVersioningService(nil, logger.NewNop(), repo)

	provider := publishedProviderAt("p1", types.PublishedProviderStatusApproved, 1, 1, 0)
	expectedPartition := provider.PartitionKey()
	requests := service.AssemblePublishedProviderCreateVersionRequests(
		[]*types.PublishedProvider{provider}, types.Reference{}, types.PublishedProviderStatusReleased)

	updated, err := service.CreateVersions(context.Background(), requests)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updated) != 1 {
		t.Fatalf("expected one updated provider, got %d", len(updated))
	}
	if repo.partitionKeys[0] != expectedPartition {
		t.Fatalf("partition key = %q, want %q", repo.partitionKeys[0], expectedPartition)
	}
	if provider.Current.Version != 2 {
		t.Fatalf("current version must advance to the created version")
	}
}

func TestCreateVersionsFailsWholeBatchOnRepoError(t *testing.T) {
	repo := &fakePublishedProvidersRepo{createErr: fmt.Errorf("write conflict")}
	service := NewPublishedProviderVersioningService(nil, logger.NewNop(), repo)

	provider := publishedProviderAt("p1", types.PublishedProviderStatusApproved, 1, 1, 0)
	requests := service.AssemblePublishedProviderCreateVersionRequests(
		[]*types.PublishedProvider{provider}, types.Reference{}, types.PublishedProviderStatusReleased)

	if _, err := service.CreateVersions(context.Background(), requests); err == nil {
		t.Fatalf("expected repo error to propagate")
	}
}

func TestSaveVersionsBulkPersists(t *testing.T) {
	repo := &fakePublishedProvidersRepo{}
	service := NewPublishedProviderVersioningService(nil, logger.NewNop(), repo)

	providers := []*types.PublishedProvider{
		publishedProviderAt("p1", types.PublishedProviderStatusReleased, 2, 2, 0),
	}
	if err := service.SaveVersions(context.Background(), providers); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.upserted) != 1 || len(repo.upserted[0]) != 1 {
		t.Fatalf("expected one bulk upsert of one provider")
	}

	if err := service.SaveVersions(context.Background(), nil); err != nil {
		t.Fatalf("empty save must be a no-op, got %v", err)
	}
	if len(repo.upserted) != 1 {
		t.Fatalf("empty save must not hit the repo")
	}
}
