package publishing

import (
	"context"

	"gorm.io/gorm"

	"github.com/calcfunding/publishing-backend/internal/platform/logger"
	"github.com/calcfunding/publishing-backend/internal/repos"
	"github.com/calcfunding/publishing-backend/internal/services"
	"github.com/calcfunding/publishing-backend/internal/types"
)

// RefreshService bulk-transitions a specification's published providers to
// Updated after their underlying results changed, without generating new
// published funding.
type RefreshService interface {
	RefreshResults(ctx context.Context, message *types.QueueMessage) error
}

type refreshService struct {
	db                 *gorm.DB
	log                *logger.Logger
	specifications     repos.SpecificationsRepo
	publishedProviders repos.PublishedProvidersRepo
	prerequisites      PrerequisiteChecker
	versioning         PublishedProviderVersioningService
	jobTracker         services.JobTracker
}

func NewRefreshService(
	db *gorm.DB,
	baseLog *logger.Logger,
	specifications repos.SpecificationsRepo,
	publishedProviders repos.PublishedProvidersRepo,
	prerequisites PrerequisiteChecker,
	versioning PublishedProviderVersioningService,
	jobTracker services.JobTracker,
) RefreshService {
	return &refreshService{
		db:                 db,
		log:                baseLog.With("service", "RefreshService"),
		specifications:     specifications,
		publishedProviders: publishedProviders,
		prerequisites:      prerequisites,
		versioning:         versioning,
		jobTracker:         jobTracker,
	}
}

func (s *refreshService) RefreshResults(ctx context.Context, message *types.QueueMessage) error {
	if message == nil {
		return types.NewNonRetriableError("A null message was provided to RefreshResults")
	}
	specificationID := message.UserProperty(types.PropertySpecificationID)
	if specificationID == "" {
		return types.NewMissingArgumentError(types.PropertySpecificationID)
	}
	jobID := message.UserProperty(types.PropertyJobID)
	if jobID == "" {
		return types.NewMissingArgumentError(types.PropertyJobID)
	}
	author := types.Reference{
		ID:   message.UserProperty(types.PropertyUserID),
		Name: message.UserProperty(types.PropertyUserName),
	}

	started, err := s.jobTracker.TryStartTrackingJob(ctx, jobID, types.JobDefinitionRefreshFunding)
	if err != nil {
		return err
	}
	if !started {
		return types.NewNonRetriableError("Unable to start tracking job with job id: '%s'", jobID)
	}

	specification, err := s.specifications.GetSpecificationSummaryByID(ctx, nil, specificationID)
	if err != nil {
		return err
	}
	if specification == nil {
		return types.NewNonRetriableError("Could not find specification with id: '%s'", specificationID)
	}

	if err := s.prerequisites.PerformChecks(ctx, specification, jobID); err != nil {
		return err
	}

	publishedProviders, err := s.publishedProviders.GetPublishedProvidersForSpecification(ctx, nil, specificationID)
	if err != nil {
		return err
	}
	if len(publishedProviders) == 0 {
		s.log.Info("No published providers to refresh for specification", "specification_id", specificationID)
		return s.jobTracker.CompleteTrackingJob(ctx, jobID, "Completed Successfully", 0)
	}

	requests := s.versioning.AssemblePublishedProviderCreateVersionRequests(publishedProviders, author, types.PublishedProviderStatusUpdated)
	updated, err := s.versioning.CreateVersions(ctx, requests)
	if err != nil {
		return err
	}
	if err := s.versioning.SaveVersions(ctx, updated); err != nil {
		return err
	}

	s.log.Info("Refreshed published providers", "specification_id", specificationID, "updated_count", len(updated))
	return s.jobTracker.CompleteTrackingJob(ctx, jobID, "Completed Successfully", len(updated))
}
