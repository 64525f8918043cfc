package publishing

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/calcfunding/publishing-backend/internal/clients/policies"
	"github.com/calcfunding/publishing-backend/internal/clients/queue"
	"github.com/calcfunding/publishing-backend/internal/clients/results"
	"github.com/calcfunding/publishing-backend/internal/clients/search"
	"github.com/calcfunding/publishing-backend/internal/platform/logger"
	"github.com/calcfunding/publishing-backend/internal/repos"
	"github.com/calcfunding/publishing-backend/internal/services"
	"github.com/calcfunding/publishing-backend/internal/types"
)

// TopicProviderProfilingRequests carries the profiling fetch requests fanned
// out per payment funding line batch during a publish run.
const TopicProviderProfilingRequests = "provider-profiling-requests"

// PublishService runs the full publication pipeline for a specification: per
// funding stream it verifies prerequisites, regenerates provider funding,
// groups it by organisation, detects changes against what is already
// published, releases provider versions and persists the new funding
// versions.
type PublishService interface {
	PublishProviderResults(ctx context.Context, message *types.QueueMessage) error
}

type publishService struct {
	db                 *gorm.DB
	log                *logger.Logger
	specifications     repos.SpecificationsRepo
	templateMappings   repos.TemplateMappingsRepo
	publishedProviders repos.PublishedProvidersRepo
	publishedFunding   repos.PublishedFundingRepo
	policies           policies.Client
	results            results.Client
	prerequisites      PrerequisiteChecker
	versioning         PublishedProviderVersioningService
	orgGroups          OrganisationGroupGenerator
	changeDetector     PublishedFundingChangeDetector
	fundingGenerator   PublishedFundingGenerator
	searchIndex        search.Index
	sender             queue.Sender
	jobTracker         services.JobTracker
	profilingBatchSize int
}

func NewPublishService(
	db *gorm.DB,
	baseLog *logger.Logger,
	specifications repos.SpecificationsRepo,
	templateMappings repos.TemplateMappingsRepo,
	publishedProviders repos.PublishedProvidersRepo,
	publishedFunding repos.PublishedFundingRepo,
	policiesClient policies.Client,
	resultsClient results.Client,
	prerequisites PrerequisiteChecker,
	versioning PublishedProviderVersioningService,
	orgGroups OrganisationGroupGenerator,
	changeDetector PublishedFundingChangeDetector,
	fundingGenerator PublishedFundingGenerator,
	searchIndex search.Index,
	sender queue.Sender,
	jobTracker services.JobTracker,
	profilingBatchSize int,
) PublishService {
	if profilingBatchSize <= 0 {
		profilingBatchSize = 100
	}
	return &publishService{
		db:                 db,
		log:                baseLog.With("service", "PublishService"),
		specifications:     specifications,
		templateMappings:   templateMappings,
		publishedProviders: publishedProviders,
		publishedFunding:   publishedFunding,
		policies:           policiesClient,
		results:            resultsClient,
		prerequisites:      prerequisites,
		versioning:         versioning,
		orgGroups:          orgGroups,
		changeDetector:     changeDetector,
		fundingGenerator:   fundingGenerator,
		searchIndex:        searchIndex,
		sender:             sender,
		jobTracker:         jobTracker,
		profilingBatchSize: profilingBatchSize,
	}
}

func (s *publishService) PublishProviderResults(ctx context.Context, message *types.QueueMessage) error {
	if message == nil {
		return types.NewNonRetriableError("A null message was provided to PublishProviderResults")
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

	started, err := s.jobTracker.TryStartTrackingJob(ctx, jobID, types.JobDefinitionPublishProviderFunding)
	if err != nil || !started {
		s.log.Error("Unable to start tracking publish job", "job_id", jobID, "error", err)
		return types.NewNonRetriableError("Job can not be run")
	}
	if err := s.jobTracker.UpdateJobStatus(ctx, jobID, 0, 0, nil, ""); err != nil {
		s.log.Warn("Failed to mark publish job as processing", "job_id", jobID, "error", err)
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

	existingFunding, err := s.publishedFunding.GetLatestPublishedFundingForSpecification(ctx, nil, specificationID)
	if err != nil {
		return err
	}
	publishedProviders, err := s.publishedProviders.GetPublishedProvidersForSpecification(ctx, nil, specificationID)
	if err != nil {
		return err
	}
	if len(publishedProviders) == 0 {
		return types.NewNonRetriableError("Could not find any published providers for specification id: '%s'", specificationID)
	}
	providersByID := make(map[string]*types.PublishedProvider, len(publishedProviders))
	for _, provider := range publishedProviders {
		if provider != nil && provider.Current != nil {
			providersByID[provider.Current.ProviderID] = provider
		}
	}

	providerResults, err := s.results.GetProviderResultsForSpecification(ctx, specificationID)
	if err != nil {
		return err
	}
	resultsByProvider := make(map[string]*types.ProviderResult, len(providerResults))
	for _, result := range providerResults {
		if result != nil {
			resultsByProvider[result.ProviderID] = result
		}
	}

	for _, fundingStream := range specification.FundingStreams {
		if err := s.publishFundingStream(ctx, specification, fundingStream, author, existingFunding, publishedProviders, providersByID, resultsByProvider); err != nil {
			return err
		}
	}

	completed := true
	if err := s.jobTracker.UpdateJobStatus(ctx, jobID, 0, 0, &completed, ""); err != nil {
		s.log.Warn("Failed to mark publish job as complete", "job_id", jobID, "error", err)
	}
	return nil
}

func (s *publishService) publishFundingStream(
	ctx context.Context,
	specification *types.SpecificationSummary,
	fundingStream types.Reference,
	author types.Reference,
	existingFunding []*types.PublishedFunding,
	publishedProviders []*types.PublishedProvider,
	providersByID map[string]*types.PublishedProvider,
	resultsByProvider map[string]*types.ProviderResult,
) error {
	templateVersion := specification.TemplateVersionID(fundingStream.ID)
	if templateVersion == "" {
		s.log.Info("Specification has no template version for funding stream, skipping stream",
			"specification_id", specification.ID, "funding_stream_id", fundingStream.ID)
		return nil
	}

	fundingPeriod, err := s.policies.GetFundingPeriodByID(ctx, specification.FundingPeriod.ID)
	if err != nil {
		return err
	}
	if fundingPeriod == nil {
		return types.NewNonRetriableError("Could not find funding period with id: '%s'", specification.FundingPeriod.ID)
	}

	fundingConfiguration, err := s.policies.GetFundingConfiguration(ctx, fundingStream.ID, fundingPeriod.ID)
	if err != nil {
		return err
	}
	if fundingConfiguration == nil {
		return types.NewNonRetriableError("Could not find funding configuration for funding stream id: '%s' and funding period id: '%s'", fundingStream.ID, fundingPeriod.ID)
	}

	templateContents, err := s.policies.GetFundingTemplateContents(ctx, fundingStream.ID, templateVersion)
	if err != nil {
		return err
	}
	if templateContents == nil {
		return types.NewNonRetriableError("Could not find template contents for funding stream id: '%s' and template version: '%s'", fundingStream.ID, templateVersion)
	}

	templateMapping, err := s.templateMappings.GetTemplateMapping(ctx, nil, specification.ID, fundingStream.ID)
	if err != nil {
		return err
	}
	if templateMapping == nil {
		return types.NewNonRetriableError("Could not find calculation mapping for specification id: '%s' and funding stream id: '%s'", specification.ID, fundingStream.ID)
	}

	// Regenerate each provider's funding lines from the latest calculation
	// results before anything downstream reads them.
	streamProviders := make([]types.ProviderSummary, 0, len(publishedProviders))
	for _, published := range publishedProviders {
		if published == nil || published.Current == nil || published.Current.FundingStreamID != fundingStream.ID {
			continue
		}
		fundingLines, totalFunding := GeneratePublishedProviderFundingLines(templateContents, resultsByProvider[published.Current.ProviderID])
		published.Current.FundingLines = fundingLines
		published.Current.TotalFunding = totalFunding
		if published.Current.Provider != nil {
			streamProviders = append(streamProviders, *published.Current.Provider)
		}
	}

	if err := s.sendProfilingRequests(ctx, specification, fundingStream.ID, fundingPeriod.ID, templateContents, streamProviders); err != nil {
		return err
	}

	organisationGroups, err := s.orgGroups.GenerateOrganisationGroups(ctx, fundingConfiguration, streamProviders)
	if err != nil {
		return err
	}

	changes := s.changeDetector.GenerateOrganisationGroupsToSave(
		fundingStream.ID, fundingPeriod.ID, organisationGroups, existingFunding, providersByID)
	if len(changes) == 0 {
		s.log.Info("No published funding changes detected for funding stream",
			"specification_id", specification.ID, "funding_stream_id", fundingStream.ID)
		return nil
	}

	// Release provider versions before the funding that references them is
	// written so the funding's provider list names versions that exist.
	var toRelease []*types.PublishedProvider
	for _, published := range publishedProviders {
		if published == nil || published.Current == nil || published.Current.FundingStreamID != fundingStream.ID {
			continue
		}
		if published.Status() != types.PublishedProviderStatusReleased {
			toRelease = append(toRelease, published)
		}
	}
	requests := s.versioning.AssemblePublishedProviderCreateVersionRequests(toRelease, author, types.PublishedProviderStatusReleased)
	released, err := s.versioning.CreateVersions(ctx, requests)
	if err != nil {
		return err
	}
	if err := s.versioning.SaveVersions(ctx, released); err != nil {
		return err
	}
	if err := s.indexProviders(ctx, specification.ID, released); err != nil {
		return err
	}

	fundingVersions := s.fundingGenerator.GeneratePublishedFunding(specification, fundingStream.ID, changes, providersByID, author)
	if err := s.publishedFunding.SavePublishedFundingVersions(ctx, nil, fundingVersions); err != nil {
		return err
	}
	funding := make([]*types.PublishedFunding, 0, len(fundingVersions))
	for _, version := range fundingVersions {
		funding = append(funding, &types.PublishedFunding{Current: version})
	}
	if err := s.publishedFunding.UpsertPublishedFunding(ctx, nil, funding); err != nil {
		return err
	}

	s.log.Info("Published funding saved for funding stream",
		"specification_id", specification.ID,
		"funding_stream_id", fundingStream.ID,
		"funding_version_count", len(fundingVersions),
		"released_provider_count", len(released))
	return nil
}

// sendProfilingRequests fans the payment funding lines out to the profiling
// queue in fixed-size batches of providers.
func (s *publishService) sendProfilingRequests(ctx context.Context, specification *types.SpecificationSummary, fundingStreamID, fundingPeriodID string, templateContents *types.TemplateMetadataContents, providers []types.ProviderSummary) error {
	paymentCodes := services.PaymentFundingLineCodes(templateContents)
	if len(paymentCodes) == 0 || len(providers) == 0 {
		return nil
	}
	for offset := 0; offset < len(providers); offset += s.profilingBatchSize {
		end := offset + s.profilingBatchSize
		if end > len(providers) {
			end = len(providers)
		}
		providerIDs := make([]string, 0, end-offset)
		for _, provider := range providers[offset:end] {
			providerIDs = append(providerIDs, provider.ID)
		}
		body := map[string]interface{}{
			"providerIds":      providerIDs,
			"fundingLineCodes": paymentCodes,
		}
		properties := map[string]string{
			types.PropertySpecificationID: specification.ID,
			types.PropertyFundingStreamID: fundingStreamID,
			"funding-period-id":           fundingPeriodID,
		}
		if err := s.sender.SendToQueue(ctx, TopicProviderProfilingRequests, body, properties); err != nil {
			return fmt.Errorf("send profiling request batch for specification '%s': %w", specification.ID, err)
		}
	}
	return nil
}

func (s *publishService) indexProviders(ctx context.Context, specificationID string, providers []*types.PublishedProvider) error {
	if len(providers) == 0 {
		return nil
	}
	documents := make([]search.ProviderIndexDocument, 0, len(providers))
	for _, provider := range providers {
		version := provider.Current
		if version == nil {
			continue
		}
		document := search.ProviderIndexDocument{
			ID:              version.FundingID(),
			ProviderID:      version.ProviderID,
			SpecificationID: specificationID,
			FundingStreamID: version.FundingStreamID,
			FundingPeriodID: version.FundingPeriodID,
			FundingStatus:   string(version.Status),
		}
		if version.Provider != nil {
			document.ProviderName = version.Provider.Name
			document.LocalAuthority = version.Provider.Authority
			document.ProviderType = version.Provider.ProviderType
			document.UKPRN = version.Provider.UKPRN
		}
		documents = append(documents, document)
	}
	return s.searchIndex.Index(ctx, documents)
}
