package publishing

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/calcfunding/publishing-backend/internal/clients/jobsapi"
	"github.com/calcfunding/publishing-backend/internal/clients/policies"
	"github.com/calcfunding/publishing-backend/internal/clients/profiling"
	"github.com/calcfunding/publishing-backend/internal/platform/logger"
	"github.com/calcfunding/publishing-backend/internal/repos"
	"github.com/calcfunding/publishing-backend/internal/services"
	"github.com/calcfunding/publishing-backend/internal/types"
)

const errSpecificationMustBeApproved = "Specification must be approved."

// PrerequisiteChecker validates a specification's readiness for a publication
// action. Returned errors are non-retriable: they describe data or
// configuration problems a retry cannot fix.
type PrerequisiteChecker interface {
	PerformChecks(ctx context.Context, specification *types.SpecificationSummary, jobID string) error
}

// JobsRunningChecker reports which of the given job definitions currently
// have an in-flight job for the specification.
type JobsRunningChecker interface {
	GetJobTypesRunningForSpecification(ctx context.Context, specificationID string, jobDefinitionIDs []string) ([]string, error)
}

type jobsRunningChecker struct {
	jobs jobsapi.Client
}

func NewJobsRunningChecker(jobs jobsapi.Client) JobsRunningChecker {
	return &jobsRunningChecker{jobs: jobs}
}

func (c *jobsRunningChecker) GetJobTypesRunningForSpecification(ctx context.Context, specificationID string, jobDefinitionIDs []string) ([]string, error) {
	latest, err := c.jobs.GetLatestJobsForSpecification(ctx, specificationID, jobDefinitionIDs)
	if err != nil {
		return nil, err
	}
	var running []string
	for _, job := range latest {
		if job != nil && job.CompletionStatus == nil {
			running = append(running, job.JobDefinitionID)
		}
	}
	return running, nil
}

// prerequisiteCheckerBase holds the shared gate: no conflicting jobs may be
// running, and any domain-check failures are written to the job log before
// the whole set is raised as one non-retriable error.
type prerequisiteCheckerBase struct {
	log                *logger.Logger
	jobsRunning        JobsRunningChecker
	jobs               jobsapi.Client
	jobDefinitionsGate []string
}

func (b *prerequisiteCheckerBase) performChecks(
	ctx context.Context,
	specification *types.SpecificationSummary,
	jobID string,
	domainChecks func(ctx context.Context) []string,
) error {
	running, err := b.jobsRunning.GetJobTypesRunningForSpecification(ctx, specification.ID, b.jobDefinitionsGate)
	if err != nil {
		return err
	}
	var validationErrors []string
	if len(running) > 0 {
		validationErrors = []string{fmt.Sprintf("%s job is still running for specification with id: '%s'", strings.Join(running, ","), specification.ID)}
	} else {
		validationErrors = domainChecks(ctx)
	}
	if len(validationErrors) == 0 {
		return nil
	}
	joined := strings.Join(validationErrors, ", ")
	if jobID != "" {
		completed := false
		if _, logErr := b.jobs.AddJobLog(ctx, jobID, &types.JobLogUpdateModel{
			CompletedSuccessfully: &completed,
			Outcome:               joined,
		}); logErr != nil {
			b.log.Warn("Failed to add prerequisite failure job log", "job_id", jobID, "error", logErr)
		}
	}
	return types.NewNonRetriableError("Prerequisite checks failed for specification with id: '%s': %s", specification.ID, joined)
}

// RefreshPrerequisiteChecker validates a specification before a refresh run.
type RefreshPrerequisiteChecker struct {
	prerequisiteCheckerBase
	db              *gorm.DB
	specifications  repos.SpecificationsRepo
	scopedProviders services.ScopedProvidersService
	policies        policies.Client
	profiling       profiling.Client
	calculations    services.CalculationsService
}

func NewRefreshPrerequisiteChecker(
	db *gorm.DB,
	baseLog *logger.Logger,
	jobs jobsapi.Client,
	jobsRunning JobsRunningChecker,
	specifications repos.SpecificationsRepo,
	scopedProviders services.ScopedProvidersService,
	policiesClient policies.Client,
	profilingClient profiling.Client,
	calculations services.CalculationsService,
) *RefreshPrerequisiteChecker {
	return &RefreshPrerequisiteChecker{
		prerequisiteCheckerBase: prerequisiteCheckerBase{
			log:         baseLog.With("service", "RefreshPrerequisiteChecker"),
			jobsRunning: jobsRunning,
			jobs:        jobs,
			jobDefinitionsGate: []string{
				types.JobDefinitionRefreshFunding,
				types.JobDefinitionApproveFunding,
				types.JobDefinitionPublishProviderFunding,
			},
		},
		db:              db,
		specifications:  specifications,
		scopedProviders: scopedProviders,
		policies:        policiesClient,
		profiling:       profilingClient,
		calculations:    calculations,
	}
}

func (c *RefreshPrerequisiteChecker) PerformChecks(ctx context.Context, specification *types.SpecificationSummary, jobID string) error {
	if specification == nil {
		return types.NewMissingArgumentError("specification")
	}
	return c.performChecks(ctx, specification, jobID, func(ctx context.Context) []string {
		return c.domainChecks(ctx, specification)
	})
}

func (c *RefreshPrerequisiteChecker) domainChecks(ctx context.Context, specification *types.SpecificationSummary) []string {
	if specification.ApprovalStatus != types.PublicationStatusApproved {
		return []string{errSpecificationMustBeApproved}
	}

	providerCount, err := c.scopedProviders.EnsurePopulated(ctx, specification.ID)
	if err != nil {
		return []string{err.Error()}
	}
	if providerCount == 0 {
		return []string{fmt.Sprintf("Specification with id: '%s' has no scoped providers", specification.ID)}
	}

	chooseStatus, err := c.chooseStatus(ctx, specification)
	if err != nil {
		return []string{err.Error()}
	}
	if chooseStatus == types.SpecificationFundingStatusSharesAlreadyChosenFundingStream {
		return []string{fmt.Sprintf("Specification with id: '%s' shares a funding stream with another specification already chosen for funding", specification.ID)}
	}

	// Profiling coverage is checked per funding stream and fails on the
	// first stream lacking patterns rather than aggregating across streams.
	for _, fundingStream := range specification.FundingStreams {
		patterns, err := c.profiling.GetProfilePatternsForFundingStreamAndFundingPeriod(ctx, fundingStream.ID, specification.FundingPeriod.ID)
		if err != nil {
			return []string{err.Error()}
		}
		if len(patterns) > 0 {
			continue
		}
		codes, err := c.paymentFundingLineCodes(ctx, specification, fundingStream.ID)
		if err != nil {
			return []string{err.Error()}
		}
		return []string{fmt.Sprintf("Profiling configuration missing for funding lines: %s", strings.Join(codes, ", "))}
	}

	if chooseStatus == types.SpecificationFundingStatusCanChoose {
		if err := c.specifications.SelectSpecificationForFunding(ctx, nil, specification.ID); err != nil {
			return []string{err.Error()}
		}
	}

	return c.calculationApprovalErrors(ctx, specification)
}

// chooseStatus derives the funding-choose status from the other
// specifications in the same funding period.
func (c *RefreshPrerequisiteChecker) chooseStatus(ctx context.Context, specification *types.SpecificationSummary) (types.SpecificationFundingStatus, error) {
	if specification.IsSelectedForFunding {
		return types.SpecificationFundingStatusAlreadyChosen, nil
	}
	others, err := c.specifications.GetSpecificationsForFundingPeriod(ctx, nil, specification.FundingPeriod.ID)
	if err != nil {
		return "", err
	}
	streams := make(map[string]bool, len(specification.FundingStreams))
	for _, stream := range specification.FundingStreams {
		streams[stream.ID] = true
	}
	for _, other := range others {
		if other == nil || other.ID == specification.ID || !other.IsSelectedForFunding {
			continue
		}
		for _, stream := range other.FundingStreams {
			if streams[stream.ID] {
				return types.SpecificationFundingStatusSharesAlreadyChosenFundingStream, nil
			}
		}
	}
	return types.SpecificationFundingStatusCanChoose, nil
}

func (c *RefreshPrerequisiteChecker) paymentFundingLineCodes(ctx context.Context, specification *types.SpecificationSummary, fundingStreamID string) ([]string, error) {
	templateVersion := specification.TemplateVersionID(fundingStreamID)
	if templateVersion == "" {
		return nil, nil
	}
	contents, err := c.policies.GetFundingTemplateContents(ctx, fundingStreamID, templateVersion)
	if err != nil {
		return nil, err
	}
	if contents == nil {
		return nil, nil
	}
	return services.PaymentFundingLineCodes(contents), nil
}

func (c *RefreshPrerequisiteChecker) calculationApprovalErrors(ctx context.Context, specification *types.SpecificationSummary) []string {
	calculations, err := c.calculations.GetCalculationsBySpecificationID(ctx, specification.ID)
	if err != nil {
		return []string{err.Error()}
	}
	var errors []string
	for _, calculation := range calculations {
		if calculation == nil || calculation.Current == nil {
			continue
		}
		if calculation.Namespace != types.CalculationNamespaceTemplate {
			continue
		}
		if calculation.Current.PublishStatus != types.PublicationStatusApproved {
			errors = append(errors, fmt.Sprintf("Calculation with name: '%s' must be approved", calculation.Name()))
		}
	}
	return errors
}
