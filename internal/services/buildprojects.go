package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calcfunding/publishing-backend/internal/clients/jobsapi"
	"github.com/calcfunding/publishing-backend/internal/compiler"
	"github.com/calcfunding/publishing-backend/internal/platform/logger"
	"github.com/calcfunding/publishing-backend/internal/repos"
	"github.com/calcfunding/publishing-backend/internal/types"
)

// FeatureToggles gates optional build-project behaviour.
type FeatureToggles struct {
	IsJobServiceEnabled                         bool
	IsAllocationLineMajorMinorVersioningEnabled bool
}

// BuildProjectsService owns the build-project lifecycle: relationship
// updates, compilation, and the allocation-run fan-out over partitioned
// provider batches.
type BuildProjectsService interface {
	UpdateBuildProjectRelationships(ctx context.Context, message *types.QueueMessage) error
	CompileBuildProject(ctx context.Context, buildProject *types.BuildProject) error
	GetBuildProjectBySpecificationID(ctx context.Context, specificationID string) (*types.BuildProject, error)
	UpdateAllocations(ctx context.Context, message *types.QueueMessage) error
	UpdateDeadLetteredJobLog(ctx context.Context, message *types.QueueMessage)
}

type buildProjectsService struct {
	db              *gorm.DB
	log             *logger.Logger
	buildProjects   repos.BuildProjectsRepo
	specifications  repos.SpecificationsRepo
	calculations    CalculationsService
	compilerFactory compiler.Factory
	scopedProviders ScopedProvidersService
	jobs            jobsapi.Client
	toggles         FeatureToggles
	batchSize       int
}

func NewBuildProjectsService(
	db *gorm.DB,
	baseLog *logger.Logger,
	buildProjects repos.BuildProjectsRepo,
	specifications repos.SpecificationsRepo,
	calculations CalculationsService,
	compilerFactory compiler.Factory,
	scopedProviders ScopedProvidersService,
	jobs jobsapi.Client,
	toggles FeatureToggles,
	batchSize int,
) BuildProjectsService {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &buildProjectsService{
		db:              db,
		log:             baseLog.With("service", "BuildProjectsService"),
		buildProjects:   buildProjects,
		specifications:  specifications,
		calculations:    calculations,
		compilerFactory: compilerFactory,
		scopedProviders: scopedProviders,
		jobs:            jobs,
		toggles:         toggles,
		batchSize:       batchSize,
	}
}

func (s *buildProjectsService) UpdateBuildProjectRelationships(ctx context.Context, message *types.QueueMessage) error {
	if message == nil {
		return types.NewNonRetriableError("A null message was provided to UpdateBuildProjectRelationships")
	}
	specificationID := message.UserProperty(types.PropertySpecificationID)
	if specificationID == "" {
		return types.NewMissingArgumentError(types.PropertySpecificationID)
	}
	if len(message.Body) == 0 {
		return types.NewNonRetriableError("A null relationship message was provided to UpdateBuildProjectRelationships")
	}
	var relationship types.DatasetRelationshipSummary
	if err := json.Unmarshal(message.Body, &relationship); err != nil {
		return types.NewNonRetriableError("An invalid relationship message was provided to UpdateBuildProjectRelationships: %s", err)
	}

	buildProject, err := s.buildProjects.GetBuildProjectBySpecificationID(ctx, nil, specificationID)
	if err != nil {
		return err
	}
	freshlyCreated := false
	if buildProject == nil {
		specification, err := s.specifications.GetSpecificationSummaryByID(ctx, nil, specificationID)
		if err != nil {
			return err
		}
		if specification == nil {
			return types.NewNonRetriableError("Unable to find specification for specification id: '%s'", specificationID)
		}
		buildProject = &types.BuildProject{
			ID:              uuid.New().String(),
			SpecificationID: specificationID,
		}
		freshlyCreated = true
	}

	if buildProject.HasDatasetRelationship(relationship.Name) {
		s.log.Info("Dataset relationship already exists on build project",
			"specification_id", specificationID, "relationship_name", relationship.Name)
		return nil
	}
	buildProject.DatasetRelationships = append(buildProject.DatasetRelationships, relationship)

	if err := s.CompileBuildProject(ctx, buildProject); err != nil {
		return err
	}

	if freshlyCreated {
		if err := s.buildProjects.CreateBuildProject(ctx, nil, buildProject); err != nil {
			return types.NewNonRetriableError("Failed to create build project for specification id: '%s'", specificationID)
		}
		return nil
	}
	if err := s.buildProjects.UpdateBuildProject(ctx, nil, buildProject); err != nil {
		return types.NewNonRetriableError("Failed to update build project for specification id: '%s'", specificationID)
	}
	return nil
}

// CompileBuildProject regenerates source from the specification's current
// calculations and compiles it onto the build project. Bad source code
// surfaces as Build.Success=false, not an error.
func (s *buildProjectsService) CompileBuildProject(ctx context.Context, buildProject *types.BuildProject) error {
	if buildProject == nil {
		return types.NewNonRetriableError("A null build project was provided to CompileBuildProject")
	}
	calculations, err := s.calculations.GetCalculationsBySpecificationID(ctx, buildProject.SpecificationID)
	if err != nil {
		return err
	}
	sourceFiles := GenerateSourceFiles(buildProject.SpecificationID, calculations)
	build := s.compilerFactory.GetCompiler(sourceFiles).Compile()
	buildProject.Build = build
	if !build.Success {
		s.log.Warn("Build project compilation failed",
			"specification_id", buildProject.SpecificationID,
			"compiler_messages", build.CompilerMessages)
	}
	return nil
}

func (s *buildProjectsService) GetBuildProjectBySpecificationID(ctx context.Context, specificationID string) (*types.BuildProject, error) {
	return s.buildProjects.GetBuildProjectBySpecificationID(ctx, nil, specificationID)
}

func (s *buildProjectsService) UpdateAllocations(ctx context.Context, message *types.QueueMessage) error {
	if message == nil {
		return types.NewNonRetriableError("A null message was provided to UpdateAllocations")
	}
	specificationID := message.UserProperty(types.PropertySpecificationID)
	if specificationID == "" {
		return types.NewMissingArgumentError(types.PropertySpecificationID)
	}
	buildProject, err := s.buildProjects.GetBuildProjectBySpecificationID(ctx, nil, specificationID)
	if err != nil {
		return err
	}
	if buildProject == nil {
		return types.NewMissingArgumentError("buildProject")
	}

	providerCount, err := s.scopedProviders.EnsurePopulated(ctx, specificationID)
	if err != nil {
		return err
	}

	jobID := message.UserProperty(types.PropertyJobID)
	if !s.toggles.IsJobServiceEnabled || jobID == "" {
		s.log.Error("Job service is not enabled or job id is missing, no allocation jobs will be created",
			"specification_id", specificationID, "job_id", jobID)
		return nil
	}

	offsets := PartitionOffsets(providerCount, int64(s.batchSize))

	parentJob, err := s.jobs.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}
	if parentJob == nil {
		return types.NewNonRetriableError("Could not find the parent job with job id: '%s'", jobID)
	}
	if parentJob.CompletionStatus != nil {
		s.log.Info("Parent job is already in a completed state, no child jobs will be created",
			"job_id", parentJob.ID, "completion_status", *parentJob.CompletionStatus)
		return nil
	}

	childJobs := make([]*types.JobCreateModel, 0, len(offsets))
	for _, offset := range offsets {
		childJobs = append(childJobs, &types.JobCreateModel{
			JobDefinitionID:        childJobDefinitionFor(parentJob.JobDefinitionID),
			SpecificationID:        specificationID,
			ParentJobID:            parentJob.ID,
			InvokerUserID:          parentJob.InvokerUserID,
			InvokerUserDisplayName: parentJob.InvokerUserDisplayName,
			CorrelationID:          parentJob.CorrelationID,
			Trigger: &types.Trigger{
				Message:    fmt.Sprintf("Triggered by parent job with id: '%s", parentJob.ID),
				EntityID:   parentJob.ID,
				EntityType: "Job",
			},
			Properties: map[string]string{
				types.PropertySpecificationID: specificationID,
				types.PropertyPartitionIndex:  strconv.FormatInt(offset, 10),
			},
		})
	}

	created, err := s.jobs.CreateJobs(ctx, childJobs)
	if err != nil {
		return fmt.Errorf("failed to create child jobs for parent job '%s': %w", parentJob.ID, err)
	}
	if len(created) != len(childJobs) {
		outcome := fmt.Sprintf("Only %d child jobs from %d were created with parent id: '%s'", len(created), len(childJobs), parentJob.ID)
		s.log.Error(outcome)
		completed := false
		if _, logErr := s.jobs.AddJobLog(ctx, parentJob.ID, &types.JobLogUpdateModel{
			CompletedSuccessfully: &completed,
			Outcome:               outcome,
		}); logErr != nil {
			s.log.Error("Failed to add a job log for job id", "job_id", parentJob.ID, "error", logErr)
		}
		return types.NewNonRetriableError("Failed to create child jobs for parent job: '%s'", parentJob.ID)
	}

	s.log.Info("Child jobs created for parent job", "job_id", parentJob.ID, "child_count", len(created))
	if _, err := s.jobs.AddJobLog(ctx, parentJob.ID, &types.JobLogUpdateModel{
		Outcome: fmt.Sprintf("%d child jobs created with parent id: '%s'", len(created), parentJob.ID),
	}); err != nil {
		s.log.Warn("Failed to add success job log for parent job", "job_id", parentJob.ID, "error", err)
	}

	if s.toggles.IsAllocationLineMajorMinorVersioningEnabled {
		if err := s.specifications.UpdateCalculationLastUpdatedDate(ctx, nil, specificationID); err != nil {
			return err
		}
	}
	return nil
}

// UpdateDeadLetteredJobLog records a failure log against the job a
// dead-lettered message belonged to. This path runs during failure handling
// and never surfaces an error itself.
func (s *buildProjectsService) UpdateDeadLetteredJobLog(ctx context.Context, message *types.QueueMessage) {
	jobID := message.UserProperty(types.PropertyJobID)
	if jobID == "" {
		s.log.Error("Missing job id from dead lettered message")
		return
	}
	completed := false
	jobLog, err := s.jobs.AddJobLog(ctx, jobID, &types.JobLogUpdateModel{
		CompletedSuccessfully: &completed,
		Outcome:               "The job has exceeded its maximum retry count and failed to complete successfully",
	})
	if err != nil {
		s.log.Error(fmt.Sprintf("Failed to add a job log for job id '%s'", jobID), "error", err)
		return
	}
	s.log.Info("Job log added for dead lettered message", "job_id", jobID, "job_log_id", jobLog.ID)
}

// PartitionOffsets returns the starting offset of each provider batch:
// 9999 providers in batches of 1000 yields [0,1000,...,9000].
func PartitionOffsets(total, batchSize int64) []int64 {
	if total <= 0 || batchSize <= 0 {
		return nil
	}
	batchCount := (total + batchSize - 1) / batchSize
	offsets := make([]int64, 0, batchCount)
	for i := int64(0); i < batchCount; i++ {
		offsets = append(offsets, i*batchSize)
	}
	return offsets
}

func childJobDefinitionFor(parentJobDefinitionID string) string {
	if parentJobDefinitionID == types.JobDefinitionGenerateCalculationAggregations {
		return "CreateGenerateAllocationsAggregationsJob"
	}
	return "CreateAllocationJob"
}
