package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/calcfunding/publishing-backend/internal/platform/logger"
	"github.com/calcfunding/publishing-backend/internal/repos"
	"github.com/calcfunding/publishing-backend/internal/types"
)

const defaultCalculationSourceCode = "return 0"

// ApplyTemplateCalculationsService reconciles a funding template's
// calculation definitions against a specification's template mapping:
// mapping items without a calculation get a default one created, items whose
// calculation drifted from the template get edited, matching items are left
// alone. The mutated mapping is persisted and a calculation run instructed.
type ApplyTemplateCalculationsService interface {
	ApplyTemplateCalculation(ctx context.Context, message *types.QueueMessage) error
}

type applyTemplateCalculationsService struct {
	db                  *gorm.DB
	log                 *logger.Logger
	templateMappings    repos.TemplateMappingsRepo
	templateContents    TemplateContentsProvider
	calculations        CalculationsService
	jobTracker          JobTracker
	instructAllocations InstructionAllocationJobCreation
}

// TemplateContentsProvider is the slice of the policies API this service
// needs.
type TemplateContentsProvider interface {
	GetFundingTemplateContents(ctx context.Context, fundingStreamID, templateVersion string) (*types.TemplateMetadataContents, error)
}

func NewApplyTemplateCalculationsService(
	db *gorm.DB,
	baseLog *logger.Logger,
	templateMappings repos.TemplateMappingsRepo,
	templateContents TemplateContentsProvider,
	calculations CalculationsService,
	jobTracker JobTracker,
	instructAllocations InstructionAllocationJobCreation,
) ApplyTemplateCalculationsService {
	return &applyTemplateCalculationsService{
		db:                  db,
		log:                 baseLog.With("service", "ApplyTemplateCalculationsService"),
		templateMappings:    templateMappings,
		templateContents:    templateContents,
		calculations:        calculations,
		jobTracker:          jobTracker,
		instructAllocations: instructAllocations,
	}
}

func (s *applyTemplateCalculationsService) ApplyTemplateCalculation(ctx context.Context, message *types.QueueMessage) error {
	if message == nil {
		return types.NewNonRetriableError("A null message was provided to ApplyTemplateCalculation")
	}
	specificationID := message.UserProperty(types.PropertySpecificationID)
	if specificationID == "" {
		return types.NewMissingArgumentError(types.PropertySpecificationID)
	}
	fundingStreamID := message.UserProperty(types.PropertyFundingStreamID)
	if fundingStreamID == "" {
		return types.NewMissingArgumentError(types.PropertyFundingStreamID)
	}
	templateVersion := message.UserProperty(types.PropertyTemplateVersion)
	if templateVersion == "" {
		return types.NewMissingArgumentError(types.PropertyTemplateVersion)
	}
	userID := message.UserProperty(types.PropertyUserID)
	if userID == "" {
		return types.NewMissingArgumentError(types.PropertyUserID)
	}
	userName := message.UserProperty(types.PropertyUserName)
	if userName == "" {
		return types.NewMissingArgumentError(types.PropertyUserName)
	}
	correlationID := message.UserProperty(types.PropertyCorrelationID)
	if correlationID == "" {
		return types.NewMissingArgumentError(types.PropertyCorrelationID)
	}
	jobID := message.UserProperty(types.PropertyJobID)
	if jobID == "" {
		return types.NewMissingArgumentError(types.PropertyJobID)
	}

	author := types.Reference{ID: userID, Name: userName}

	started, err := s.jobTracker.TryStartTrackingJob(ctx, jobID, types.JobDefinitionApplyTemplateCalculations)
	if err != nil {
		return err
	}
	if !started {
		return types.NewNonRetriableError("Unable to start tracking job with job id: '%s'", jobID)
	}

	templateMapping, err := s.templateMappings.GetTemplateMapping(ctx, nil, specificationID, fundingStreamID)
	if err != nil {
		return err
	}
	if templateMapping == nil {
		return types.NewNonRetriableError("Could not locate template mapping for specification id %s and funding stream id %s", specificationID, fundingStreamID)
	}

	templateContents, err := s.templateContents.GetFundingTemplateContents(ctx, fundingStreamID, templateVersion)
	if err != nil {
		return err
	}
	if templateContents == nil {
		return types.NewNonRetriableError("Could not locate template contents for funding stream id %s and template version %s", fundingStreamID, templateVersion)
	}

	contentsQuery := NewTemplateContentsCalculationQuery(templateContents)

	existingCalculations, err := s.calculations.GetCalculationsBySpecificationID(ctx, specificationID)
	if err != nil {
		return err
	}
	calculationsByID := make(map[string]*types.Calculation, len(existingCalculations))
	for _, calculation := range existingCalculations {
		calculationsByID[calculation.ID] = calculation
	}

	itemCount := 0
	createdCount := 0
	updatedCount := 0

	for index := range templateMapping.TemplateMappingItems {
		mappingItem := &templateMapping.TemplateMappingItems[index]
		templateCalculation := contentsQuery.GetTemplateContentsForMappingItem(mappingItem)
		if templateCalculation == nil {
			// The template tree may legitimately omit removed calculations;
			// the item is left untouched and not counted as processed.
			continue
		}
		itemCount++
		valueType := types.ValueTypeFromTemplateFormat(templateCalculation.ValueFormat)

		if mappingItem.CalculationID == "" {
			createModel := &types.CalculationCreateModel{
				SpecificationID: specificationID,
				FundingStreamID: fundingStreamID,
				Name:            templateCalculation.Name,
				SourceCode:      defaultCalculationSourceCode,
				ValueType:       valueType,
			}
			created, err := s.calculations.CreateCalculation(ctx, createModel, author, correlationID)
			if err != nil || created == nil {
				s.log.Error("Failed to create default template calculation", "specification_id", specificationID, "template_calculation_id", templateCalculation.TemplateCalculationID, "error", err)
				return types.NewNonRetriableError("Unable to create new default template calculation for template mapping")
			}
			mappingItem.CalculationID = created.ID
			mappingItem.Name = created.Name()
			createdCount++
			continue
		}

		calculation, isMissing := calculationsByID[mappingItem.CalculationID], false
		if calculation == nil {
			calculation, err = s.calculations.GetCalculationByID(ctx, mappingItem.CalculationID)
			if err != nil {
				return err
			}
			isMissing = true
		}
		if calculation != nil &&
			calculation.Name() == templateCalculation.Name &&
			calculation.ValueType() == valueType {
			continue
		}
		edit := &types.CalculationEditModel{
			Name:      templateCalculation.Name,
			ValueType: valueType,
		}
		if _, err := s.calculations.EditCalculation(ctx, specificationID, mappingItem.CalculationID, edit, author, correlationID, isMissing); err != nil {
			return err
		}
		mappingItem.Name = templateCalculation.Name
		updatedCount++
	}

	progressDelta := createdCount + updatedCount - len(existingCalculations)
	if err := s.jobTracker.NotifyProgress(ctx, jobID, progressDelta); err != nil {
		s.log.Warn("Failed to notify job progress", "job_id", jobID, "error", err)
	}

	if err := s.templateMappings.UpdateTemplateMapping(ctx, nil, templateMapping); err != nil {
		return err
	}

	if err := s.jobTracker.CompleteTrackingJob(ctx, jobID, "Completed Successfully", itemCount); err != nil {
		s.log.Warn("Failed to complete job tracking", "job_id", jobID, "error", err)
	}

	trigger := &types.Trigger{
		Message:    "Assigned Template Calculations",
		EntityID:   specificationID,
		EntityType: "Specification",
	}
	return s.instructAllocations.SendInstructAllocationsToJobService(ctx, specificationID, userID, userName, correlationID, trigger)
}
