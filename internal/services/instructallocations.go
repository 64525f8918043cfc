package services

import (
	"context"
	"fmt"

	"github.com/calcfunding/publishing-backend/internal/clients/jobsapi"
	"github.com/calcfunding/publishing-backend/internal/platform/logger"
	"github.com/calcfunding/publishing-backend/internal/types"
)

// InstructionAllocationJobCreation queues the calculation run that follows a
// template or calculation change.
type InstructionAllocationJobCreation interface {
	SendInstructAllocationsToJobService(ctx context.Context, specificationID, userID, userName, correlationID string, trigger *types.Trigger) error
}

type instructionAllocationJobCreation struct {
	log  *logger.Logger
	jobs jobsapi.Client
}

func NewInstructionAllocationJobCreation(baseLog *logger.Logger, jobs jobsapi.Client) InstructionAllocationJobCreation {
	return &instructionAllocationJobCreation{
		log:  baseLog.With("service", "InstructionAllocationJobCreation"),
		jobs: jobs,
	}
}

func (s *instructionAllocationJobCreation) SendInstructAllocationsToJobService(ctx context.Context, specificationID, userID, userName, correlationID string, trigger *types.Trigger) error {
	job := &types.JobCreateModel{
		JobDefinitionID:        types.JobDefinitionCreateInstructAllocation,
		SpecificationID:        specificationID,
		InvokerUserID:          userID,
		InvokerUserDisplayName: userName,
		CorrelationID:          correlationID,
		Trigger:                trigger,
		Properties: map[string]string{
			types.PropertySpecificationID: specificationID,
		},
	}
	created, err := s.jobs.CreateJob(ctx, job)
	if err != nil {
		return fmt.Errorf("failed to create instruct allocations job for specification id '%s': %w", specificationID, err)
	}
	s.log.Info("Instruct allocations job created", "job_id", created.ID, "specification_id", specificationID)
	return nil
}
