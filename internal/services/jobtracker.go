package services

import (
	"context"
	"fmt"

	"github.com/calcfunding/publishing-backend/internal/clients/jobsapi"
	"github.com/calcfunding/publishing-backend/internal/platform/logger"
	"github.com/calcfunding/publishing-backend/internal/types"
)

// JobTracker brackets a message-driven run with start, progress and
// completion bookkeeping against the jobs API.
type JobTracker interface {
	// TryStartTrackingJob returns false when the job cannot be started:
	// unknown job id or a job that already reached a completed state.
	TryStartTrackingJob(ctx context.Context, jobID, jobType string) (bool, error)
	NotifyProgress(ctx context.Context, jobID string, itemCount int) error
	CompleteTrackingJob(ctx context.Context, jobID, outcome string, totalItemCount int) error
	FailJob(ctx context.Context, jobID, outcome string) error
	UpdateJobStatus(ctx context.Context, jobID string, itemsProcessed, itemsFailed int, completedSuccessfully *bool, outcome string) error
}

type jobTracker struct {
	log  *logger.Logger
	jobs jobsapi.Client
}

func NewJobTracker(baseLog *logger.Logger, jobs jobsapi.Client) JobTracker {
	return &jobTracker{
		log:  baseLog.With("service", "JobTracker"),
		jobs: jobs,
	}
}

func (t *jobTracker) TryStartTrackingJob(ctx context.Context, jobID, jobType string) (bool, error) {
	if jobID == "" {
		return false, types.NewMissingArgumentError(types.PropertyJobID)
	}
	job, err := t.jobs.GetJobByID(ctx, jobID)
	if err != nil {
		return false, fmt.Errorf("fetch job '%s': %w", jobID, err)
	}
	if job == nil {
		t.log.Error("Could not find job to track", "job_id", jobID, "job_type", jobType)
		return false, nil
	}
	if job.CompletionStatus != nil {
		t.log.Warn("Job already completed, not starting tracking", "job_id", jobID, "completion_status", *job.CompletionStatus)
		return false, nil
	}
	if _, err := t.jobs.AddJobLog(ctx, jobID, &types.JobLogUpdateModel{Outcome: "Job started"}); err != nil {
		return false, fmt.Errorf("add start log for job '%s': %w", jobID, err)
	}
	return true, nil
}

func (t *jobTracker) NotifyProgress(ctx context.Context, jobID string, itemCount int) error {
	_, err := t.jobs.AddJobLog(ctx, jobID, &types.JobLogUpdateModel{
		ItemsProcessed: &itemCount,
	})
	return err
}

func (t *jobTracker) CompleteTrackingJob(ctx context.Context, jobID, outcome string, totalItemCount int) error {
	completed := true
	_, err := t.jobs.AddJobLog(ctx, jobID, &types.JobLogUpdateModel{
		CompletedSuccessfully: &completed,
		ItemsProcessed:        &totalItemCount,
		Outcome:               outcome,
	})
	return err
}

func (t *jobTracker) FailJob(ctx context.Context, jobID, outcome string) error {
	completed := false
	_, err := t.jobs.AddJobLog(ctx, jobID, &types.JobLogUpdateModel{
		CompletedSuccessfully: &completed,
		Outcome:               outcome,
	})
	return err
}

func (t *jobTracker) UpdateJobStatus(ctx context.Context, jobID string, itemsProcessed, itemsFailed int, completedSuccessfully *bool, outcome string) error {
	_, err := t.jobs.AddJobLog(ctx, jobID, &types.JobLogUpdateModel{
		CompletedSuccessfully: completedSuccessfully,
		ItemsProcessed:        &itemsProcessed,
		ItemsFailed:           &itemsFailed,
		Outcome:               outcome,
	})
	return err
}
