package publishing

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/calcfunding/publishing-backend/internal/platform/logger"
	"github.com/calcfunding/publishing-backend/internal/types"
)

type stubJobsRunningChecker struct {
	running []string
	calls   int
}

func (s *stubJobsRunningChecker) GetJobTypesRunningForSpecification(ctx context.Context, specificationID string, jobDefinitionIDs []string) ([]string, error) {
	s.calls++
	return s.running, nil
}

type stubJobsClient struct {
	jobLogs []*types.JobLogUpdateModel
}

func (s *stubJobsClient) CreateJob(ctx context.Context, job *types.JobCreateModel) (*types.Job, error) {
	return &types.Job{ID: "job1"}, nil
}

func (s *stubJobsClient) CreateJobs(ctx context.Context, jobs []*types.JobCreateModel) ([]*types.Job, error) {
	return nil, nil
}

func (s *stubJobsClient) GetJobByID(ctx context.Context, jobID string) (*types.Job, error) {
	return nil, nil
}

func (s *stubJobsClient) GetLatestJobsForSpecification(ctx context.Context, specificationID string, jobDefinitionIDs []string) ([]*types.Job, error) {
	return nil, nil
}

func (s *stubJobsClient) AddJobLog(ctx context.Context, jobID string, update *types.JobLogUpdateModel) (*types.JobLog, error) {
	s.jobLogs = append(s.jobLogs, update)
	return &types.JobLog{ID: "log1", JobID: jobID}, nil
}

type stubSpecificationsRepo struct {
	inPeriod  []*types.SpecificationSummary
	selected  []string
	selectErr error
}

func (s *stubSpecificationsRepo) GetSpecificationSummaryByID(ctx context.Context, tx *gorm.DB, specificationID string) (*types.SpecificationSummary, error) {
	return nil, nil
}

func (s *stubSpecificationsRepo) GetSpecificationsForFundingPeriod(ctx context.Context, tx *gorm.DB, fundingPeriodID string) ([]*types.SpecificationSummary, error) {
	return s.inPeriod, nil
}

func (s *stubSpecificationsRepo) SelectSpecificationForFunding(ctx context.Context, tx *gorm.DB, specificationID string) error {
	if s.selectErr != nil {
		return s.selectErr
	}
	s.selected = append(s.selected, specificationID)
	return nil
}

func (s *stubSpecificationsRepo) UpdateCalculationLastUpdatedDate(ctx context.Context, tx *gorm.DB, specificationID string) error {
	return nil
}

func (s *stubSpecificationsRepo) UpsertSpecification(ctx context.Context, tx *gorm.DB, specification *types.SpecificationSummary) error {
	return nil
}

type stubScopedProviders struct {
	count int64
	calls int
}

func (s *stubScopedProviders) EnsurePopulated(ctx context.Context, specificationID string) (int64, error) {
	s.calls++
	return s.count, nil
}

func (s *stubScopedProviders) PopulateProviderSummariesForSpecification(ctx context.Context, specificationID string) (int64, error) {
	return s.count, nil
}

func (s *stubScopedProviders) GetProviderSummariesPartition(ctx context.Context, specificationID string, offset, count int64) ([]types.ProviderSummary, error) {
	return nil, nil
}

type stubPoliciesClient struct {
	contents *types.TemplateMetadataContents
}

func (s *stubPoliciesClient) GetFundingTemplateContents(ctx context.Context, fundingStreamID, templateVersion string) (*types.TemplateMetadataContents, error) {
	return s.contents, nil
}

func (s *stubPoliciesClient) GetFundingConfiguration(ctx context.Context, fundingStreamID, fundingPeriodID string) (*types.FundingConfiguration, error) {
	return nil, nil
}

func (s *stubPoliciesClient) GetFundingPeriodByID(ctx context.Context, fundingPeriodID string) (*types.FundingPeriod, error) {
	return nil, nil
}

type stubProfilingClient struct {
	patternsByStream map[string][]types.ProfilePattern
	calls            []string
}

func (s *stubProfilingClient) GetProfilePatternsForFundingStreamAndFundingPeriod(ctx context.Context, fundingStreamID, fundingPeriodID string) ([]types.ProfilePattern, error) {
	s.calls = append(s.calls, fundingStreamID)
	return s.patternsByStream[fundingStreamID], nil
}

type stubCalculationsService struct {
	calculations []*types.Calculation
	calls        int
}

func (s *stubCalculationsService) GetCalculationByID(ctx context.Context, calculationID string) (*types.Calculation, error) {
	return nil, nil
}

func (s *stubCalculationsService) GetCalculationsBySpecificationID(ctx context.Context, specificationID string) ([]*types.Calculation, error) {
	s.calls++
	return s.calculations, nil
}

func (s *stubCalculationsService) CreateCalculation(ctx context.Context, model *types.CalculationCreateModel, author types.Reference, correlationID string) (*types.Calculation, error) {
	return nil, nil
}

func (s *stubCalculationsService) EditCalculation(ctx context.Context, specificationID, calculationID string, edit *types.CalculationEditModel, author types.Reference, correlationID string, isMissingCalculation bool) (*types.Calculation, error) {
	return nil, nil
}

type prereqFixture struct {
	checker      *RefreshPrerequisiteChecker
	jobsRunning  *stubJobsRunningChecker
	jobs         *stubJobsClient
	specs        *stubSpecificationsRepo
	scoped       *stubScopedProviders
	policies     *stubPoliciesClient
	profiling    *stubProfilingClient
	calculations *stubCalculationsService
}

func newPrereqFixture() *prereqFixture {
	f := &prereqFixture{
		jobsRunning: &stubJobsRunningChecker{},
		jobs:        &stubJobsClient{},
		specs:       &stubSpecificationsRepo{},
		scoped:      &stubScopedProviders{count: 10},
		policies:    &stubPoliciesClient{},
		profiling: &stubProfilingClient{
			patternsByStream: map[string][]types.ProfilePattern{},
		},
		calculations: &stubCalculationsService{},
	}
	f.checker = NewRefreshPrerequisiteChecker(
		nil, logger.NewNop(), f.jobs, f.jobsRunning, f.specs, f.scoped,
		f.policies, f.profiling, f.calculations)
	return f
}

func approvedSpecification() *types.SpecificationSummary {
	return &types.SpecificationSummary{
		ID:             "spec1",
		ApprovalStatus: types.PublicationStatusApproved,
		FundingPeriod:  types.Reference{ID: "AY-1920"},
		FundingStreams: []types.Reference{{ID: "PSG"}},
		TemplateIDs:    map[string]string{"PSG": "1.0"},
	}
}

func TestPerformChecksUnapprovedSpecificationShortCircuits(t *testing.T) {
	f := newPrereqFixture()
	specification := approvedSpecification()
	specification.ApprovalStatus = types.PublicationStatusDraft

	err := f.checker.PerformChecks(context.Background(), specification, "job1")
	if err == nil || !strings.Contains(err.Error(), "Specification must be approved.") {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.scoped.calls != 0 {
		t.Fatalf("provider-scope check must not run after approval failure")
	}
	if len(f.profiling.calls) != 0 {
		t.Fatalf("profiling check must not run after approval failure")
	}
	if f.calculations.calls != 0 {
		t.Fatalf("calculation-approval check must not run after approval failure")
	}
	if len(f.jobs.jobLogs) != 1 {
		t.Fatalf("failure must be recorded against the job log")
	}
}

func TestPerformChecksRunningJobsGateShortCircuitsDomainChecks(t *testing.T) {
	f := newPrereqFixture()
	f.jobsRunning.running = []string{types.JobDefinitionRefreshFunding}

	err := f.checker.PerformChecks(context.Background(), approvedSpecification(), "job1")
	if err == nil || !strings.Contains(err.Error(), "job is still running") {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.scoped.calls != 0 {
		t.Fatalf("domain checks must not run while conflicting jobs are in flight")
	}
}

func TestPerformChecksFailsWhenNoProvidersInScope(t *testing.T) {
	f := newPrereqFixture()
	f.scoped.count = 0

	err := f.checker.PerformChecks(context.Background(), approvedSpecification(), "job1")
	if err == nil || !strings.Contains(err.Error(), "has no scoped providers") {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.profiling.calls) != 0 {
		t.Fatalf("profiling check must not run after provider-scope failure")
	}
}

func TestPerformChecksSharedFundingStreamBlocksRefresh(t *testing.T) {
	f := newPrereqFixture()
	f.profiling.patternsByStream["PSG"] = []types.ProfilePattern{{ID: "pat1"}}
	f.specs.inPeriod = []*types.SpecificationSummary{
		{
			ID:                   "spec2",
			IsSelectedForFunding: true,
			FundingStreams:       []types.Reference{{ID: "PSG"}},
		},
	}

	err := f.checker.PerformChecks(context.Background(), approvedSpecification(), "job1")
	if err == nil || !strings.Contains(err.Error(), "shares a funding stream") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPerformChecksProfilingFailsOnFirstStreamWithoutPatterns(t *testing.T) {
	f := newPrereqFixture()
	specification := approvedSpecification()
	specification.FundingStreams = []types.Reference{{ID: "PSG"}, {ID: "DSG"}}
	specification.TemplateIDs = map[string]string{"PSG": "1.0", "DSG": "2.0"}
	f.policies.contents = &types.TemplateMetadataContents{
		RootFundingLines: []types.FundingLine{
			{FundingLineCode: "PSG-001", Type: types.FundingLineTypePayment},
			{FundingLineCode: "PSG-002", Type: types.FundingLineTypePayment},
		},
	}

	err := f.checker.PerformChecks(context.Background(), specification, "job1")
	if err == nil || !strings.Contains(err.Error(), "Profiling configuration missing for funding lines: PSG-001, PSG-002") {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.profiling.calls) != 1 || f.profiling.calls[0] != "PSG" {
		t.Fatalf("profiling must stop at the first failing stream, calls: %v", f.profiling.calls)
	}
}

func TestPerformChecksSelectsSpecificationWhenCanChoose(t *testing.T) {
	f := newPrereqFixture()
	f.profiling.patternsByStream["PSG"] = []types.ProfilePattern{{ID: "pat1"}}

	if err := f.checker.PerformChecks(context.Background(), approvedSpecification(), "job1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.specs.selected) != 1 || f.specs.selected[0] != "spec1" {
		t.Fatalf("expected specification to be chosen for funding, got %v", f.specs.selected)
	}
}

func TestPerformChecksSelectionFailureBecomesSingleError(t *testing.T) {
	f := newPrereqFixture()
	f.profiling.patternsByStream["PSG"] = []types.ProfilePattern{{ID: "pat1"}}
	f.specs.selectErr = fmt.Errorf("selection write failed")

	err := f.checker.PerformChecks(context.Background(), approvedSpecification(), "job1")
	if err == nil || !strings.Contains(err.Error(), "selection write failed") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPerformChecksAggregatesUnapprovedTemplateCalculations(t *testing.T) {
	f := newPrereqFixture()
	f.profiling.patternsByStream["PSG"] = []types.ProfilePattern{{ID: "pat1"}}
	f.calculations.calculations = []*types.Calculation{
		{
			ID:        "c1",
			Namespace: types.CalculationNamespaceTemplate,
			Current:   &types.CalculationVersion{Name: "Calc one", PublishStatus: types.PublicationStatusDraft},
		},
		{
			ID:        "c2",
			Namespace: types.CalculationNamespaceTemplate,
			Current:   &types.CalculationVersion{Name: "Calc two", PublishStatus: types.PublicationStatusDraft},
		},
		{
			ID:        "c3",
			Namespace: types.CalculationNamespaceAdditional,
			Current:   &types.CalculationVersion{Name: "Extra", PublishStatus: types.PublicationStatusDraft},
		},
	}

	err := f.checker.PerformChecks(context.Background(), approvedSpecification(), "job1")
	if err == nil {
		t.Fatalf("expected aggregated approval errors")
	}
	if !strings.Contains(err.Error(), "Calculation with name: 'Calc one' must be approved") ||
		!strings.Contains(err.Error(), "Calculation with name: 'Calc two' must be approved") {
		t.Fatalf("both template calculations must be listed: %v", err)
	}
	if strings.Contains(err.Error(), "Extra") {
		t.Fatalf("additional calculations are exempt from template approval: %v", err)
	}
}
