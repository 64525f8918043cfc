package types

import "time"

type CompletionStatus string

const (
	CompletionStatusSucceeded  CompletionStatus = "Succeeded"
	CompletionStatusFailed     CompletionStatus = "Failed"
	CompletionStatusCancelled  CompletionStatus = "Cancelled"
	CompletionStatusTimedOut   CompletionStatus = "TimedOut"
	CompletionStatusSuperseded CompletionStatus = "Superseded"
)

// Trigger records what caused a job to be created.
type Trigger struct {
	Message    string `json:"message"`
	EntityID   string `json:"entityId"`
	EntityType string `json:"entityType"`
}

// JobCreateModel is the request shape accepted by the jobs API when queueing
// work. Properties are copied onto the outbound queue message verbatim.
type JobCreateModel struct {
	JobDefinitionID        string            `json:"jobDefinitionId"`
	SpecificationID        string            `json:"specificationId"`
	ParentJobID            string            `json:"parentJobId,omitempty"`
	InvokerUserID          string            `json:"invokerUserId,omitempty"`
	InvokerUserDisplayName string            `json:"invokerUserDisplayName,omitempty"`
	CorrelationID          string            `json:"correlationId,omitempty"`
	Trigger                *Trigger          `json:"trigger,omitempty"`
	Properties             map[string]string `json:"properties,omitempty"`
	MessageBody            string            `json:"messageBody,omitempty"`
}

// Job is the jobs API view of a unit of asynchronous work. CompletionStatus
// is nil while the job is still in flight.
type Job struct {
	ID                     string            `json:"id"`
	JobDefinitionID        string            `json:"jobDefinitionId"`
	SpecificationID        string            `json:"specificationId"`
	ParentJobID            string            `json:"parentJobId,omitempty"`
	InvokerUserID          string            `json:"invokerUserId,omitempty"`
	InvokerUserDisplayName string            `json:"invokerUserDisplayName,omitempty"`
	CorrelationID          string            `json:"correlationId,omitempty"`
	Trigger                *Trigger          `json:"trigger,omitempty"`
	CompletionStatus       *CompletionStatus `json:"completionStatus,omitempty"`
	RunningStatus          string            `json:"runningStatus,omitempty"`
	Created                time.Time         `json:"created"`
}

// JobLogUpdateModel is appended against a job to record progress or outcome.
type JobLogUpdateModel struct {
	CompletedSuccessfully *bool  `json:"completedSuccessfully,omitempty"`
	ItemsProcessed        *int   `json:"itemsProcessed,omitempty"`
	ItemsSucceeded        *int   `json:"itemsSucceeded,omitempty"`
	ItemsFailed           *int   `json:"itemsFailed,omitempty"`
	Outcome               string `json:"outcome,omitempty"`
}

type JobLog struct {
	ID                    string    `json:"id"`
	JobID                 string    `json:"jobId"`
	CompletedSuccessfully *bool     `json:"completedSuccessfully,omitempty"`
	Outcome               string    `json:"outcome,omitempty"`
	Timestamp             time.Time `json:"timestamp"`
}

// Job definition ids used by this service.
const (
	JobDefinitionCreateInstructAllocation          = "CreateInstructAllocationJob"
	JobDefinitionGenerateCalculationAggregations   = "CreateInstructGenerateAggregationsAllocationJob"
	JobDefinitionApplyTemplateCalculations         = "CreateApplyTemplateCalculationsJob"
	JobDefinitionRefreshFunding                    = "RefreshFundingJob"
	JobDefinitionApproveFunding                    = "ApproveFunding"
	JobDefinitionPublishProviderFunding            = "PublishProviderFundingJob"
	JobDefinitionDeleteSpecification               = "DeleteSpecificationJob"
)
