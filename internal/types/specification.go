package types

import "time"

// Reference is an id/name pair used wherever an entity is referred to but
// not owned.
type Reference struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type PublicationStatus string

const (
	PublicationStatusDraft    PublicationStatus = "Draft"
	PublicationStatusApproved PublicationStatus = "Approved"
	PublicationStatusArchived PublicationStatus = "Archived"
)

// SpecificationSummary is the funding configuration owning calculations,
// template mappings and a build project.
type SpecificationSummary struct {
	ID                   string            `json:"id"`
	Name                 string            `json:"name"`
	FundingPeriod        Reference         `json:"fundingPeriod"`
	FundingStreams       []Reference       `json:"fundingStreams"`
	ProviderVersionID    string            `json:"providerVersionId"`
	ApprovalStatus       PublicationStatus `json:"approvalStatus"`
	IsSelectedForFunding bool              `json:"isSelectedForFunding"`
	// TemplateIDs maps funding stream id to the template version assigned
	// for that stream. A stream without an entry has no template configured.
	TemplateIDs map[string]string `json:"templateIds"`
}

// TemplateVersionID returns the template version configured for the stream,
// or "" when none is assigned.
func (s *SpecificationSummary) TemplateVersionID(fundingStreamID string) string {
	if s == nil || s.TemplateIDs == nil {
		return ""
	}
	return s.TemplateIDs[fundingStreamID]
}

type FundingPeriod struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

type FundingConfiguration struct {
	FundingStreamID        string   `json:"fundingStreamId"`
	FundingPeriodID        string   `json:"fundingPeriodId"`
	DefaultTemplateVersion string   `json:"defaultTemplateVersion"`
	OrganisationGroupings  []string `json:"organisationGroupings,omitempty"`
}

// SpecificationFundingStatus describes whether a specification can still be
// chosen for funding for its streams.
type SpecificationFundingStatus string

const (
	SpecificationFundingStatusCanChoose                        SpecificationFundingStatus = "CanChoose"
	SpecificationFundingStatusAlreadyChosen                    SpecificationFundingStatus = "AlreadyChosen"
	SpecificationFundingStatusSharesAlreadyChosenFundingStream SpecificationFundingStatus = "SharesAlreadyChosenFundingStream"
)
