package types

import (
	"fmt"
	"time"
)

type GroupingReason string

const (
	GroupingReasonPayment     GroupingReason = "Payment"
	GroupingReasonInformation GroupingReason = "Information"
)

// OrganisationGroupResult is one aggregation unit (e.g. a local authority)
// that funding is grouped and released by. Produced by the organisation-group
// generator collaborator.
type OrganisationGroupResult struct {
	GroupTypeCode       string            `json:"groupTypeCode"`
	GroupTypeIdentifier string            `json:"groupTypeIdentifier"`
	IdentifierValue     string            `json:"identifierValue"`
	GroupReason         GroupingReason    `json:"groupReason"`
	Name                string            `json:"name"`
	Providers           []ProviderSummary `json:"providers,omitempty"`
}

// PublishedFundingVersion is the immutable organisation-group level funding
// snapshot. Major/minor versions feed the document path naming scheme.
type PublishedFundingVersion struct {
	FundingStreamID                  string            `json:"fundingStreamId"`
	FundingPeriodID                  string            `json:"fundingPeriodId"`
	GroupingReason                   GroupingReason    `json:"groupingReason"`
	OrganisationGroupTypeCode        string            `json:"organisationGroupTypeCode"`
	OrganisationGroupIdentifierValue string            `json:"organisationGroupIdentifierValue"`
	OrganisationGroupName            string            `json:"organisationGroupName,omitempty"`
	MajorVersion                     int               `json:"majorVersion"`
	MinorVersion                     int               `json:"minorVersion"`
	SpecificationID                  string            `json:"specificationId"`
	Status                           PublicationStatus `json:"status"`
	Author                           Reference         `json:"author"`
	StatusChangedDate                time.Time         `json:"statusChangedDate"`
	TotalFunding                     *float64          `json:"totalFunding,omitempty"`
	ProviderFundings                 []string          `json:"providerFundings,omitempty"`
}

// DocumentPath is the blob-style path the funding search surface projects for
// this version.
func (v *PublishedFundingVersion) DocumentPath() string {
	return fmt.Sprintf("%s-%s-%s-%s-%s-%d_%d.json",
		v.FundingStreamID, v.FundingPeriodID, v.GroupingReason,
		v.OrganisationGroupTypeCode, v.OrganisationGroupIdentifierValue,
		v.MajorVersion, v.MinorVersion)
}

func (v *PublishedFundingVersion) FundingID() string {
	return fmt.Sprintf("funding-%s-%s-%s-%s-%s",
		v.FundingStreamID, v.FundingPeriodID, v.GroupingReason,
		v.OrganisationGroupTypeCode, v.OrganisationGroupIdentifierValue)
}

// PublishedFunding is the mutable envelope over published funding versions,
// one per funding stream x funding period x grouping reason x organisation
// identifier.
type PublishedFunding struct {
	Current *PublishedFundingVersion `json:"current"`
}

func (f *PublishedFunding) ID() string {
	if f == nil || f.Current == nil {
		return ""
	}
	return f.Current.FundingID()
}

func (f *PublishedFunding) PartitionKey() string {
	return f.ID()
}
