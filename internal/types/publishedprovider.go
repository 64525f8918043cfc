package types

import (
	"fmt"
	"time"
)

type PublishedProviderStatus string

const (
	PublishedProviderStatusDraft    PublishedProviderStatus = "Draft"
	PublishedProviderStatusUpdated  PublishedProviderStatus = "Updated"
	PublishedProviderStatusApproved PublishedProviderStatus = "Approved"
	PublishedProviderStatusReleased PublishedProviderStatus = "Released"
)

// PublishStatusForProviderStatus derives the version-level publish status
// from the provider status. Approved and Released both publish as Approved.
func PublishStatusForProviderStatus(status PublishedProviderStatus) PublicationStatus {
	switch status {
	case PublishedProviderStatusApproved, PublishedProviderStatusReleased:
		return PublicationStatusApproved
	case PublishedProviderStatusUpdated:
		return PublicationStatus("Updated")
	default:
		return PublicationStatusDraft
	}
}

// FundingLineValue is a provider-level funding line amount carried on a
// published provider version.
type FundingLineValue struct {
	FundingLineCode string          `json:"fundingLineCode"`
	Name            string          `json:"name"`
	Type            FundingLineType `json:"type"`
	Value           *float64        `json:"value,omitempty"`
}

// PublishedProviderVersion is an immutable snapshot of a provider's funding
// for one (funding stream, funding period). New state is always expressed as
// a new version; existing versions are never mutated.
type PublishedProviderVersion struct {
	ProviderID      string                  `json:"providerId"`
	SpecificationID string                  `json:"specificationId"`
	FundingStreamID string                  `json:"fundingStreamId"`
	FundingPeriodID string                  `json:"fundingPeriodId"`
	Version         int                     `json:"version"`
	MajorVersion    int                     `json:"majorVersion"`
	MinorVersion    int                     `json:"minorVersion"`
	Status          PublishedProviderStatus `json:"status"`
	PublishStatus   PublicationStatus       `json:"publishStatus"`
	Author          Reference               `json:"author"`
	Date            time.Time               `json:"date"`
	TotalFunding    *float64                `json:"totalFunding,omitempty"`
	Provider        *ProviderSummary        `json:"provider,omitempty"`
	FundingLines    []FundingLineValue      `json:"fundingLines,omitempty"`
}

func (v *PublishedProviderVersion) FundingID() string {
	return fmt.Sprintf("publishedprovider-%s-%s-%s", v.ProviderID, v.FundingPeriodID, v.FundingStreamID)
}

// PublishedProvider is the mutable envelope over the version chain. The
// partition key lives on the envelope, never as a live back-reference from a
// version.
type PublishedProvider struct {
	Current *PublishedProviderVersion `json:"current"`
}

func (p *PublishedProvider) ID() string {
	if p == nil || p.Current == nil {
		return ""
	}
	return p.Current.FundingID()
}

// PartitionKey identifies the physical partition the provider's documents
// live in, derived from the current version's identity.
func (p *PublishedProvider) PartitionKey() string {
	if p == nil || p.Current == nil {
		return ""
	}
	return p.Current.FundingID()
}

func (p *PublishedProvider) Status() PublishedProviderStatus {
	if p == nil || p.Current == nil {
		return ""
	}
	return p.Current.Status
}

// PublishedProviderCreateVersionRequest pairs an envelope with the proposed
// next version so create-version calls can be batched.
type PublishedProviderCreateVersionRequest struct {
	PublishedProvider *PublishedProvider
	NewVersion        *PublishedProviderVersion
}
