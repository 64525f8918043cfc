package publishing

import (
	"fmt"
	"sort"

	"github.com/calcfunding/publishing-backend/internal/types"
)

// OrganisationGroupFundingChange pairs a newly generated organisation group
// with the published funding envelope it supersedes, if one exists yet.
type OrganisationGroupFundingChange struct {
	OrganisationGroup types.OrganisationGroupResult
	Current           *types.PublishedFunding
}

// PublishedFundingChangeDetector decides which organisation groups need a new
// published-funding version by diffing the freshly generated groups against
// the funding already persisted and the provider versions in play.
type PublishedFundingChangeDetector interface {
	GenerateOrganisationGroupsToSave(
		fundingStreamID, fundingPeriodID string,
		organisationGroups []types.OrganisationGroupResult,
		existingFunding []*types.PublishedFunding,
		publishedProviders map[string]*types.PublishedProvider,
	) []OrganisationGroupFundingChange
}

type publishedFundingChangeDetector struct{}

func NewPublishedFundingChangeDetector() PublishedFundingChangeDetector {
	return &publishedFundingChangeDetector{}
}

func (d *publishedFundingChangeDetector) GenerateOrganisationGroupsToSave(
	fundingStreamID, fundingPeriodID string,
	organisationGroups []types.OrganisationGroupResult,
	existingFunding []*types.PublishedFunding,
	publishedProviders map[string]*types.PublishedProvider,
) []OrganisationGroupFundingChange {
	fundingByKey := make(map[string]*types.PublishedFunding, len(existingFunding))
	for _, funding := range existingFunding {
		if funding == nil || funding.Current == nil {
			continue
		}
		fundingByKey[funding.Current.FundingID()] = funding
	}

	var changes []OrganisationGroupFundingChange
	for _, group := range organisationGroups {
		key := fmt.Sprintf("funding-%s-%s-%s-%s-%s",
			fundingStreamID, fundingPeriodID, group.GroupReason,
			group.GroupTypeCode, group.IdentifierValue)
		current := fundingByKey[key]
		if current == nil {
			changes = append(changes, OrganisationGroupFundingChange{OrganisationGroup: group, Current: nil})
			continue
		}
		if d.groupChanged(group, current, publishedProviders) {
			changes = append(changes, OrganisationGroupFundingChange{OrganisationGroup: group, Current: current})
		}
	}
	return changes
}

// groupChanged compares the provider-funding membership the group would
// publish now with what the current funding version recorded.
func (d *publishedFundingChangeDetector) groupChanged(group types.OrganisationGroupResult, current *types.PublishedFunding, publishedProviders map[string]*types.PublishedProvider) bool {
	proposed := providerFundingIDs(group, publishedProviders)
	recorded := append([]string(nil), current.Current.ProviderFundings...)
	sort.Strings(recorded)
	if len(proposed) != len(recorded) {
		return true
	}
	for i := range proposed {
		if proposed[i] != recorded[i] {
			return true
		}
	}
	// Membership unchanged: a group still needs saving when any member
	// provider carries unreleased changes.
	for _, provider := range group.Providers {
		published := publishedProviders[provider.ID]
		if published != nil && published.Status() != types.PublishedProviderStatusReleased {
			return true
		}
	}
	return false
}

func providerFundingIDs(group types.OrganisationGroupResult, publishedProviders map[string]*types.PublishedProvider) []string {
	ids := make([]string, 0, len(group.Providers))
	for _, provider := range group.Providers {
		published := publishedProviders[provider.ID]
		if published == nil || published.Current == nil {
			continue
		}
		ids = append(ids, fmt.Sprintf("%s-%d_%d", published.Current.FundingID(), published.Current.MajorVersion, published.Current.MinorVersion))
	}
	sort.Strings(ids)
	return ids
}
