package publishing

import (
	"time"

	"github.com/calcfunding/publishing-backend/internal/types"
)

// GeneratePublishedProviderFundingLines projects the template's payment
// funding lines onto a provider using its calculation results. A funding line
// whose code has no matching calculation result keeps a nil value.
func GeneratePublishedProviderFundingLines(contents *types.TemplateMetadataContents, result *types.ProviderResult) ([]types.FundingLineValue, *float64) {
	if contents == nil {
		return nil, nil
	}
	valuesByName := map[string]*float64{}
	if result != nil {
		for _, calcResult := range result.CalculationResults {
			valuesByName[calcResult.Calculation.Name] = calcResult.Value
		}
	}

	var fundingLines []types.FundingLineValue
	var total *float64
	var walk func(lines []types.FundingLine)
	walk = func(lines []types.FundingLine) {
		for _, line := range lines {
			if line.Type == types.FundingLineTypePayment {
				value := valuesByName[line.Name]
				fundingLines = append(fundingLines, types.FundingLineValue{
					FundingLineCode: line.FundingLineCode,
					Name:            line.Name,
					Type:            line.Type,
					Value:           value,
				})
				if value != nil {
					if total == nil {
						total = new(float64)
					}
					*total += *value
				}
			}
			walk(line.FundingLines)
		}
	}
	walk(contents.RootFundingLines)
	return fundingLines, total
}

// PublishedFundingGenerator builds the next published-funding version for
// each changed organisation group.
type PublishedFundingGenerator interface {
	GeneratePublishedFunding(
		specification *types.SpecificationSummary,
		fundingStreamID string,
		changes []OrganisationGroupFundingChange,
		publishedProviders map[string]*types.PublishedProvider,
		author types.Reference,
	) []*types.PublishedFundingVersion
}

type publishedFundingGenerator struct{}

func NewPublishedFundingGenerator() PublishedFundingGenerator {
	return &publishedFundingGenerator{}
}

func (g *publishedFundingGenerator) GeneratePublishedFunding(
	specification *types.SpecificationSummary,
	fundingStreamID string,
	changes []OrganisationGroupFundingChange,
	publishedProviders map[string]*types.PublishedProvider,
	author types.Reference,
) []*types.PublishedFundingVersion {
	now := time.Now()
	versions := make([]*types.PublishedFundingVersion, 0, len(changes))
	for _, change := range changes {
		group := change.OrganisationGroup
		version := &types.PublishedFundingVersion{
			FundingStreamID:                  fundingStreamID,
			FundingPeriodID:                  specification.FundingPeriod.ID,
			GroupingReason:                   group.GroupReason,
			OrganisationGroupTypeCode:        group.GroupTypeCode,
			OrganisationGroupIdentifierValue: group.IdentifierValue,
			OrganisationGroupName:            group.Name,
			SpecificationID:                  specification.ID,
			Status:                           types.PublicationStatusApproved,
			Author:                           author,
			StatusChangedDate:                now,
			ProviderFundings:                 providerFundingIDs(group, publishedProviders),
			TotalFunding:                     groupTotalFunding(group, publishedProviders),
		}
		if change.Current != nil && change.Current.Current != nil {
			version.MajorVersion = change.Current.Current.MajorVersion + 1
			version.MinorVersion = 0
		} else {
			version.MajorVersion = 1
			version.MinorVersion = 0
		}
		versions = append(versions, version)
	}
	return versions
}

func groupTotalFunding(group types.OrganisationGroupResult, publishedProviders map[string]*types.PublishedProvider) *float64 {
	var total *float64
	for _, provider := range group.Providers {
		published := publishedProviders[provider.ID]
		if published == nil || published.Current == nil || published.Current.TotalFunding == nil {
			continue
		}
		if total == nil {
			total = new(float64)
		}
		*total += *published.Current.TotalFunding
	}
	return total
}

// DocumentPathForFundingVersion mirrors the path scheme the paged query
// projects: one blob-style path per funding version.
func DocumentPathForFundingVersion(version *types.PublishedFundingVersion) string {
	return version.DocumentPath()
}
