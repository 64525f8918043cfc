package publishing

import (
	"context"
	"sort"

	"github.com/calcfunding/publishing-backend/internal/platform/logger"
	"github.com/calcfunding/publishing-backend/internal/types"
)

// OrganisationGroupGenerator aggregates scoped providers into the
// organisation groups funding is published by.
type OrganisationGroupGenerator interface {
	GenerateOrganisationGroups(ctx context.Context, configuration *types.FundingConfiguration, providers []types.ProviderSummary) ([]types.OrganisationGroupResult, error)
}

type organisationGroupGenerator struct {
	log *logger.Logger
}

func NewOrganisationGroupGenerator(baseLog *logger.Logger) OrganisationGroupGenerator {
	return &organisationGroupGenerator{log: baseLog.With("service", "OrganisationGroupGenerator")}
}

// GenerateOrganisationGroups produces payment groups keyed by local authority
// and information groups keyed by provider type. Providers without a local
// authority code do not join a payment group.
func (g *organisationGroupGenerator) GenerateOrganisationGroups(ctx context.Context, configuration *types.FundingConfiguration, providers []types.ProviderSummary) ([]types.OrganisationGroupResult, error) {
	paymentGroups := map[string]*types.OrganisationGroupResult{}
	informationGroups := map[string]*types.OrganisationGroupResult{}

	for _, provider := range providers {
		if provider.LACode != "" {
			group, ok := paymentGroups[provider.LACode]
			if !ok {
				group = &types.OrganisationGroupResult{
					GroupTypeCode:       "LocalAuthority",
					GroupTypeIdentifier: "LACode",
					IdentifierValue:     provider.LACode,
					GroupReason:         types.GroupingReasonPayment,
					Name:                provider.Authority,
				}
				paymentGroups[provider.LACode] = group
			}
			group.Providers = append(group.Providers, provider)
		}
		if provider.ProviderType != "" {
			group, ok := informationGroups[provider.ProviderType]
			if !ok {
				group = &types.OrganisationGroupResult{
					GroupTypeCode:       "ProviderType",
					GroupTypeIdentifier: "ProviderType",
					IdentifierValue:     provider.ProviderType,
					GroupReason:         types.GroupingReasonInformation,
					Name:                provider.ProviderType,
				}
				informationGroups[provider.ProviderType] = group
			}
			group.Providers = append(group.Providers, provider)
		}
	}

	out := make([]types.OrganisationGroupResult, 0, len(paymentGroups)+len(informationGroups))
	for _, group := range paymentGroups {
		out = append(out, *group)
	}
	for _, group := range informationGroups {
		out = append(out, *group)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GroupReason != out[j].GroupReason {
			return out[i].GroupReason < out[j].GroupReason
		}
		return out[i].IdentifierValue < out[j].IdentifierValue
	})
	return out, nil
}
