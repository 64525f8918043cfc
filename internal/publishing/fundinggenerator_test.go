package publishing

import (
	"testing"

	"github.com/calcfunding/publishing-backend/internal/types"
)

func TestGenerateFundingLinesProjectsPaymentLinesOnly(t *testing.T) {
	value1 := 1000.0
	value2 := 250.5
	contents := &types.TemplateMetadataContents{
		RootFundingLines: []types.FundingLine{
			{
				FundingLineCode: "PSG-001",
				Name:            "Total allocation",
				Type:            types.FundingLineTypePayment,
				FundingLines: []types.FundingLine{
					{FundingLineCode: "PSG-002", Name: "Premises", Type: types.FundingLineTypePayment},
					{FundingLineCode: "PSG-003", Name: "Breakdown", Type: types.FundingLineTypeInformation},
				},
			},
		},
	}
	result := &types.ProviderResult{
		ProviderID: "p1",
		CalculationResults: []types.CalculationResult{
			{Calculation: types.Reference{Name: "Total allocation"}, Value: &value1},
			{Calculation: types.Reference{Name: "Premises"}, Value: &value2},
			{Calculation: types.Reference{Name: "Breakdown"}, Value: &value2},
		},
	}

	lines, total := GeneratePublishedProviderFundingLines(contents, result)
	if len(lines) != 2 {
		t.Fatalf("information lines must be excluded, got %d lines", len(lines))
	}
	if lines[0].FundingLineCode != "PSG-001" || lines[1].FundingLineCode != "PSG-002" {
		t.Fatalf("unexpected line codes %q, %q", lines[0].FundingLineCode, lines[1].FundingLineCode)
	}
	if total == nil || *total != value1+value2 {
		t.Fatalf("total = %v, want %v", total, value1+value2)
	}
}

func TestGenerateFundingLinesKeepsNilValueForMissingResults(t *testing.T) {
	contents := &types.TemplateMetadataContents{
		RootFundingLines: []types.FundingLine{
			{FundingLineCode: "PSG-001", Name: "Total allocation", Type: types.FundingLineTypePayment},
		},
	}

	lines, total := GeneratePublishedProviderFundingLines(contents, nil)
	if len(lines) != 1 {
		t.Fatalf("payment line must still be emitted, got %d", len(lines))
	}
	if lines[0].Value != nil {
		t.Fatalf("missing result must leave a nil value")
	}
	if total != nil {
		t.Fatalf("total must stay nil when no line has a value")
	}

	if lines, total := GeneratePublishedProviderFundingLines(nil, nil); lines != nil || total != nil {
		t.Fatalf("nil template must produce nothing")
	}
}

func TestGeneratePublishedFundingVersionsNumberFromCurrent(t *testing.T) {
	generator := NewPublishedFundingGenerator()
	specification := publishSpecification()
	author := types.Reference{ID: "user1", Name: "A User"}

	funding := 500.0
	provider := publishProvider("p1", "201", types.PublishedProviderStatusReleased)
	provider.Current.MajorVersion = 2
	provider.Current.TotalFunding = &funding
	providers := map[string]*types.PublishedProvider{"p1": provider}

	changes := []OrganisationGroupFundingChange{
		{OrganisationGroup: detectorGroup("201", "p1")},
		{
			OrganisationGroup: detectorGroup("202"),
			Current: &types.PublishedFunding{
				Current: &types.PublishedFundingVersion{MajorVersion: 3, MinorVersion: 2},
			},
		},
	}

	versions := generator.GeneratePublishedFunding(specification, "PSG", changes, providers, author)
	if len(versions) != 2 {
		t.Fatalf("expected a version per change, got %d", len(versions))
	}

	first := versions[0]
	if first.MajorVersion != 1 || first.MinorVersion != 0 {
		t.Fatalf("new group starts at 1_0, got %d_%d", first.MajorVersion, first.MinorVersion)
	}
	if first.Status != types.PublicationStatusApproved || first.Author != author {
		t.Fatalf("unexpected version metadata %+v", first)
	}
	if len(first.ProviderFundings) != 1 || first.ProviderFundings[0] != provider.Current.FundingID()+"-2_0" {
		t.Fatalf("provider fundings = %v", first.ProviderFundings)
	}
	if first.TotalFunding == nil || *first.TotalFunding != funding {
		t.Fatalf("total funding = %v, want %v", first.TotalFunding, funding)
	}

	second := versions[1]
	if second.MajorVersion != 4 || second.MinorVersion != 0 {
		t.Fatalf("existing group must bump major, got %d_%d", second.MajorVersion, second.MinorVersion)
	}
}

func TestDocumentPathForFundingVersion(t *testing.T) {
	version := &types.PublishedFundingVersion{
		FundingStreamID:                  "PSG",
		FundingPeriodID:                  "AY-1920",
		GroupingReason:                   types.GroupingReasonPayment,
		OrganisationGroupTypeCode:        "LocalAuthority",
		OrganisationGroupIdentifierValue: "201",
		MajorVersion:                     2,
		MinorVersion:                     0,
	}
	want := "PSG-AY-1920-Payment-LocalAuthority-201-2_0.json"
	if got := DocumentPathForFundingVersion(version); got != want {
		t.Fatalf("document path = %q, want %q", got, want)
	}
}
