package services

import (
	"testing"

	"github.com/calcfunding/publishing-backend/internal/types"
)

func nestedTemplateContents() *types.TemplateMetadataContents {
	return &types.TemplateMetadataContents{
		FundingStreamID: "PSG",
		TemplateVersion: "1.0",
		RootFundingLines: []types.FundingLine{
			{
				TemplateLineID:  1,
				FundingLineCode: "PSG-001",
				Type:            types.FundingLineTypePayment,
				Calculations: []types.TemplateCalculation{
					{
						TemplateCalculationID: 10,
						Name:                  "Total pupils",
						ValueFormat:           "Number",
						Calculations: []types.TemplateCalculation{
							{TemplateCalculationID: 11, Name: "Primary pupils", ValueFormat: "Number"},
						},
					},
				},
				FundingLines: []types.FundingLine{
					{
						TemplateLineID:  2,
						FundingLineCode: "PSG-002",
						Type:            types.FundingLineTypeInformation,
						Calculations: []types.TemplateCalculation{
							{TemplateCalculationID: 12, Name: "Rate", ValueFormat: "Currency"},
						},
					},
					{
						TemplateLineID:  3,
						FundingLineCode: "PSG-003",
						Type:            types.FundingLineTypePayment,
					},
					{
						// Duplicate code lower in the tree must not repeat.
						TemplateLineID:  4,
						FundingLineCode: "PSG-001",
						Type:            types.FundingLineTypePayment,
					},
				},
			},
		},
	}
}

func TestTemplateContentsCalculationQueryFindsNestedCalculations(t *testing.T) {
	query := NewTemplateContentsCalculationQuery(nestedTemplateContents())

	for _, id := range []uint{10, 11, 12} {
		item := &types.TemplateMappingItem{TemplateID: id}
		node := query.GetTemplateContentsForMappingItem(item)
		if node == nil {
			t.Fatalf("expected template calculation %d to be found", id)
		}
		if node.TemplateCalculationID != id {
			t.Fatalf("lookup for %d returned node %d", id, node.TemplateCalculationID)
		}
	}

	if node := query.GetTemplateContentsForMappingItem(&types.TemplateMappingItem{TemplateID: 99}); node != nil {
		t.Fatalf("expected nil for removed template calculation, got %+v", node)
	}
	if node := query.GetTemplateContentsForMappingItem(nil); node != nil {
		t.Fatalf("expected nil for nil mapping item")
	}
}

func TestTemplateContentsCalculationQueryHandlesNilContents(t *testing.T) {
	query := NewTemplateContentsCalculationQuery(nil)
	if node := query.GetTemplateContentsForMappingItem(&types.TemplateMappingItem{TemplateID: 1}); node != nil {
		t.Fatalf("expected nil lookup on empty contents")
	}
}

func TestPaymentFundingLineCodesDistinctFirstSeenOrder(t *testing.T) {
	codes := PaymentFundingLineCodes(nestedTemplateContents())
	if len(codes) != 2 {
		t.Fatalf("expected 2 distinct payment codes, got %v", codes)
	}
	if codes[0] != "PSG-001" || codes[1] != "PSG-003" {
		t.Fatalf("unexpected code order: %v", codes)
	}
}
