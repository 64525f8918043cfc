package services

import "github.com/calcfunding/publishing-backend/internal/types"

// TemplateContentsCalculationQuery resolves template mapping items against a
// template contents tree. The tree is flattened into a lookup once per
// message, not once per mapping item.
type TemplateContentsCalculationQuery struct {
	lookup map[uint]*types.TemplateCalculation
}

func NewTemplateContentsCalculationQuery(contents *types.TemplateMetadataContents) *TemplateContentsCalculationQuery {
	query := &TemplateContentsCalculationQuery{
		lookup: map[uint]*types.TemplateCalculation{},
	}
	if contents == nil {
		return query
	}
	for i := range contents.RootFundingLines {
		query.flattenFundingLine(&contents.RootFundingLines[i])
	}
	return query
}

func (q *TemplateContentsCalculationQuery) flattenFundingLine(line *types.FundingLine) {
	for i := range line.Calculations {
		q.flattenCalculation(&line.Calculations[i])
	}
	for i := range line.FundingLines {
		q.flattenFundingLine(&line.FundingLines[i])
	}
}

func (q *TemplateContentsCalculationQuery) flattenCalculation(calculation *types.TemplateCalculation) {
	q.lookup[calculation.TemplateCalculationID] = calculation
	for i := range calculation.Calculations {
		q.flattenCalculation(&calculation.Calculations[i])
	}
}

// GetTemplateContentsForMappingItem returns the template node the mapping
// item points at, or nil when the template no longer carries it.
func (q *TemplateContentsCalculationQuery) GetTemplateContentsForMappingItem(item *types.TemplateMappingItem) *types.TemplateCalculation {
	if item == nil {
		return nil
	}
	return q.lookup[item.TemplateID]
}

// PaymentFundingLineCodes returns the distinct funding line codes of payment
// lines in the contents tree, in first-seen order.
func PaymentFundingLineCodes(contents *types.TemplateMetadataContents) []string {
	if contents == nil {
		return nil
	}
	seen := map[string]bool{}
	var codes []string
	var walk func(lines []types.FundingLine)
	walk = func(lines []types.FundingLine) {
		for i := range lines {
			line := &lines[i]
			if line.Type == types.FundingLineTypePayment && line.FundingLineCode != "" && !seen[line.FundingLineCode] {
				seen[line.FundingLineCode] = true
				codes = append(codes, line.FundingLineCode)
			}
			walk(line.FundingLines)
		}
	}
	walk(contents.RootFundingLines)
	return codes
}
