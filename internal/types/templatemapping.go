package types

// TemplateMapping correlates a funding template's numeric calculation ids to
// concrete calculations within one specification. There is one mapping per
// (specification, funding stream) pair.
type TemplateMapping struct {
	SpecificationID      string                `json:"specificationId"`
	FundingStreamID      string                `json:"fundingStreamId"`
	TemplateMappingItems []TemplateMappingItem `json:"templateMappingItems"`
}

// TemplateMappingItem links one template calculation node to the calculation
// created for it. CalculationID is empty until a calculation exists.
type TemplateMappingItem struct {
	TemplateID    uint   `json:"templateId"`
	Name          string `json:"name"`
	CalculationID string `json:"calculationId,omitempty"`
}
