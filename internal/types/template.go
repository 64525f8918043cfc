package types

// FundingLineType distinguishes funding lines that pay money from purely
// informational rollups.
type FundingLineType string

const (
	FundingLineTypePayment     FundingLineType = "Payment"
	FundingLineTypeInformation FundingLineType = "Information"
)

// TemplateMetadataContents is the read-only funding template definition tree
// returned by the policies API for a (funding stream, template version) pair.
type TemplateMetadataContents struct {
	FundingStreamID  string        `json:"fundingStreamId"`
	TemplateVersion  string        `json:"templateVersion"`
	RootFundingLines []FundingLine `json:"rootFundingLines"`
}

type FundingLine struct {
	TemplateLineID  uint                  `json:"templateLineId"`
	Name            string                `json:"name"`
	FundingLineCode string                `json:"fundingLineCode"`
	Type            FundingLineType       `json:"type"`
	Calculations    []TemplateCalculation `json:"calculations,omitempty"`
	FundingLines    []FundingLine         `json:"fundingLines,omitempty"`
}

// TemplateCalculation is a calculation node within the template tree. Nodes
// nest recursively via Calculations.
type TemplateCalculation struct {
	TemplateCalculationID uint                  `json:"templateCalculationId"`
	Name                  string                `json:"name"`
	ValueFormat           string                `json:"valueFormat"`
	Calculations          []TemplateCalculation `json:"calculations,omitempty"`
}
