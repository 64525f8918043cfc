package types

// ProviderSummary is the slimmed provider record cached per specification and
// fed to allocation runs in partition-sized slices.
type ProviderSummary struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ProviderType   string `json:"providerType,omitempty"`
	UKPRN          string `json:"ukprn,omitempty"`
	LACode         string `json:"laCode,omitempty"`
	Authority      string `json:"authority,omitempty"`
	ProviderStatus string `json:"providerStatus,omitempty"`
}

// CalculationResult is one calculation's computed value for a provider.
type CalculationResult struct {
	Calculation Reference `json:"calculation"`
	Value       *float64  `json:"value,omitempty"`
}

// ProviderResult holds every calculation result for one provider within a
// specification.
type ProviderResult struct {
	ProviderID         string              `json:"providerId"`
	SpecificationID    string              `json:"specificationId"`
	CalculationResults []CalculationResult `json:"calculationResults,omitempty"`
}
