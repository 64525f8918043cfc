package types

// ProfilePattern describes how a payment funding line's value is spread across
// instalments for a funding stream and period pairing.
type ProfilePattern struct {
	ID                 string `json:"id"`
	FundingStreamID    string `json:"fundingStreamId"`
	FundingPeriodID    string `json:"fundingPeriodId"`
	FundingLineCode    string `json:"fundingLineId"`
	ProfilePatternKey  string `json:"profilePatternKey,omitempty"`
	ProfilePatternName string `json:"profilePatternDisplayName,omitempty"`
}
