package types

import "time"

type CalculationValueType string

const (
	CalculationValueTypeNumber     CalculationValueType = "Number"
	CalculationValueTypePercentage CalculationValueType = "Percentage"
	CalculationValueTypeCurrency   CalculationValueType = "Currency"
	CalculationValueTypeBoolean    CalculationValueType = "Boolean"
	CalculationValueTypeString     CalculationValueType = "String"
)

// ValueTypeFromTemplateFormat maps a template node's ValueFormat onto the
// calculation value type used when creating or editing the calculation.
func ValueTypeFromTemplateFormat(valueFormat string) CalculationValueType {
	switch valueFormat {
	case "Percentage":
		return CalculationValueTypePercentage
	case "Currency":
		return CalculationValueTypeCurrency
	case "Boolean":
		return CalculationValueTypeBoolean
	case "String":
		return CalculationValueTypeString
	default:
		return CalculationValueTypeNumber
	}
}

type CalculationNamespace string

const (
	CalculationNamespaceTemplate   CalculationNamespace = "Template"
	CalculationNamespaceAdditional CalculationNamespace = "Additional"
)

type CalculationType string

const (
	CalculationTypeTemplate   CalculationType = "Template"
	CalculationTypeAdditional CalculationType = "Additional"
)

// CalculationVersion is one immutable revision of a calculation's source and
// metadata. Version numbers start at 1 and only ever increase.
type CalculationVersion struct {
	CalculationID string               `json:"calculationId"`
	Name          string               `json:"name"`
	SourceCode    string               `json:"sourceCode"`
	ValueType     CalculationValueType `json:"valueType"`
	PublishStatus PublicationStatus    `json:"publishStatus"`
	Author        Reference            `json:"author"`
	Version       int                  `json:"version"`
	Date          time.Time            `json:"date"`
}

// Calculation belongs to one specification. Current always carries the
// highest version number held in History once persisted.
type Calculation struct {
	ID              string                `json:"id"`
	SpecificationID string                `json:"specificationId"`
	FundingStreamID string                `json:"fundingStreamId"`
	Namespace       CalculationNamespace  `json:"namespace"`
	Type            CalculationType       `json:"calculationType"`
	Current         *CalculationVersion   `json:"current"`
	History         []*CalculationVersion `json:"history,omitempty"`
}

func (c *Calculation) Name() string {
	if c == nil || c.Current == nil {
		return ""
	}
	return c.Current.Name
}

func (c *Calculation) ValueType() CalculationValueType {
	if c == nil || c.Current == nil {
		return ""
	}
	return c.Current.ValueType
}

// CalculationCreateModel is the payload used to create a default calculation
// for a template mapping item that has none yet.
type CalculationCreateModel struct {
	SpecificationID string               `json:"specificationId"`
	FundingStreamID string               `json:"fundingStreamId"`
	Name            string               `json:"name"`
	SourceCode      string               `json:"sourceCode"`
	ValueType       CalculationValueType `json:"valueType"`
}

// CalculationEditModel carries only the fields being changed; nil pointers
// mean "leave as-is".
type CalculationEditModel struct {
	Name        string               `json:"name"`
	ValueType   CalculationValueType `json:"valueType"`
	SourceCode  *string              `json:"sourceCode,omitempty"`
	Description *string              `json:"description,omitempty"`
}
