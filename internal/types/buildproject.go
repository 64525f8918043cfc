package types

// SourceFile is one generated source unit handed to the compiler.
type SourceFile struct {
	FileName   string `json:"fileName"`
	SourceCode string `json:"sourceCode"`
}

// Build holds the outcome of compiling a specification's calculations.
// Success=false with compiler messages is a normal outcome for bad source
// code, not an infrastructure failure.
type Build struct {
	Success          bool         `json:"success"`
	SourceFiles      []SourceFile `json:"sourceFiles,omitempty"`
	Assembly         []byte       `json:"assembly,omitempty"`
	CompilerMessages []string     `json:"compilerMessages,omitempty"`
}

// DatasetRelationshipSummary is the queue payload announcing a dataset
// relationship added to a specification.
type DatasetRelationshipSummary struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	DatasetDefinitionID string `json:"datasetDefinitionId,omitempty"`
}

// BuildProject is the compiled form of all calculations for one
// specification. Relationship names are unique; adding a duplicate name is a
// no-op rather than an error.
type BuildProject struct {
	ID                   string                       `json:"id"`
	SpecificationID      string                       `json:"specificationId"`
	Build                *Build                       `json:"build,omitempty"`
	DatasetRelationships []DatasetRelationshipSummary `json:"datasetRelationships,omitempty"`
}

// HasDatasetRelationship reports whether a relationship with the given name
// is already present.
func (b *BuildProject) HasDatasetRelationship(name string) bool {
	if b == nil {
		return false
	}
	for _, r := range b.DatasetRelationships {
		if r.Name == name {
			return true
		}
	}
	return false
}
