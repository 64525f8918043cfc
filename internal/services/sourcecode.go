package services

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/calcfunding/publishing-backend/internal/types"
)

// identifierReplacements maps characters that are unsafe in generated
// identifiers to textual substitutes.
var identifierReplacements = []struct {
	char        string
	replacement string
}{
	{"<", "LessThan"},
	{">", "GreaterThan"},
	{"£", "Pound"},
	{"=", "Equals"},
	{"%", "Percent"},
	{"+", "Plus"},
	{"*", "Multiply"},
	{"/", "Divide"},
	{"-", "Subtract"},
}

// GenerateIdentifier turns a calculation name into a legal source
// identifier: words are pascal-cased and unsafe characters become textual
// tokens in place, e.g. "calc 1 <" becomes "Calc1LessThan".
func GenerateIdentifier(name string) string {
	expanded := name
	for _, r := range identifierReplacements {
		expanded = strings.ReplaceAll(expanded, r.char, " "+r.replacement+" ")
	}
	var sb strings.Builder
	for _, token := range strings.Fields(expanded) {
		runes := []rune(token)
		runes[0] = unicode.ToUpper(runes[0])
		sb.WriteString(string(runes))
	}
	return sb.String()
}

// GenerateSourceFiles produces one source unit per calculation for the
// compiler, named by the calculation's generated identifier.
func GenerateSourceFiles(specificationID string, calculations []*types.Calculation) []types.SourceFile {
	files := make([]types.SourceFile, 0, len(calculations))
	for _, calculation := range calculations {
		if calculation == nil || calculation.Current == nil {
			continue
		}
		identifier := GenerateIdentifier(calculation.Current.Name)
		files = append(files, types.SourceFile{
			FileName: fmt.Sprintf("%s/%s.vb", specificationID, identifier),
			SourceCode: fmt.Sprintf("Public Function %s As %s\n%s\nEnd Function",
				identifier, calculation.Current.ValueType, calculation.Current.SourceCode),
		})
	}
	return files
}
