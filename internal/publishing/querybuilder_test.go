package publishing

import (
	"strings"
	"testing"
)

func TestBuildCountQueryOmitsEmptyPredicates(t *testing.T) {
	builder := NewPublishedFundingQueryBuilder()

	query := builder.BuildCountQuery(nil, nil, nil)
	want := "SELECT VALUE COUNT(1) FROM publishedFunding p WHERE p.documentType = 'PublishedFundingVersion' AND p.deleted = false"
	if query != want {
		t.Fatalf("count query = %q, want %q", query, want)
	}
	if strings.Contains(query, "IN (") {
		t.Fatalf("empty filters must not emit IN clauses: %q", query)
	}
}

func TestBuildCountQueryIncludesPredicates(t *testing.T) {
	builder := NewPublishedFundingQueryBuilder()

	query := builder.BuildCountQuery([]string{"PSG", "DSG"}, []string{"AY-1920"}, []string{"Payment"})
	if !strings.Contains(query, "AND p.content.fundingStreamId IN ('PSG','DSG')") {
		t.Fatalf("missing funding stream predicate: %q", query)
	}
	if !strings.Contains(query, "AND p.content.fundingPeriod.id IN ('AY-1920')") {
		t.Fatalf("missing funding period predicate: %q", query)
	}
	if !strings.Contains(query, "AND p.content.groupingReason IN ('Payment')") {
		t.Fatalf("missing grouping reason predicate: %q", query)
	}
}

func TestBuildQueryOmitsAllPredicatesWhenFiltersEmpty(t *testing.T) {
	builder := NewPublishedFundingQueryBuilder()

	query := builder.BuildQuery(nil, nil, nil, 50, nil)
	if strings.Contains(query, "IN (") {
		t.Fatalf("empty filters must not emit IN clauses: %q", query)
	}
	if !strings.Contains(query, "WHERE p.documentType = 'PublishedFundingVersion' AND p.deleted = false ORDER BY") {
		t.Fatalf("base predicates must abut the ordering when no filters given: %q", query)
	}
}

func TestBuildQueryPagingOffsets(t *testing.T) {
	builder := NewPublishedFundingQueryBuilder()

	pageRef := 2
	query := builder.BuildQuery(nil, nil, nil, 50, &pageRef)
	if !strings.HasSuffix(query, "OFFSET 50 LIMIT 50") {
		t.Fatalf("page 2 of 50 must emit OFFSET 50 LIMIT 50: %q", query)
	}

	pageRef = 1
	query = builder.BuildQuery(nil, nil, nil, 50, &pageRef)
	if !strings.HasSuffix(query, "OFFSET 0 LIMIT 50") {
		t.Fatalf("page 1 must emit OFFSET 0: %q", query)
	}

	query = builder.BuildQuery(nil, nil, nil, 50, nil)
	if strings.Contains(query, "OFFSET") {
		t.Fatalf("nil page ref must not emit OFFSET: %q", query)
	}
	if !strings.HasSuffix(query, " LIMIT 50") {
		t.Fatalf("nil page ref must still emit LIMIT: %q", query)
	}
}

func TestBuildQueryFixedOrderingAndDocumentPath(t *testing.T) {
	builder := NewPublishedFundingQueryBuilder()

	query := builder.BuildQuery([]string{"PSG"}, nil, nil, 10, nil)
	ordering := "ORDER BY p.documentType, p.content.statusChangedDate, p.id, p.content.fundingStreamId, p.content.fundingPeriod.id, p.content.groupingReason, p.deleted"
	if !strings.Contains(query, ordering) {
		t.Fatalf("ordering clause missing or reordered: %q", query)
	}
	if !strings.Contains(query, "'.json') AS DocumentPath") {
		t.Fatalf("document path projection missing: %q", query)
	}
	if !strings.Contains(query, "CONCAT(p.content.fundingStreamId, '-', ") {
		t.Fatalf("document path must concatenate funding stream first: %q", query)
	}
}

func TestQuoteJoinEscapesQuotes(t *testing.T) {
	if got := quoteJoin([]string{"a'b", "c"}); got != "'a''b','c'" {
		t.Fatalf("quoteJoin = %q", got)
	}
}
