package repos

import (
	"testing"
)

func TestParseFundingQueryExtractsFiltersFromCountQuery(t *testing.T) {
	query := "SELECT VALUE COUNT(1) FROM publishedFunding p WHERE p.documentType = 'PublishedFundingVersion' AND p.deleted = false" +
		" AND p.content.fundingStreamId IN ('PSG','DSG')" +
		" AND p.content.fundingPeriod.id IN ('AY-1920')" +
		" AND p.content.groupingReason IN ('Payment')"

	criteria, err := parseFundingQuery(query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !criteria.isCount {
		t.Fatalf("count query must be recognised")
	}
	if len(criteria.fundingStreamIDs) != 2 || criteria.fundingStreamIDs[0] != "PSG" || criteria.fundingStreamIDs[1] != "DSG" {
		t.Fatalf("funding streams = %v", criteria.fundingStreamIDs)
	}
	if len(criteria.fundingPeriodIDs) != 1 || criteria.fundingPeriodIDs[0] != "AY-1920" {
		t.Fatalf("funding periods = %v", criteria.fundingPeriodIDs)
	}
	if len(criteria.groupingReasons) != 1 || criteria.groupingReasons[0] != "Payment" {
		t.Fatalf("grouping reasons = %v", criteria.groupingReasons)
	}
	if criteria.limit != -1 || criteria.offset != 0 {
		t.Fatalf("count query must carry no paging, got limit %d offset %d", criteria.limit, criteria.offset)
	}
}

func TestParseFundingQueryRecoversPaging(t *testing.T) {
	query := "SELECT p.id AS id, " +
		"CONCAT(p.content.fundingStreamId, '-', " +
		"p.content.fundingPeriod.id, '-', " +
		"p.content.groupingReason, '-', " +
		"p.content.organisationGroupTypeCode, '-', " +
		"p.content.organisationGroupIdentifierValue, '-', " +
		"ToString(p.content.majorVersion), '_', " +
		"ToString(p.content.minorVersion), " +
		"'.json') AS DocumentPath " +
		"FROM publishedFunding p " +
		"WHERE p.documentType = 'PublishedFundingVersion' AND p.deleted = false" +
		" AND p.content.fundingStreamId IN ('PSG')" +
		" ORDER BY p.documentType, p.content.statusChangedDate, p.id, " +
		"p.content.fundingStreamId, p.content.fundingPeriod.id, " +
		"p.content.groupingReason, p.deleted OFFSET 50 LIMIT 50"

	criteria, err := parseFundingQuery(query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if criteria.isCount {
		t.Fatalf("paged query must not be recognised as count")
	}
	if criteria.offset != 50 || criteria.limit != 50 {
		t.Fatalf("paging = offset %d limit %d, want 50/50", criteria.offset, criteria.limit)
	}
	if len(criteria.fundingStreamIDs) != 1 || criteria.fundingStreamIDs[0] != "PSG" {
		t.Fatalf("funding streams = %v", criteria.fundingStreamIDs)
	}
	// The projection mentions these fields outside an IN list; they must not
	// be mistaken for filters.
	if criteria.fundingPeriodIDs != nil || criteria.groupingReasons != nil {
		t.Fatalf("projection columns leaked into filters: %v %v", criteria.fundingPeriodIDs, criteria.groupingReasons)
	}
}

func TestParseFundingQueryWithoutOffsetKeepsFirstPage(t *testing.T) {
	query := "... WHERE p.documentType = 'PublishedFundingVersion' AND p.deleted = false ORDER BY p.documentType LIMIT 50"

	criteria, err := parseFundingQuery(query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if criteria.offset != 0 || criteria.limit != 50 {
		t.Fatalf("paging = offset %d limit %d, want 0/50", criteria.offset, criteria.limit)
	}
}

func TestParseQuotedListUnescapesValues(t *testing.T) {
	values, err := parseQuotedList("AND p.content.fundingStreamId IN ('a''b','c')", "p.content.fundingStreamId IN (")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(values) != 2 || values[0] != "a'b" || values[1] != "c" {
		t.Fatalf("values = %v", values)
	}
}

func TestParseQuotedListRejectsUnterminatedList(t *testing.T) {
	if _, err := parseQuotedList("p.content.fundingStreamId IN ('PSG'", "p.content.fundingStreamId IN ("); err == nil {
		t.Fatalf("unterminated list must error")
	}
}
