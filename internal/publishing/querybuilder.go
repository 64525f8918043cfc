package publishing

import (
	"fmt"
	"strings"
)

// PublishedFundingQueryBuilder assembles read-only document-store queries over
// the publishedFunding collection. It performs no I/O; the produced text is
// executed through the published-funding repository's dynamic query surface.
type PublishedFundingQueryBuilder struct{}

func NewPublishedFundingQueryBuilder() *PublishedFundingQueryBuilder {
	return &PublishedFundingQueryBuilder{}
}

// BuildCountQuery returns the total-count query with the same predicate set as
// the paged query.
func (b *PublishedFundingQueryBuilder) BuildCountQuery(fundingStreamIDs, fundingPeriodIDs, groupingReasons []string) string {
	var sb strings.Builder
	sb.WriteString("SELECT VALUE COUNT(1) FROM publishedFunding p WHERE p.documentType = 'PublishedFundingVersion' AND p.deleted = false")
	writePredicates(&sb, fundingStreamIDs, fundingPeriodIDs, groupingReasons)
	return sb.String()
}

// BuildQuery returns the paged listing query. pageRef is 1-based; when nil the
// query emits only LIMIT, giving first-page semantics without an offset.
func (b *PublishedFundingQueryBuilder) BuildQuery(fundingStreamIDs, fundingPeriodIDs, groupingReasons []string, top int, pageRef *int) string {
	var sb strings.Builder
	sb.WriteString("SELECT p.id AS id, ")
	sb.WriteString("CONCAT(p.content.fundingStreamId, '-', ")
	sb.WriteString("p.content.fundingPeriod.id, '-', ")
	sb.WriteString("p.content.groupingReason, '-', ")
	sb.WriteString("p.content.organisationGroupTypeCode, '-', ")
	sb.WriteString("p.content.organisationGroupIdentifierValue, '-', ")
	sb.WriteString("ToString(p.content.majorVersion), '_', ")
	sb.WriteString("ToString(p.content.minorVersion), ")
	sb.WriteString("'.json') AS DocumentPath ")
	sb.WriteString("FROM publishedFunding p ")
	sb.WriteString("WHERE p.documentType = 'PublishedFundingVersion' AND p.deleted = false")
	writePredicates(&sb, fundingStreamIDs, fundingPeriodIDs, groupingReasons)
	sb.WriteString(" ORDER BY p.documentType, ")
	sb.WriteString("p.content.statusChangedDate, p.id, ")
	sb.WriteString("p.content.fundingStreamId, ")
	sb.WriteString("p.content.fundingPeriod.id, ")
	sb.WriteString("p.content.groupingReason, ")
	sb.WriteString("p.deleted")
	if pageRef != nil {
		sb.WriteString(fmt.Sprintf(" OFFSET %d LIMIT %d", (*pageRef-1)*top, top))
	} else {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", top))
	}
	return sb.String()
}

// Empty filter sets contribute no clause at all rather than an always-true
// predicate.
func writePredicates(sb *strings.Builder, fundingStreamIDs, fundingPeriodIDs, groupingReasons []string) {
	if len(fundingStreamIDs) > 0 {
		sb.WriteString(" AND p.content.fundingStreamId IN (" + quoteJoin(fundingStreamIDs) + ")")
	}
	if len(fundingPeriodIDs) > 0 {
		sb.WriteString(" AND p.content.fundingPeriod.id IN (" + quoteJoin(fundingPeriodIDs) + ")")
	}
	if len(groupingReasons) > 0 {
		sb.WriteString(" AND p.content.groupingReason IN (" + quoteJoin(groupingReasons) + ")")
	}
}

func quoteJoin(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, "'"+strings.ReplaceAll(value, "'", "''")+"'")
	}
	return strings.Join(quoted, ",")
}
