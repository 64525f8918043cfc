package repos

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/calcfunding/publishing-backend/internal/platform/logger"
	"github.com/calcfunding/publishing-backend/internal/types"
)

type PublishedFundingRow struct {
	ID              string         `gorm:"primaryKey"`
	SpecificationID string         `gorm:"index;not null"`
	Document        datatypes.JSON `gorm:"type:jsonb;not null"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()"`
}

func (PublishedFundingRow) TableName() string { return "published_funding" }

type PublishedFundingVersionRow struct {
	ID        string         `gorm:"primaryKey"`
	Document  datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null;default:now()"`
}

func (PublishedFundingVersionRow) TableName() string { return "published_funding_versions" }

type PublishedFundingRepo interface {
	GetLatestPublishedFundingForSpecification(ctx context.Context, tx *gorm.DB, specificationID string) ([]*types.PublishedFunding, error)
	UpsertPublishedFunding(ctx context.Context, tx *gorm.DB, funding []*types.PublishedFunding) error
	SavePublishedFundingVersions(ctx context.Context, tx *gorm.DB, versions []*types.PublishedFundingVersion) error
	// DynamicQuery executes query text produced by the published-funding
	// query builder. The dialect's filter, ordering and paging contract is
	// translated onto the jsonb document rows; the text itself never reaches
	// the database.
	DynamicQuery(ctx context.Context, query string) ([]map[string]interface{}, error)
	QueryCount(ctx context.Context, query string) (int, error)
}

type publishedFundingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPublishedFundingRepo(db *gorm.DB, baseLog *logger.Logger) PublishedFundingRepo {
	return &publishedFundingRepo{
		db:  db,
		log: baseLog.With("repo", "PublishedFundingRepo"),
	}
}

func (r *publishedFundingRepo) GetLatestPublishedFundingForSpecification(ctx context.Context, tx *gorm.DB, specificationID string) ([]*types.PublishedFunding, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []PublishedFundingRow
	if err := transaction.WithContext(ctx).
		Where("specification_id = ?", specificationID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*types.PublishedFunding, 0, len(rows))
	for i := range rows {
		var funding types.PublishedFunding
		if err := json.Unmarshal(rows[i].Document, &funding); err != nil {
			return nil, err
		}
		out = append(out, &funding)
	}
	return out, nil
}

func (r *publishedFundingRepo) UpsertPublishedFunding(ctx context.Context, tx *gorm.DB, funding []*types.PublishedFunding) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(funding) == 0 {
		return nil
	}
	now := time.Now()
	rows := make([]PublishedFundingRow, 0, len(funding))
	for _, f := range funding {
		if f == nil || f.Current == nil {
			continue
		}
		doc, err := json.Marshal(f)
		if err != nil {
			return err
		}
		rows = append(rows, PublishedFundingRow{
			ID:              f.ID(),
			SpecificationID: f.Current.SpecificationID,
			Document:        datatypes.JSON(doc),
			UpdatedAt:       now,
		})
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"document", "updated_at"}),
		}).
		Create(&rows).Error
}

func (r *publishedFundingRepo) SavePublishedFundingVersions(ctx context.Context, tx *gorm.DB, versions []*types.PublishedFundingVersion) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(versions) == 0 {
		return nil
	}
	now := time.Now()
	rows := make([]PublishedFundingVersionRow, 0, len(versions))
	for _, v := range versions {
		if v == nil {
			continue
		}
		doc, err := json.Marshal(v)
		if err != nil {
			return err
		}
		rows = append(rows, PublishedFundingVersionRow{
			ID:        fmt.Sprintf("%s-%d_%d", v.FundingID(), v.MajorVersion, v.MinorVersion),
			Document:  datatypes.JSON(doc),
			CreatedAt: now,
		})
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"document"}),
		}).
		Create(&rows).Error
}

func (r *publishedFundingRepo) DynamicQuery(ctx context.Context, query string) ([]map[string]interface{}, error) {
	criteria, err := parseFundingQuery(query)
	if err != nil {
		return nil, err
	}
	q := r.applyFundingCriteria(ctx, criteria).
		Order("document -> 'current' ->> 'statusChangedDate', id")
	if criteria.offset > 0 {
		q = q.Offset(criteria.offset)
	}
	if criteria.limit >= 0 {
		q = q.Limit(criteria.limit)
	}
	var rows []PublishedFundingRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(rows))
	for i := range rows {
		var funding types.PublishedFunding
		if err := json.Unmarshal(rows[i].Document, &funding); err != nil {
			return nil, err
		}
		if funding.Current == nil {
			continue
		}
		out = append(out, map[string]interface{}{
			"id":           rows[i].ID,
			"DocumentPath": funding.Current.DocumentPath(),
		})
	}
	return out, nil
}

func (r *publishedFundingRepo) QueryCount(ctx context.Context, query string) (int, error) {
	criteria, err := parseFundingQuery(query)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := r.applyFundingCriteria(ctx, criteria).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *publishedFundingRepo) applyFundingCriteria(ctx context.Context, criteria *fundingQueryCriteria) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&PublishedFundingRow{})
	if len(criteria.fundingStreamIDs) > 0 {
		q = q.Where("document -> 'current' ->> 'fundingStreamId' IN ?", criteria.fundingStreamIDs)
	}
	if len(criteria.fundingPeriodIDs) > 0 {
		q = q.Where("document -> 'current' ->> 'fundingPeriodId' IN ?", criteria.fundingPeriodIDs)
	}
	if len(criteria.groupingReasons) > 0 {
		q = q.Where("document -> 'current' ->> 'groupingReason' IN ?", criteria.groupingReasons)
	}
	return q
}

// fundingQueryCriteria is the filter/paging contract recovered from the query
// builder's text. limit -1 means no limit clause was present.
type fundingQueryCriteria struct {
	fundingStreamIDs []string
	fundingPeriodIDs []string
	groupingReasons  []string
	limit            int
	offset           int
	isCount          bool
}

// parseFundingQuery recovers the criteria from the fixed-shape query text the
// published-funding query builder emits. The builder is the only producer of
// this text, so the markers scanned for here are stable.
func parseFundingQuery(query string) (*fundingQueryCriteria, error) {
	criteria := &fundingQueryCriteria{limit: -1}
	criteria.isCount = strings.HasPrefix(query, "SELECT VALUE COUNT(1)")

	var err error
	if criteria.fundingStreamIDs, err = parseQuotedList(query, "p.content.fundingStreamId IN ("); err != nil {
		return nil, err
	}
	if criteria.fundingPeriodIDs, err = parseQuotedList(query, "p.content.fundingPeriod.id IN ("); err != nil {
		return nil, err
	}
	if criteria.groupingReasons, err = parseQuotedList(query, "p.content.groupingReason IN ("); err != nil {
		return nil, err
	}

	if i := strings.LastIndex(query, " LIMIT "); i >= 0 {
		limit, err := strconv.Atoi(strings.TrimSpace(query[i+len(" LIMIT "):]))
		if err != nil {
			return nil, fmt.Errorf("malformed LIMIT clause in funding query: %w", err)
		}
		criteria.limit = limit
	}
	if i := strings.LastIndex(query, " OFFSET "); i >= 0 {
		fields := strings.Fields(query[i+len(" OFFSET "):])
		if len(fields) == 0 {
			return nil, fmt.Errorf("malformed OFFSET clause in funding query")
		}
		offset, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("malformed OFFSET clause in funding query: %w", err)
		}
		criteria.offset = offset
	}
	return criteria, nil
}

// parseQuotedList reads the quoted values of an IN list starting after marker,
// honouring the builder's '' quote escaping. A missing marker yields nil.
func parseQuotedList(query, marker string) ([]string, error) {
	start := strings.Index(query, marker)
	if start < 0 {
		return nil, nil
	}
	var values []string
	var current strings.Builder
	inQuote := false
	for i := start + len(marker); i < len(query); i++ {
		ch := query[i]
		if inQuote {
			if ch != '\'' {
				current.WriteByte(ch)
				continue
			}
			if i+1 < len(query) && query[i+1] == '\'' {
				current.WriteByte('\'')
				i++
				continue
			}
			inQuote = false
			values = append(values, current.String())
			current.Reset()
			continue
		}
		switch ch {
		case '\'':
			inQuote = true
		case ',':
		case ')':
			return values, nil
		default:
			return nil, fmt.Errorf("malformed filter list in funding query")
		}
	}
	return nil, fmt.Errorf("unterminated filter list in funding query")
}
