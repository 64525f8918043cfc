package repos

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/calcfunding/publishing-backend/internal/platform/logger"
	"github.com/calcfunding/publishing-backend/internal/types"
)

type SpecificationRow struct {
	ID                       string         `gorm:"primaryKey"`
	FundingPeriodID          string         `gorm:"index"`
	IsSelectedForFunding     bool           `gorm:"not null;default:false"`
	CalculationLastUpdatedAt *time.Time     `gorm:"column:calculation_last_updated_at"`
	Document                 datatypes.JSON `gorm:"type:jsonb;not null"`
	UpdatedAt                time.Time      `gorm:"not null;default:now()"`
}

func (SpecificationRow) TableName() string { return "specifications" }

type SpecificationsRepo interface {
	// GetSpecificationSummaryByID returns nil when the specification is absent.
	GetSpecificationSummaryByID(ctx context.Context, tx *gorm.DB, specificationID string) (*types.SpecificationSummary, error)
	GetSpecificationsForFundingPeriod(ctx context.Context, tx *gorm.DB, fundingPeriodID string) ([]*types.SpecificationSummary, error)
	SelectSpecificationForFunding(ctx context.Context, tx *gorm.DB, specificationID string) error
	UpdateCalculationLastUpdatedDate(ctx context.Context, tx *gorm.DB, specificationID string) error
	UpsertSpecification(ctx context.Context, tx *gorm.DB, specification *types.SpecificationSummary) error
}

type specificationsRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSpecificationsRepo(db *gorm.DB, baseLog *logger.Logger) SpecificationsRepo {
	return &specificationsRepo{
		db:  db,
		log: baseLog.With("repo", "SpecificationsRepo"),
	}
}

func (r *specificationsRepo) GetSpecificationSummaryByID(ctx context.Context, tx *gorm.DB, specificationID string) (*types.SpecificationSummary, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if specificationID == "" {
		return nil, nil
	}
	var row SpecificationRow
	err := transaction.WithContext(ctx).
		Where("id = ?", specificationID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == "" {
		return nil, nil
	}
	return decodeSpecification(&row)
}

func (r *specificationsRepo) GetSpecificationsForFundingPeriod(ctx context.Context, tx *gorm.DB, fundingPeriodID string) ([]*types.SpecificationSummary, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []SpecificationRow
	if err := transaction.WithContext(ctx).
		Where("funding_period_id = ?", fundingPeriodID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*types.SpecificationSummary, 0, len(rows))
	for i := range rows {
		spec, err := decodeSpecification(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	return out, nil
}

func (r *specificationsRepo) SelectSpecificationForFunding(ctx context.Context, tx *gorm.DB, specificationID string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&SpecificationRow{}).
		Where("id = ?", specificationID).
		Updates(map[string]interface{}{
			"is_selected_for_funding": true,
			"updated_at":              time.Now(),
		}).Error
}

func (r *specificationsRepo) UpdateCalculationLastUpdatedDate(ctx context.Context, tx *gorm.DB, specificationID string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	return transaction.WithContext(ctx).
		Model(&SpecificationRow{}).
		Where("id = ?", specificationID).
		Updates(map[string]interface{}{
			"calculation_last_updated_at": now,
			"updated_at":                  now,
		}).Error
}

func (r *specificationsRepo) UpsertSpecification(ctx context.Context, tx *gorm.DB, specification *types.SpecificationSummary) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	doc, err := json.Marshal(specification)
	if err != nil {
		return err
	}
	row := SpecificationRow{
		ID:                   specification.ID,
		FundingPeriodID:      specification.FundingPeriod.ID,
		IsSelectedForFunding: specification.IsSelectedForFunding,
		Document:             datatypes.JSON(doc),
		UpdatedAt:            time.Now(),
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"funding_period_id", "is_selected_for_funding", "document", "updated_at"}),
		}).
		Create(&row).Error
}

func decodeSpecification(row *SpecificationRow) (*types.SpecificationSummary, error) {
	var spec types.SpecificationSummary
	if err := json.Unmarshal(row.Document, &spec); err != nil {
		return nil, err
	}
	spec.IsSelectedForFunding = row.IsSelectedForFunding
	return &spec, nil
}
