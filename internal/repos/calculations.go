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

// CalculationRow is the document-store row shape: identity and partition
// columns plus the full calculation as a jsonb document.
type CalculationRow struct {
	ID              string         `gorm:"primaryKey"`
	SpecificationID string         `gorm:"index;not null"`
	FundingStreamID string         `gorm:"index"`
	Document        datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt       time.Time      `gorm:"not null;default:now()"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()"`
}

func (CalculationRow) TableName() string { return "calculations" }

type CalculationsRepo interface {
	GetCalculationByID(ctx context.Context, tx *gorm.DB, calculationID string) (*types.Calculation, error)
	GetCalculationsBySpecificationID(ctx context.Context, tx *gorm.DB, specificationID string) ([]*types.Calculation, error)
	UpsertCalculation(ctx context.Context, tx *gorm.DB, calculation *types.Calculation) error
}

type calculationsRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCalculationsRepo(db *gorm.DB, baseLog *logger.Logger) CalculationsRepo {
	return &calculationsRepo{
		db:  db,
		log: baseLog.With("repo", "CalculationsRepo"),
	}
}

func (r *calculationsRepo) GetCalculationByID(ctx context.Context, tx *gorm.DB, calculationID string) (*types.Calculation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if calculationID == "" {
		return nil, nil
	}
	var row CalculationRow
	err := transaction.WithContext(ctx).
		Where("id = ?", calculationID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == "" {
		return nil, nil
	}
	return decodeCalculation(&row)
}

func (r *calculationsRepo) GetCalculationsBySpecificationID(ctx context.Context, tx *gorm.DB, specificationID string) ([]*types.Calculation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []CalculationRow
	if err := transaction.WithContext(ctx).
		Where("specification_id = ?", specificationID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*types.Calculation, 0, len(rows))
	for i := range rows {
		calc, err := decodeCalculation(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, calc)
	}
	return out, nil
}

func (r *calculationsRepo) UpsertCalculation(ctx context.Context, tx *gorm.DB, calculation *types.Calculation) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	doc, err := json.Marshal(calculation)
	if err != nil {
		return err
	}
	now := time.Now()
	row := CalculationRow{
		ID:              calculation.ID,
		SpecificationID: calculation.SpecificationID,
		FundingStreamID: calculation.FundingStreamID,
		Document:        datatypes.JSON(doc),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"document", "updated_at"}),
		}).
		Create(&row).Error
}

func decodeCalculation(row *CalculationRow) (*types.Calculation, error) {
	var calc types.Calculation
	if err := json.Unmarshal(row.Document, &calc); err != nil {
		return nil, err
	}
	return &calc, nil
}
