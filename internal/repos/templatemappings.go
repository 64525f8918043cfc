package repos

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/calcfunding/publishing-backend/internal/platform/logger"
	"github.com/calcfunding/publishing-backend/internal/types"
)

type TemplateMappingRow struct {
	ID              string         `gorm:"primaryKey"`
	SpecificationID string         `gorm:"index;not null"`
	FundingStreamID string         `gorm:"index;not null"`
	Document        datatypes.JSON `gorm:"type:jsonb;not null"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()"`
}

func (TemplateMappingRow) TableName() string { return "template_mappings" }

func templateMappingID(specificationID, fundingStreamID string) string {
	return fmt.Sprintf("templatemapping-%s-%s", specificationID, fundingStreamID)
}

type TemplateMappingsRepo interface {
	// GetTemplateMapping returns nil when no mapping exists for the pair.
	GetTemplateMapping(ctx context.Context, tx *gorm.DB, specificationID, fundingStreamID string) (*types.TemplateMapping, error)
	UpdateTemplateMapping(ctx context.Context, tx *gorm.DB, mapping *types.TemplateMapping) error
}

type templateMappingsRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTemplateMappingsRepo(db *gorm.DB, baseLog *logger.Logger) TemplateMappingsRepo {
	return &templateMappingsRepo{
		db:  db,
		log: baseLog.With("repo", "TemplateMappingsRepo"),
	}
}

func (r *templateMappingsRepo) GetTemplateMapping(ctx context.Context, tx *gorm.DB, specificationID, fundingStreamID string) (*types.TemplateMapping, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row TemplateMappingRow
	err := transaction.WithContext(ctx).
		Where("id = ?", templateMappingID(specificationID, fundingStreamID)).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == "" {
		return nil, nil
	}
	var mapping types.TemplateMapping
	if err := json.Unmarshal(row.Document, &mapping); err != nil {
		return nil, err
	}
	return &mapping, nil
}

func (r *templateMappingsRepo) UpdateTemplateMapping(ctx context.Context, tx *gorm.DB, mapping *types.TemplateMapping) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	doc, err := json.Marshal(mapping)
	if err != nil {
		return err
	}
	row := TemplateMappingRow{
		ID:              templateMappingID(mapping.SpecificationID, mapping.FundingStreamID),
		SpecificationID: mapping.SpecificationID,
		FundingStreamID: mapping.FundingStreamID,
		Document:        datatypes.JSON(doc),
		UpdatedAt:       time.Now(),
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"document", "updated_at"}),
		}).
		Create(&row).Error
}
