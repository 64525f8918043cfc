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

type PublishedProviderRow struct {
	ID              string         `gorm:"primaryKey"`
	SpecificationID string         `gorm:"index;not null"`
	PartitionKey    string         `gorm:"index;not null"`
	Status          string         `gorm:"index"`
	Document        datatypes.JSON `gorm:"type:jsonb;not null"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()"`
}

func (PublishedProviderRow) TableName() string { return "published_providers" }

type PublishedProviderVersionRow struct {
	ID           string         `gorm:"primaryKey"`
	PartitionKey string         `gorm:"index;not null"`
	Version      int            `gorm:"not null"`
	Document     datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt    time.Time      `gorm:"not null;default:now()"`
}

func (PublishedProviderVersionRow) TableName() string { return "published_provider_versions" }

type PublishedProvidersRepo interface {
	GetPublishedProvidersForSpecification(ctx context.Context, tx *gorm.DB, specificationID string) ([]*types.PublishedProvider, error)
	// UpsertPublishedProviders bulk-persists the current version of each
	// provider keyed by its partition.
	UpsertPublishedProviders(ctx context.Context, tx *gorm.DB, providers []*types.PublishedProvider) error
	// CreateVersion appends an immutable version document under the given
	// partition key. The previous version, when present, is never modified.
	CreateVersion(ctx context.Context, tx *gorm.DB, newVersion *types.PublishedProviderVersion, partitionKey string) (*types.PublishedProviderVersion, error)
}

type publishedProvidersRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPublishedProvidersRepo(db *gorm.DB, baseLog *logger.Logger) PublishedProvidersRepo {
	return &publishedProvidersRepo{
		db:  db,
		log: baseLog.With("repo", "PublishedProvidersRepo"),
	}
}

func (r *publishedProvidersRepo) GetPublishedProvidersForSpecification(ctx context.Context, tx *gorm.DB, specificationID string) ([]*types.PublishedProvider, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []PublishedProviderRow
	if err := transaction.WithContext(ctx).
		Where("specification_id = ?", specificationID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*types.PublishedProvider, 0, len(rows))
	for i := range rows {
		var provider types.PublishedProvider
		if err := json.Unmarshal(rows[i].Document, &provider); err != nil {
			return nil, err
		}
		out = append(out, &provider)
	}
	return out, nil
}

func (r *publishedProvidersRepo) UpsertPublishedProviders(ctx context.Context, tx *gorm.DB, providers []*types.PublishedProvider) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(providers) == 0 {
		return nil
	}
	now := time.Now()
	rows := make([]PublishedProviderRow, 0, len(providers))
	for _, provider := range providers {
		if provider == nil || provider.Current == nil {
			continue
		}
		doc, err := json.Marshal(provider)
		if err != nil {
			return err
		}
		rows = append(rows, PublishedProviderRow{
			ID:              provider.ID(),
			SpecificationID: provider.Current.SpecificationID,
			PartitionKey:    provider.PartitionKey(),
			Status:          string(provider.Status()),
			Document:        datatypes.JSON(doc),
			UpdatedAt:       now,
		})
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "document", "updated_at"}),
		}).
		Create(&rows).Error
}

func (r *publishedProvidersRepo) CreateVersion(ctx context.Context, tx *gorm.DB, newVersion *types.PublishedProviderVersion, partitionKey string) (*types.PublishedProviderVersion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if newVersion == nil {
		return nil, fmt.Errorf("no version given to create")
	}
	doc, err := json.Marshal(newVersion)
	if err != nil {
		return nil, err
	}
	row := PublishedProviderVersionRow{
		ID:           fmt.Sprintf("%s-%d", newVersion.FundingID(), newVersion.Version),
		PartitionKey: partitionKey,
		Version:      newVersion.Version,
		Document:     datatypes.JSON(doc),
		CreatedAt:    time.Now(),
	}
	if err := transaction.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	return newVersion, nil
}
