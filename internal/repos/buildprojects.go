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

type BuildProjectRow struct {
	ID              string         `gorm:"primaryKey"`
	SpecificationID string         `gorm:"uniqueIndex;not null"`
	Document        datatypes.JSON `gorm:"type:jsonb;not null"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()"`
}

func (BuildProjectRow) TableName() string { return "build_projects" }

type BuildProjectsRepo interface {
	// GetBuildProjectBySpecificationID returns nil when no build project has
	// been created for the specification yet.
	GetBuildProjectBySpecificationID(ctx context.Context, tx *gorm.DB, specificationID string) (*types.BuildProject, error)
	CreateBuildProject(ctx context.Context, tx *gorm.DB, buildProject *types.BuildProject) error
	UpdateBuildProject(ctx context.Context, tx *gorm.DB, buildProject *types.BuildProject) error
}

type buildProjectsRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBuildProjectsRepo(db *gorm.DB, baseLog *logger.Logger) BuildProjectsRepo {
	return &buildProjectsRepo{
		db:  db,
		log: baseLog.With("repo", "BuildProjectsRepo"),
	}
}

func (r *buildProjectsRepo) GetBuildProjectBySpecificationID(ctx context.Context, tx *gorm.DB, specificationID string) (*types.BuildProject, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if specificationID == "" {
		return nil, nil
	}
	var row BuildProjectRow
	err := transaction.WithContext(ctx).
		Where("specification_id = ?", specificationID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == "" {
		return nil, nil
	}
	var project types.BuildProject
	if err := json.Unmarshal(row.Document, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *buildProjectsRepo) CreateBuildProject(ctx context.Context, tx *gorm.DB, buildProject *types.BuildProject) error {
	return r.save(ctx, tx, buildProject)
}

func (r *buildProjectsRepo) UpdateBuildProject(ctx context.Context, tx *gorm.DB, buildProject *types.BuildProject) error {
	return r.save(ctx, tx, buildProject)
}

func (r *buildProjectsRepo) save(ctx context.Context, tx *gorm.DB, buildProject *types.BuildProject) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	doc, err := json.Marshal(buildProject)
	if err != nil {
		return err
	}
	row := BuildProjectRow{
		ID:              buildProject.ID,
		SpecificationID: buildProject.SpecificationID,
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
