package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calcfunding/publishing-backend/internal/platform/logger"
	"github.com/calcfunding/publishing-backend/internal/repos"
	"github.com/calcfunding/publishing-backend/internal/types"
)

// CalculationsService owns calculation lifecycle: creation of default
// template calculations and edits driven by template reconciliation. Every
// change appends a new version; history is never rewritten.
type CalculationsService interface {
	GetCalculationByID(ctx context.Context, calculationID string) (*types.Calculation, error)
	GetCalculationsBySpecificationID(ctx context.Context, specificationID string) ([]*types.Calculation, error)
	CreateCalculation(ctx context.Context, model *types.CalculationCreateModel, author types.Reference, correlationID string) (*types.Calculation, error)
	EditCalculation(ctx context.Context, specificationID, calculationID string, edit *types.CalculationEditModel, author types.Reference, correlationID string, isMissingCalculation bool) (*types.Calculation, error)
}

type calculationsService struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.CalculationsRepo
}

func NewCalculationsService(db *gorm.DB, baseLog *logger.Logger, repo repos.CalculationsRepo) CalculationsService {
	return &calculationsService{
		db:   db,
		log:  baseLog.With("service", "CalculationsService"),
		repo: repo,
	}
}

func (s *calculationsService) GetCalculationByID(ctx context.Context, calculationID string) (*types.Calculation, error) {
	return s.repo.GetCalculationByID(ctx, nil, calculationID)
}

func (s *calculationsService) GetCalculationsBySpecificationID(ctx context.Context, specificationID string) ([]*types.Calculation, error) {
	return s.repo.GetCalculationsBySpecificationID(ctx, nil, specificationID)
}

func (s *calculationsService) CreateCalculation(ctx context.Context, model *types.CalculationCreateModel, author types.Reference, correlationID string) (*types.Calculation, error) {
	if model == nil {
		return nil, fmt.Errorf("no calculation create model given")
	}
	if model.SpecificationID == "" || model.Name == "" {
		return nil, fmt.Errorf("calculation create model requires a specification id and name")
	}
	calculation := &types.Calculation{
		ID:              uuid.New().String(),
		SpecificationID: model.SpecificationID,
		FundingStreamID: model.FundingStreamID,
		Namespace:       types.CalculationNamespaceTemplate,
		Type:            types.CalculationTypeTemplate,
	}
	version := &types.CalculationVersion{
		CalculationID: calculation.ID,
		Name:          model.Name,
		SourceCode:    model.SourceCode,
		ValueType:     model.ValueType,
		PublishStatus: types.PublicationStatusDraft,
		Author:        author,
		Version:       1,
		Date:          time.Now(),
	}
	calculation.Current = version
	calculation.History = []*types.CalculationVersion{version}
	if err := s.repo.UpsertCalculation(ctx, nil, calculation); err != nil {
		s.log.Error("Failed to create calculation", "calculation_id", calculation.ID, "specification_id", model.SpecificationID, "correlation_id", correlationID, "error", err)
		return nil, err
	}
	return calculation, nil
}

func (s *calculationsService) EditCalculation(ctx context.Context, specificationID, calculationID string, edit *types.CalculationEditModel, author types.Reference, correlationID string, isMissingCalculation bool) (*types.Calculation, error) {
	if edit == nil {
		return nil, fmt.Errorf("no calculation edit model given")
	}
	calculation, err := s.repo.GetCalculationByID(ctx, nil, calculationID)
	if err != nil {
		return nil, err
	}
	if calculation == nil {
		if !isMissingCalculation {
			return nil, fmt.Errorf("calculation '%s' not found", calculationID)
		}
		// Orphaned mapping entry: recreate the calculation in place under
		// the same id so the mapping stays valid.
		calculation = &types.Calculation{
			ID:              calculationID,
			SpecificationID: specificationID,
			Namespace:       types.CalculationNamespaceTemplate,
			Type:            types.CalculationTypeTemplate,
		}
	}
	previous := calculation.Current
	version := &types.CalculationVersion{
		CalculationID: calculationID,
		Name:          edit.Name,
		ValueType:     edit.ValueType,
		PublishStatus: types.PublicationStatusDraft,
		Author:        author,
		Version:       1,
		Date:          time.Now(),
	}
	if previous != nil {
		version.Version = previous.Version + 1
		version.SourceCode = previous.SourceCode
		if version.Name == "" {
			version.Name = previous.Name
		}
		if version.ValueType == "" {
			version.ValueType = previous.ValueType
		}
	}
	if edit.SourceCode != nil {
		version.SourceCode = *edit.SourceCode
	}
	calculation.Current = version
	calculation.History = append(calculation.History, version)
	if err := s.repo.UpsertCalculation(ctx, nil, calculation); err != nil {
		s.log.Error("Failed to edit calculation", "calculation_id", calculationID, "correlation_id", correlationID, "error", err)
		return nil, err
	}
	return calculation, nil
}
