package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fieldform/inspection-api/internal/store/model"
)

type Inspection interface {
	Create(ctx context.Context, inspection model.Inspection) (*model.Inspection, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Inspection, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*model.Inspection, error)
	List(ctx context.Context, filter *InspectionQueryFilter, opts *InspectionQueryOptions) (model.InspectionList, error)
	Update(ctx context.Context, inspection model.Inspection, fields []string) (*model.Inspection, error)
	Delete(ctx context.Context, id uuid.UUID) error
	InitialMigration() error
}

type InspectionStore struct {
	db *gorm.DB
}

// Make sure we conform to Inspection interface
var _ Inspection = (*InspectionStore)(nil)

func NewInspectionStore(db *gorm.DB) Inspection {
	return &InspectionStore{db: db}
}

func (s *InspectionStore) InitialMigration() error {
	return s.db.AutoMigrate(&model.Inspection{})
}

// Create persists a new inspection. The unique index on idempotency_key makes
// the insert the atomic insert-or-conflict primitive: a concurrent duplicate
// submission loses the race and observes ErrDuplicateKey.
func (s *InspectionStore) Create(ctx context.Context, inspection model.Inspection) (*model.Inspection, error) {
	result := s.getDB(ctx).Create(&inspection)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, result.Error
	}
	return &inspection, nil
}

func (s *InspectionStore) Get(ctx context.Context, id uuid.UUID) (*model.Inspection, error) {
	inspection := model.Inspection{ID: id}
	result := s.getDB(ctx).First(&inspection)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, result.Error
	}
	return &inspection, nil
}

func (s *InspectionStore) GetByIdempotencyKey(ctx context.Context, key string) (*model.Inspection, error) {
	var inspection model.Inspection
	result := s.getDB(ctx).Where("idempotency_key = ?", key).First(&inspection)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, result.Error
	}
	return &inspection, nil
}

func (s *InspectionStore) List(ctx context.Context, filter *InspectionQueryFilter, opts *InspectionQueryOptions) (model.InspectionList, error) {
	var inspections model.InspectionList

	tx := s.getDB(ctx).Model(&model.Inspection{})
	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}
	if opts != nil {
		for _, fn := range opts.QueryFn {
			tx = fn(tx)
		}
	}

	if result := tx.Find(&inspections); result.Error != nil {
		return nil, result.Error
	}
	return inspections, nil
}

// Update writes only the selected fields and returns the stored row.
func (s *InspectionStore) Update(ctx context.Context, inspection model.Inspection, fields []string) (*model.Inspection, error) {
	result := s.getDB(ctx).Model(&inspection).
		Clauses(clause.Returning{}).
		Select(fields).
		Updates(&inspection)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrRecordNotFound
	}
	return &inspection, nil
}

func (s *InspectionStore) Delete(ctx context.Context, id uuid.UUID) error {
	result := s.getDB(ctx).Unscoped().Delete(&model.Inspection{ID: id})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *InspectionStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
