package store

import (
	"context"

	"gorm.io/gorm"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	Inspection() Inspection
	DeliveryJob() DeliveryJob
	InitialMigration() error
	Close() error
}

type DataStore struct {
	db          *gorm.DB
	inspection  Inspection
	deliveryJob DeliveryJob
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		inspection:  NewInspectionStore(db),
		deliveryJob: NewDeliveryJobStore(db),
		db:          db,
	}
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db)
}

func (s *DataStore) Inspection() Inspection {
	return s.inspection
}

func (s *DataStore) DeliveryJob() DeliveryJob {
	return s.deliveryJob
}

func (s *DataStore) InitialMigration() error {
	if err := s.inspection.InitialMigration(); err != nil {
		return err
	}
	return s.deliveryJob.InitialMigration()
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
