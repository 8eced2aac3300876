package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fieldform/inspection-api/internal/store/model"
)

// maxErrorLength bounds the stored delivery error text so verbose transport
// stack traces cannot grow the table unbounded.
const maxErrorLength = 512

type DeliveryJob interface {
	Enqueue(ctx context.Context, job model.DeliveryJob) (*model.DeliveryJob, error)
	Get(ctx context.Context, id uuid.UUID) (*model.DeliveryJob, error)
	List(ctx context.Context, filter *DeliveryJobQueryFilter) (model.DeliveryJobList, error)
	ClaimBatch(ctx context.Context, max int) (model.DeliveryJobList, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, deliveryError string, maxRetries int) (*model.DeliveryJob, error)
	CancelForInspection(ctx context.Context, inspectionID uuid.UUID) (int64, error)
	Stats(ctx context.Context) (*model.QueueStats, error)
	InitialMigration() error
}

type DeliveryJobStore struct {
	db *gorm.DB
}

// Make sure we conform to DeliveryJob interface
var _ DeliveryJob = (*DeliveryJobStore)(nil)

func NewDeliveryJobStore(db *gorm.DB) DeliveryJob {
	return &DeliveryJobStore{db: db}
}

func (s *DeliveryJobStore) InitialMigration() error {
	return s.db.AutoMigrate(&model.DeliveryJob{})
}

func (s *DeliveryJobStore) Enqueue(ctx context.Context, job model.DeliveryJob) (*model.DeliveryJob, error) {
	job.Status = model.JobStatusPending
	result := s.getDB(ctx).Create(&job)
	if result.Error != nil {
		return nil, result.Error
	}
	return &job, nil
}

func (s *DeliveryJobStore) Get(ctx context.Context, id uuid.UUID) (*model.DeliveryJob, error) {
	job := model.DeliveryJob{ID: id}
	result := s.getDB(ctx).First(&job)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, result.Error
	}
	return &job, nil
}

func (s *DeliveryJobStore) List(ctx context.Context, filter *DeliveryJobQueryFilter) (model.DeliveryJobList, error) {
	var jobs model.DeliveryJobList

	tx := s.getDB(ctx).Model(&model.DeliveryJob{})
	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	if result := tx.Order("created_at").Find(&jobs); result.Error != nil {
		return nil, result.Error
	}
	return jobs, nil
}

// ClaimBatch moves up to max pending jobs to in_flight and returns them
// oldest first. The per-row conditional update guarantees that two concurrent
// claimers never obtain the same job: the update succeeds only if the row is
// still pending at the time the lock is taken.
func (s *DeliveryJobStore) ClaimBatch(ctx context.Context, max int) (model.DeliveryJobList, error) {
	if max <= 0 {
		return model.DeliveryJobList{}, nil
	}

	claimed := model.DeliveryJobList{}
	err := s.getDB(ctx).Transaction(func(tx *gorm.DB) error {
		var candidates model.DeliveryJobList
		result := tx.
			Where("status = ?", model.JobStatusPending).
			Order("created_at").
			Limit(max).
			Find(&candidates)
		if result.Error != nil {
			return result.Error
		}

		for _, job := range candidates {
			res := tx.Model(&model.DeliveryJob{}).
				Where("id = ? AND status = ?", job.ID, model.JobStatusPending).
				Update("status", model.JobStatusInFlight)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				job.Status = model.JobStatusInFlight
				claimed = append(claimed, job)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// MarkSent is terminal and irreversible. Only an in_flight job can be marked.
func (s *DeliveryJobStore) MarkSent(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	result := s.getDB(ctx).Model(&model.DeliveryJob{}).
		Where("id = ? AND status = ?", id, model.JobStatusInFlight).
		Updates(map[string]any{
			"status":  model.JobStatusSent,
			"sent_at": &now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// MarkFailed increments the retry counter. Below the ceiling the job returns
// to pending for another attempt; at the ceiling it becomes terminally failed.
func (s *DeliveryJobStore) MarkFailed(ctx context.Context, id uuid.UUID, deliveryError string, maxRetries int) (*model.DeliveryJob, error) {
	if len(deliveryError) > maxErrorLength {
		deliveryError = deliveryError[:maxErrorLength]
	}

	var job model.DeliveryJob
	err := s.getDB(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND status = ?", id, model.JobStatusInFlight).First(&job)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return ErrRecordNotFound
			}
			return result.Error
		}

		job.RetryCount++
		job.LastError = deliveryError
		job.Status = model.JobStatusPending
		if job.RetryCount >= maxRetries {
			job.Status = model.JobStatusFailed
		}

		return tx.Model(&job).
			Select([]string{"status", "retry_count", "last_error"}).
			Updates(&job).Error
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CancelForInspection removes every job belonging to the inspection, whatever
// its status. Used by the record-delete cascade so no job outlives its record.
func (s *DeliveryJobStore) CancelForInspection(ctx context.Context, inspectionID uuid.UUID) (int64, error) {
	result := s.getDB(ctx).Unscoped().
		Where("inspection_id = ?", inspectionID).
		Delete(&model.DeliveryJob{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (s *DeliveryJobStore) Stats(ctx context.Context) (*model.QueueStats, error) {
	type statusCount struct {
		Status string
		Count  int64
	}

	var counts []statusCount
	result := s.getDB(ctx).Model(&model.DeliveryJob{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&counts)
	if result.Error != nil {
		return nil, result.Error
	}

	stats := model.QueueStats{}
	for _, c := range counts {
		switch c.Status {
		case model.JobStatusPending:
			stats.Pending = c.Count
		case model.JobStatusInFlight:
			stats.InFlight = c.Count
		case model.JobStatusSent:
			stats.Sent = c.Count
		case model.JobStatusFailed:
			stats.Failed = c.Count
		}
	}
	return &stats, nil
}

func (s *DeliveryJobStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
