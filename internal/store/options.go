package store

import (
	"gorm.io/gorm"
)

type SortOrder int

const (
	Unsorted SortOrder = iota
	SortByID
	SortByCreatedTime
	SortByUpdatedTime
)

// MaxPageSize bounds the number of rows a single list call may return.
const MaxPageSize = 100

type BaseQuerier struct {
	QueryFn []func(tx *gorm.DB) *gorm.DB
}

type InspectionQueryFilter BaseQuerier

func NewInspectionQueryFilter() *InspectionQueryFilter {
	return &InspectionQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (qf *InspectionQueryFilter) ByStatus(status string) *InspectionQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("status = ?", status)
	})
	return qf
}

func (qf *InspectionQueryFilter) ByIdempotencyKey(key string) *InspectionQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("idempotency_key = ?", key)
	})
	return qf
}

type InspectionQueryOptions BaseQuerier

func NewInspectionQueryOptions() *InspectionQueryOptions {
	return &InspectionQueryOptions{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (o *InspectionQueryOptions) WithSortOrder(sort SortOrder) *InspectionQueryOptions {
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		switch sort {
		case SortByID:
			return tx.Order("id")
		case SortByUpdatedTime:
			return tx.Order("updated_at")
		case SortByCreatedTime:
			return tx.Order("created_at")
		default:
			return tx
		}
	})
	return o
}

func (o *InspectionQueryOptions) WithLimit(limit int) *InspectionQueryOptions {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	capped := limit
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Limit(capped)
	})
	return o
}

func (o *InspectionQueryOptions) WithOffset(offset int) *InspectionQueryOptions {
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Offset(offset)
	})
	return o
}

type DeliveryJobQueryFilter BaseQuerier

func NewDeliveryJobQueryFilter() *DeliveryJobQueryFilter {
	return &DeliveryJobQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (qf *DeliveryJobQueryFilter) ByStatus(status string) *DeliveryJobQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("status = ?", status)
	})
	return qf
}

func (qf *DeliveryJobQueryFilter) ByInspectionID(id string) *DeliveryJobQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("inspection_id = ?", id)
	})
	return qf
}
