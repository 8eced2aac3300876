package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Delivery job statuses. A job is claimed by moving it from pending to
// in_flight; sent and failed are terminal.
const (
	JobStatusPending  = "pending"
	JobStatusInFlight = "in_flight"
	JobStatusSent     = "sent"
	JobStatusFailed   = "failed"
)

type DeliveryJob struct {
	ID            uuid.UUID `gorm:"primaryKey;"`
	InspectionID  uuid.UUID `gorm:"not null;index:delivery_jobs_inspection_id_idx"`
	Recipient     string    `gorm:"not null;type:VARCHAR(320)"`
	Subject       string    `gorm:"type:VARCHAR(255)"`
	Body          string
	AttachmentRef *string
	Status        string `gorm:"not null;type:VARCHAR(20);index:delivery_jobs_status_idx"`
	RetryCount    int    `gorm:"not null;default:0"`
	LastError     string `gorm:"type:VARCHAR(512)"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time
	SentAt        *time.Time
}

type DeliveryJobList []DeliveryJob

// QueueStats is the operator-facing view of the delivery queue.
type QueueStats struct {
	Pending  int64 `json:"pending"`
	InFlight int64 `json:"inFlight"`
	Sent     int64 `json:"sent"`
	Failed   int64 `json:"failed"`
}

func (j DeliveryJob) String() string {
	val, _ := json.Marshal(j)
	return string(val)
}
