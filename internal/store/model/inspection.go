package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Inspection statuses. The lifecycle is fixed: draft -> submitted -> archived.
const (
	InspectionStatusDraft     = "draft"
	InspectionStatusSubmitted = "submitted"
	InspectionStatusArchived  = "archived"
)

// Audit actions recorded in the inspection's audit log.
const (
	AuditActionCreated           = "created"
	AuditActionModified          = "modified"
	AuditActionTransition        = "transition"
	AuditActionAttachmentUpdated = "attachment_updated"
	AuditActionNotified          = "notified"
)

type ChecklistItem struct {
	PointID string `json:"pointId"`
	Label   string `json:"label"`
	Checked bool   `json:"checked"`
}

type AuditEntry struct {
	Action     string    `json:"action"`
	Timestamp  time.Time `json:"timestamp"`
	FromStatus string    `json:"fromStatus,omitempty"`
	ToStatus   string    `json:"toStatus,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

type Inspection struct {
	ID              uuid.UUID `gorm:"primaryKey;"`
	IdempotencyKey  *string   `gorm:"uniqueIndex:inspections_idempotency_key;type:VARCHAR(255)"`
	Checklist       *JSONField[[]ChecklistItem] `gorm:"type:jsonb;not null"`
	CompletionRatio float64                     `gorm:"not null;default:0"`
	Status          string                      `gorm:"not null;type:VARCHAR(20);index:inspections_status_idx"`
	AttachmentRef   *string
	AuditLog        *JSONField[[]AuditEntry] `gorm:"type:jsonb"`
	CreatedAt       time.Time                `gorm:"not null"`
	UpdatedAt       time.Time
	CompletedAt     *time.Time
	DeliveryJobs    []DeliveryJob `gorm:"foreignKey:InspectionID;references:ID;constraint:OnDelete:CASCADE;"`
}

type InspectionList []Inspection

func (i Inspection) String() string {
	val, _ := json.Marshal(i)
	return string(val)
}

// ComputeCompletionRatio returns checked/total for the given checklist.
// An empty checklist yields 0.
func ComputeCompletionRatio(items []ChecklistItem) float64 {
	if len(items) == 0 {
		return 0
	}
	checked := 0
	for _, item := range items {
		if item.Checked {
			checked++
		}
	}
	return float64(checked) / float64(len(items))
}
