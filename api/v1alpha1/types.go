// Package v1alpha1 contains the wire types of the inspection API.
package v1alpha1

import (
	"time"
)

type ChecklistItem struct {
	PointId string `json:"pointId" validate:"point_id"`
	Label   string `json:"label" validate:"required"`
	Checked bool   `json:"checked"`
}

type InspectionCreate struct {
	Status    *string         `json:"status,omitempty" validate:"omitempty,oneof=draft submitted"`
	Checklist []ChecklistItem `json:"checklist" validate:"required,min=1,dive"`
}

type InspectionUpdate struct {
	Status    *string         `json:"status,omitempty" validate:"omitempty,oneof=draft submitted archived"`
	Checklist []ChecklistItem `json:"checklist,omitempty" validate:"omitempty,min=1,dive"`
}

type AuditEntry struct {
	Action     string    `json:"action"`
	Timestamp  time.Time `json:"timestamp"`
	FromStatus string    `json:"fromStatus,omitempty"`
	ToStatus   string    `json:"toStatus,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

type Inspection struct {
	Id              string          `json:"id"`
	Status          string          `json:"status"`
	CompletionRatio float64         `json:"completionRatio"`
	Checklist       []ChecklistItem `json:"checklist,omitempty"`
	AttachmentRef   *string         `json:"attachmentRef,omitempty"`
	AuditLog        []AuditEntry    `json:"auditLog,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	CompletedAt     *time.Time      `json:"completedAt,omitempty"`
}

type InspectionList []Inspection

type NotifyRequest struct {
	Recipient string `json:"recipient" validate:"required,email"`
	Subject   string `json:"subject,omitempty"`
	Body      string `json:"body,omitempty"`
}

type NotifyResponse struct {
	JobId string `json:"jobId"`
}

type DeliveryJob struct {
	Id           string     `json:"id"`
	InspectionId string     `json:"inspectionId"`
	Recipient    string     `json:"recipient"`
	Subject      string     `json:"subject,omitempty"`
	Status       string     `json:"status"`
	RetryCount   int        `json:"retryCount"`
	LastError    string     `json:"lastError,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	SentAt       *time.Time `json:"sentAt,omitempty"`
}

type QueueStats struct {
	Pending  int64 `json:"pending"`
	InFlight int64 `json:"inFlight"`
	Sent     int64 `json:"sent"`
	Failed   int64 `json:"failed"`
}

type DispatchResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

type Error struct {
	Message string `json:"message"`
}
