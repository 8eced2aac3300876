package mappers

import (
	api "github.com/fieldform/inspection-api/api/v1alpha1"
	"github.com/fieldform/inspection-api/internal/store/model"
)

func InspectionToApi(i model.Inspection) api.Inspection {
	out := api.Inspection{
		Id:              i.ID.String(),
		Status:          i.Status,
		CompletionRatio: i.CompletionRatio,
		AttachmentRef:   i.AttachmentRef,
		CreatedAt:       i.CreatedAt,
		UpdatedAt:       i.UpdatedAt,
		CompletedAt:     i.CompletedAt,
	}

	if i.Checklist != nil {
		out.Checklist = make([]api.ChecklistItem, 0, len(i.Checklist.Data))
		for _, item := range i.Checklist.Data {
			out.Checklist = append(out.Checklist, api.ChecklistItem{
				PointId: item.PointID,
				Label:   item.Label,
				Checked: item.Checked,
			})
		}
	}

	if i.AuditLog != nil {
		out.AuditLog = make([]api.AuditEntry, 0, len(i.AuditLog.Data))
		for _, entry := range i.AuditLog.Data {
			out.AuditLog = append(out.AuditLog, api.AuditEntry{
				Action:     entry.Action,
				Timestamp:  entry.Timestamp,
				FromStatus: entry.FromStatus,
				ToStatus:   entry.ToStatus,
				Detail:     entry.Detail,
			})
		}
	}

	return out
}

func InspectionListToApi(inspections model.InspectionList) api.InspectionList {
	out := make(api.InspectionList, 0, len(inspections))
	for _, i := range inspections {
		out = append(out, InspectionToApi(i))
	}
	return out
}

func DeliveryJobToApi(job model.DeliveryJob) api.DeliveryJob {
	return api.DeliveryJob{
		Id:           job.ID.String(),
		InspectionId: job.InspectionID.String(),
		Recipient:    job.Recipient,
		Subject:      job.Subject,
		Status:       job.Status,
		RetryCount:   job.RetryCount,
		LastError:    job.LastError,
		CreatedAt:    job.CreatedAt,
		SentAt:       job.SentAt,
	}
}

func QueueStatsToApi(stats model.QueueStats) api.QueueStats {
	return api.QueueStats{
		Pending:  stats.Pending,
		InFlight: stats.InFlight,
		Sent:     stats.Sent,
		Failed:   stats.Failed,
	}
}
