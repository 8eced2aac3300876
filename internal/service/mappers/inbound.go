package mappers

import (
	api "github.com/fieldform/inspection-api/api/v1alpha1"
	"github.com/fieldform/inspection-api/internal/store/model"
)

// ChecklistFromApi preserves the submitted order exactly: the checklist maps
// onto a fixed external form.
func ChecklistFromApi(items []api.ChecklistItem) []model.ChecklistItem {
	checklist := make([]model.ChecklistItem, 0, len(items))
	for _, item := range items {
		checklist = append(checklist, model.ChecklistItem{
			PointID: item.PointId,
			Label:   item.Label,
			Checked: item.Checked,
		})
	}
	return checklist
}
