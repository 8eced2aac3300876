package service

import (
	"github.com/fieldform/inspection-api/internal/store/model"
)

// allowedTransitions is the full lifecycle of an inspection. A transition to
// the same state is always accepted as a no-op and is not listed here.
var allowedTransitions = map[string][]string{
	model.InspectionStatusDraft:     {model.InspectionStatusSubmitted, model.InspectionStatusArchived},
	model.InspectionStatusSubmitted: {model.InspectionStatusArchived},
	model.InspectionStatusArchived:  {},
}

func IsValidStatus(status string) bool {
	_, ok := allowedTransitions[status]
	return ok
}

// CanTransition reports whether from -> to is an accepted lifecycle change.
// Same-state transitions are idempotent no-ops and always accepted.
func CanTransition(from, to string) bool {
	if from == to {
		return IsValidStatus(to)
	}
	for _, target := range allowedTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}
