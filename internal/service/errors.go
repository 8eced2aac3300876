package service

import (
	"fmt"

	"github.com/google/uuid"
)

type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id uuid.UUID, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %s not found", resourceType, id)}
}

func NewErrInspectionNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "inspection")
}

func NewErrJobNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "delivery job")
}

type ErrInvalidTransition struct {
	error
	From string
	To   string
}

func NewErrInvalidTransition(from, to string) *ErrInvalidTransition {
	return &ErrInvalidTransition{
		error: fmt.Errorf("invalid status transition from %s to %s", from, to),
		From:  from,
		To:    to,
	}
}

type ErrValidation struct {
	error
}

func NewErrValidation(message string) *ErrValidation {
	return &ErrValidation{fmt.Errorf("bad request: %s", message)}
}

func NewErrEmptyChecklist() *ErrValidation {
	return NewErrValidation("checklist must contain at least one item")
}
