package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	api "github.com/fieldform/inspection-api/api/v1alpha1"
	"github.com/fieldform/inspection-api/internal/blob"
	"github.com/fieldform/inspection-api/internal/service/mappers"
	"github.com/fieldform/inspection-api/internal/store"
	"github.com/fieldform/inspection-api/internal/store/model"
)

type InspectionService struct {
	store     store.Store
	blobStore blob.Store
}

func NewInspectionService(s store.Store, blobStore blob.Store) *InspectionService {
	return &InspectionService{store: s, blobStore: blobStore}
}

// Submit creates an inspection, deduplicating on the client-supplied
// idempotency key. The insert is attempted first; losing the uniqueness race
// means another identical submission already succeeded, so the existing record
// is returned with no side effects of any kind.
func (s *InspectionService) Submit(ctx context.Context, idempotencyKey *string, form api.InspectionCreate) (*model.Inspection, bool, error) {
	if len(form.Checklist) == 0 {
		return nil, false, NewErrEmptyChecklist()
	}

	status := model.InspectionStatusDraft
	if form.Status != nil {
		status = *form.Status
	}
	if status != model.InspectionStatusDraft && status != model.InspectionStatusSubmitted {
		return nil, false, NewErrValidation("a new inspection must be draft or submitted")
	}

	checklist := mappers.ChecklistFromApi(form.Checklist)
	now := time.Now().UTC()

	inspection := model.Inspection{
		ID:              uuid.New(),
		IdempotencyKey:  idempotencyKey,
		Checklist:       model.MakeJSONField(checklist),
		CompletionRatio: model.ComputeCompletionRatio(checklist),
		Status:          status,
		AuditLog: model.MakeJSONField([]model.AuditEntry{{
			Action:    model.AuditActionCreated,
			Timestamp: now,
			ToStatus:  status,
		}}),
	}
	if status == model.InspectionStatusSubmitted {
		inspection.CompletedAt = &now
	}

	created, err := s.store.Inspection().Create(ctx, inspection)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) && idempotencyKey != nil {
			existing, lookupErr := s.store.Inspection().GetByIdempotencyKey(ctx, *idempotencyKey)
			if lookupErr != nil {
				return nil, false, lookupErr
			}
			return existing, true, nil
		}
		return nil, false, err
	}

	return created, false, nil
}

func (s *InspectionService) Get(ctx context.Context, id uuid.UUID) (*model.Inspection, error) {
	inspection, err := s.store.Inspection().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrInspectionNotFound(id)
		}
		return nil, err
	}
	return inspection, nil
}

func (s *InspectionService) List(ctx context.Context, filter *store.InspectionQueryFilter, opts *store.InspectionQueryOptions) (model.InspectionList, error) {
	return s.store.Inspection().List(ctx, filter, opts)
}

// UpdateChecklist replaces the checklist, recomputes the completion ratio and
// appends a "modified" audit entry in a single transaction.
func (s *InspectionService) UpdateChecklist(ctx context.Context, id uuid.UUID, items []api.ChecklistItem) (*model.Inspection, error) {
	if len(items) == 0 {
		return nil, NewErrEmptyChecklist()
	}

	ctx, err := s.store.NewTransactionContext(ctx)
	if err != nil {
		return nil, err
	}

	inspection, err := s.store.Inspection().Get(ctx, id)
	if err != nil {
		_, _ = store.Rollback(ctx)
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrInspectionNotFound(id)
		}
		return nil, err
	}

	checklist := mappers.ChecklistFromApi(items)
	inspection.Checklist = model.MakeJSONField(checklist)
	inspection.CompletionRatio = model.ComputeCompletionRatio(checklist)
	appendAudit(inspection, model.AuditEntry{
		Action:    model.AuditActionModified,
		Timestamp: time.Now().UTC(),
	})

	updated, err := s.store.Inspection().Update(ctx, *inspection, []string{"checklist", "completion_ratio", "audit_log"})
	if err != nil {
		_, _ = store.Rollback(ctx)
		return nil, err
	}

	if _, err := store.Commit(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateStatus applies a lifecycle transition. Same-state transitions are
// accepted as no-ops; every accepted transition, no-ops included, is recorded
// in the audit log. CompletedAt is stamped exactly once, on the first
// transition into submitted.
func (s *InspectionService) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus string) (*model.Inspection, error) {
	ctx, err := s.store.NewTransactionContext(ctx)
	if err != nil {
		return nil, err
	}

	inspection, err := s.store.Inspection().Get(ctx, id)
	if err != nil {
		_, _ = store.Rollback(ctx)
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrInspectionNotFound(id)
		}
		return nil, err
	}

	if !CanTransition(inspection.Status, newStatus) {
		_, _ = store.Rollback(ctx)
		return nil, NewErrInvalidTransition(inspection.Status, newStatus)
	}

	now := time.Now().UTC()
	fields := []string{"status", "audit_log"}

	appendAudit(inspection, model.AuditEntry{
		Action:     model.AuditActionTransition,
		Timestamp:  now,
		FromStatus: inspection.Status,
		ToStatus:   newStatus,
	})
	inspection.Status = newStatus

	if newStatus == model.InspectionStatusSubmitted && inspection.CompletedAt == nil {
		inspection.CompletedAt = &now
		fields = append(fields, "completed_at")
	}

	updated, err := s.store.Inspection().Update(ctx, *inspection, fields)
	if err != nil {
		_, _ = store.Rollback(ctx)
		return nil, err
	}

	if _, err := store.Commit(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

// ReplaceAttachment uploads the new document first and commits the new ref
// only after the upload succeeded. The superseded blob is deleted best-effort:
// a stale blob is acceptable, an inconsistent record is not.
func (s *InspectionService) ReplaceAttachment(ctx context.Context, id uuid.UUID, data []byte, contentType string) (*model.Inspection, error) {
	if s.blobStore == nil {
		return nil, NewErrValidation("attachment storage is not configured")
	}

	inspection, err := s.store.Inspection().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrInspectionNotFound(id)
		}
		return nil, err
	}

	oldRef := inspection.AttachmentRef

	obj, err := s.blobStore.Put(ctx, data, contentType)
	if err != nil {
		return nil, err
	}

	inspection.AttachmentRef = &obj.Ref
	appendAudit(inspection, model.AuditEntry{
		Action:    model.AuditActionAttachmentUpdated,
		Timestamp: time.Now().UTC(),
		Detail:    obj.Ref,
	})

	updated, err := s.store.Inspection().Update(ctx, *inspection, []string{"attachment_ref", "audit_log"})
	if err != nil {
		return nil, err
	}

	if oldRef != nil {
		if err := s.blobStore.Delete(ctx, *oldRef); err != nil {
			zap.S().Named("inspection_service").Warnf("failed to delete superseded attachment %s: %v", *oldRef, err)
		}
	}

	return updated, nil
}

// Delete removes the inspection and cascades over its delivery jobs first, so
// no job is left referencing a missing record. The stored attachment, if any,
// is cleaned up best-effort after the record is gone.
func (s *InspectionService) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, err := s.store.NewTransactionContext(ctx)
	if err != nil {
		return err
	}

	inspection, err := s.store.Inspection().Get(ctx, id)
	if err != nil {
		_, _ = store.Rollback(ctx)
		if errors.Is(err, store.ErrRecordNotFound) {
			return NewErrInspectionNotFound(id)
		}
		return err
	}

	cancelled, err := s.store.DeliveryJob().CancelForInspection(ctx, id)
	if err != nil {
		_, _ = store.Rollback(ctx)
		return err
	}
	if cancelled > 0 {
		zap.S().Named("inspection_service").Infof("cancelled %d delivery jobs for inspection %s", cancelled, id)
	}

	if err := s.store.Inspection().Delete(ctx, id); err != nil {
		_, _ = store.Rollback(ctx)
		if errors.Is(err, store.ErrRecordNotFound) {
			return NewErrInspectionNotFound(id)
		}
		return err
	}

	if _, err := store.Commit(ctx); err != nil {
		return err
	}

	if inspection.AttachmentRef != nil && s.blobStore != nil {
		if err := s.blobStore.Delete(ctx, *inspection.AttachmentRef); err != nil {
			zap.S().Named("inspection_service").Warnf("failed to delete attachment %s: %v", *inspection.AttachmentRef, err)
		}
	}

	return nil
}

func appendAudit(inspection *model.Inspection, entry model.AuditEntry) {
	if inspection.AuditLog == nil {
		inspection.AuditLog = model.MakeJSONField([]model.AuditEntry{})
	}
	inspection.AuditLog.Data = append(inspection.AuditLog.Data, entry)
}
