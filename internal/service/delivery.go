package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	api "github.com/fieldform/inspection-api/api/v1alpha1"
	"github.com/fieldform/inspection-api/internal/blob"
	"github.com/fieldform/inspection-api/internal/render"
	"github.com/fieldform/inspection-api/internal/store"
	"github.com/fieldform/inspection-api/internal/store/model"
)

type DeliveryService struct {
	store     store.Store
	blobStore blob.Store
	renderer  render.Renderer
}

func NewDeliveryService(s store.Store, blobStore blob.Store, renderer render.Renderer) *DeliveryService {
	return &DeliveryService{store: s, blobStore: blobStore, renderer: renderer}
}

// Notify enqueues a delivery job for the inspection. The report is rendered
// and stored up front so the dispatcher only has to fetch and send; a render
// or storage failure degrades to a mail without attachment, it never fails
// the enqueue.
func (s *DeliveryService) Notify(ctx context.Context, inspectionID uuid.UUID, req api.NotifyRequest) (*model.DeliveryJob, error) {
	inspection, err := s.store.Inspection().Get(ctx, inspectionID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrInspectionNotFound(inspectionID)
		}
		return nil, err
	}

	subject := req.Subject
	if subject == "" {
		subject = fmt.Sprintf("Inspection report %s", inspection.ID)
	}
	body := req.Body
	if body == "" {
		body = fmt.Sprintf("The inspection %s is %s (%.0f%% complete). The full report is attached.",
			inspection.ID, inspection.Status, inspection.CompletionRatio*100)
	}

	job := model.DeliveryJob{
		ID:            uuid.New(),
		InspectionID:  inspection.ID,
		Recipient:     req.Recipient,
		Subject:       subject,
		Body:          body,
		AttachmentRef: s.prepareAttachment(ctx, inspection),
	}

	return s.store.DeliveryJob().Enqueue(ctx, job)
}

func (s *DeliveryService) GetJob(ctx context.Context, id uuid.UUID) (*model.DeliveryJob, error) {
	job, err := s.store.DeliveryJob().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrJobNotFound(id)
		}
		return nil, err
	}
	return job, nil
}

func (s *DeliveryService) Stats(ctx context.Context) (*model.QueueStats, error) {
	return s.store.DeliveryJob().Stats(ctx)
}

// prepareAttachment renders the report and stores it as a blob, returning the
// ref for the job. Any failure is logged and the attachment omitted.
func (s *DeliveryService) prepareAttachment(ctx context.Context, inspection *model.Inspection) *string {
	if s.renderer == nil || s.blobStore == nil {
		return nil
	}

	data, err := s.renderer.Render(ctx, inspection)
	if err != nil {
		zap.S().Named("delivery_service").Warnf("failed to render report for inspection %s: %v", inspection.ID, err)
		return nil
	}

	obj, err := s.blobStore.Put(ctx, data, s.renderer.ContentType())
	if err != nil {
		zap.S().Named("delivery_service").Warnf("failed to store report for inspection %s: %v", inspection.ID, err)
		return nil
	}

	return &obj.Ref
}
