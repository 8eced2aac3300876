package service

import (
	"context"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"

	api "github.com/fieldform/inspection-api/api/v1alpha1"
	"github.com/fieldform/inspection-api/internal/blob"
	"github.com/fieldform/inspection-api/internal/config"
	"github.com/fieldform/inspection-api/internal/mail"
	"github.com/fieldform/inspection-api/internal/store"
	"github.com/fieldform/inspection-api/internal/store/model"
	"github.com/fieldform/inspection-api/pkg/metrics"
)

// Dispatcher drains the delivery queue and pushes each claimed job through
// the mail channel. It runs on a jittered interval and can also be triggered
// on demand through the queue dispatch endpoint.
type Dispatcher struct {
	store       store.Store
	channel     mail.Channel
	blobStore   blob.Store
	batchSize   int
	maxRetries  int
	sendTimeout time.Duration
	interval    time.Duration
}

func NewDispatcher(s store.Store, channel mail.Channel, blobStore blob.Store, cfg *config.Config) *Dispatcher {
	return &Dispatcher{
		store:       s,
		channel:     channel,
		blobStore:   blobStore,
		batchSize:   cfg.Delivery.BatchSize,
		maxRetries:  cfg.Delivery.MaxRetries,
		sendTimeout: cfg.Delivery.SendTimeout,
		interval:    cfg.Delivery.Interval,
	}
}

// Run drives the dispatch loop until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	updateTicker := jitterbug.New(d.interval, &jitterbug.Norm{Stdev: 30 * time.Millisecond, Mean: 0})
	defer updateTicker.Stop()

	zap.S().Named("dispatcher").Infof("dispatch loop started, interval %s", d.interval)
	for {
		select {
		case <-ctx.Done():
			zap.S().Named("dispatcher").Info("dispatch loop stopped")
			return
		case <-updateTicker.C:
			if _, err := d.RunBatch(ctx, d.batchSize); err != nil {
				zap.S().Named("dispatcher").Errorf("dispatch batch failed: %v", err)
			}
		}
	}
}

// RunBatch claims up to max pending jobs and attempts delivery for each one.
// A failing job never aborts its siblings. When the channel is not ready the
// batch short-circuits without claiming anything.
func (d *Dispatcher) RunBatch(ctx context.Context, max int) (api.DispatchResult, error) {
	result := api.DispatchResult{}
	if max <= 0 {
		max = d.batchSize
	}

	if !d.channel.IsReady() {
		zap.S().Named("dispatcher").Debug("mail channel not ready, skipping batch")
		return result, nil
	}

	jobs, err := d.store.DeliveryJob().ClaimBatch(ctx, max)
	if err != nil {
		return result, err
	}

	for _, job := range jobs {
		if err := d.deliver(ctx, job); err != nil {
			result.Failed++
			metrics.IncreaseDeliveriesTotalMetric(metrics.DeliveryOutcomeFailed)
		} else {
			result.Sent++
			metrics.IncreaseDeliveriesTotalMetric(metrics.DeliveryOutcomeSent)
		}
	}

	d.updatePendingMetric(ctx)
	return result, nil
}

func (d *Dispatcher) deliver(ctx context.Context, job model.DeliveryJob) error {
	msg := mail.Message{
		Recipient:  job.Recipient,
		Subject:    job.Subject,
		Body:       job.Body,
		Attachment: d.fetchAttachment(ctx, job),
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	messageID, err := d.channel.Send(sendCtx, msg)
	if err != nil {
		failed, markErr := d.store.DeliveryJob().MarkFailed(ctx, job.ID, err.Error(), d.maxRetries)
		if markErr != nil {
			zap.S().Named("dispatcher").Errorf("failed to mark job %s failed: %v", job.ID, markErr)
			return err
		}
		if failed.Status == model.JobStatusFailed {
			zap.S().Named("dispatcher").Errorf("job %s exhausted its %d retries: %v", job.ID, d.maxRetries, err)
		} else {
			zap.S().Named("dispatcher").Warnf("job %s delivery attempt %d failed: %v", job.ID, failed.RetryCount, err)
		}
		return err
	}

	if err := d.store.DeliveryJob().MarkSent(ctx, job.ID); err != nil {
		zap.S().Named("dispatcher").Errorf("failed to mark job %s sent: %v", job.ID, err)
		return err
	}

	d.recordNotified(ctx, job, messageID)
	return nil
}

// fetchAttachment loads the pre-rendered report. A fetch failure degrades to
// a mail without attachment rather than failing the delivery.
func (d *Dispatcher) fetchAttachment(ctx context.Context, job model.DeliveryJob) *mail.Attachment {
	if job.AttachmentRef == nil || d.blobStore == nil {
		return nil
	}

	data, err := d.blobStore.Get(ctx, *job.AttachmentRef)
	if err != nil {
		zap.S().Named("dispatcher").Warnf("failed to fetch attachment %s for job %s: %v", *job.AttachmentRef, job.ID, err)
		return nil
	}

	return &mail.Attachment{
		Filename: "inspection-report.txt",
		MIMEType: "text/plain",
		Content:  data,
	}
}

// recordNotified appends a best-effort audit entry to the parent record.
func (d *Dispatcher) recordNotified(ctx context.Context, job model.DeliveryJob, messageID string) {
	inspection, err := d.store.Inspection().Get(ctx, job.InspectionID)
	if err != nil {
		zap.S().Named("dispatcher").Warnf("failed to load inspection %s for audit: %v", job.InspectionID, err)
		return
	}

	appendAudit(inspection, model.AuditEntry{
		Action:    model.AuditActionNotified,
		Timestamp: time.Now().UTC(),
		Detail:    messageID,
	})

	if _, err := d.store.Inspection().Update(ctx, *inspection, []string{"audit_log"}); err != nil {
		zap.S().Named("dispatcher").Warnf("failed to append audit entry for inspection %s: %v", job.InspectionID, err)
	}
}

func (d *Dispatcher) updatePendingMetric(ctx context.Context) {
	stats, err := d.store.DeliveryJob().Stats(ctx)
	if err != nil {
		return
	}
	metrics.UpdateQueueJobsPendingMetric(stats.Pending)
}
