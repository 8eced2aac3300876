package service_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	api "github.com/fieldform/inspection-api/api/v1alpha1"
	"github.com/fieldform/inspection-api/internal/config"
	"github.com/fieldform/inspection-api/internal/mail"
	"github.com/fieldform/inspection-api/internal/service"
	"github.com/fieldform/inspection-api/internal/store"
	"github.com/fieldform/inspection-api/internal/store/model"
)

// flakyChannel fails the first `failures` sends and succeeds afterwards.
type flakyChannel struct {
	failures int
	attempts int
}

func (c *flakyChannel) Send(ctx context.Context, msg mail.Message) (string, error) {
	c.attempts++
	if c.attempts <= c.failures {
		return "", errors.New("connection reset by peer")
	}
	return fmt.Sprintf("msg-%d", c.attempts), nil
}

func (c *flakyChannel) IsReady() bool {
	return true
}

var _ = Describe("dispatcher", Ordered, func() {
	var (
		s           store.Store
		gormdb      *gorm.DB
		srv         *service.InspectionService
		deliverySrv *service.DeliveryService
		cfg         *config.Config
	)

	BeforeAll(func() {
		cfg = config.NewDefault()
		db, err := store.InitDB(cfg)
		Expect(err).To(BeNil())

		s = store.NewStore(db)
		gormdb = db
		Expect(s.InitialMigration()).To(BeNil())

		srv = service.NewInspectionService(s, nil)
		deliverySrv = service.NewDeliveryService(s, nil, nil)
	})

	AfterAll(func() {
		s.Close()
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM delivery_jobs;")
		gormdb.Exec("DELETE FROM inspections;")
	})

	enqueue := func() *model.DeliveryJob {
		inspection, _, err := srv.Submit(context.TODO(), nil, checklistForm(2, 1))
		Expect(err).To(BeNil())

		job, err := deliverySrv.Notify(context.TODO(), inspection.ID, api.NotifyRequest{
			Recipient: "inspector@example.com",
		})
		Expect(err).To(BeNil())
		return job
	}

	It("skips the batch when the channel is not configured", func() {
		job := enqueue()

		dispatcher := service.NewDispatcher(s, mail.NewUnconfiguredChannel(), nil, cfg)
		result, err := dispatcher.RunBatch(context.TODO(), 10)
		Expect(err).To(BeNil())
		Expect(result.Sent).To(Equal(0))
		Expect(result.Failed).To(Equal(0))

		found, err := s.DeliveryJob().Get(context.TODO(), job.ID)
		Expect(err).To(BeNil())
		Expect(found.Status).To(Equal(model.JobStatusPending))
		Expect(found.RetryCount).To(Equal(0))
	})

	It("delivers a pending job and records the outcome", func() {
		job := enqueue()

		dispatcher := service.NewDispatcher(s, &flakyChannel{}, nil, cfg)
		result, err := dispatcher.RunBatch(context.TODO(), 10)
		Expect(err).To(BeNil())
		Expect(result.Sent).To(Equal(1))

		found, err := s.DeliveryJob().Get(context.TODO(), job.ID)
		Expect(err).To(BeNil())
		Expect(found.Status).To(Equal(model.JobStatusSent))
		Expect(found.SentAt).ToNot(BeNil())

		inspection, err := srv.Get(context.TODO(), job.InspectionID)
		Expect(err).To(BeNil())
		entries := inspection.AuditLog.Data
		Expect(entries[len(entries)-1].Action).To(Equal(model.AuditActionNotified))
		Expect(entries[len(entries)-1].Detail).To(Equal("msg-1"))
	})

	It("retries a failing job and succeeds within the ceiling", func() {
		job := enqueue()

		dispatcher := service.NewDispatcher(s, &flakyChannel{failures: 2}, nil, cfg)

		for i := 0; i < 2; i++ {
			result, err := dispatcher.RunBatch(context.TODO(), 10)
			Expect(err).To(BeNil())
			Expect(result.Failed).To(Equal(1))
		}

		result, err := dispatcher.RunBatch(context.TODO(), 10)
		Expect(err).To(BeNil())
		Expect(result.Sent).To(Equal(1))

		found, err := s.DeliveryJob().Get(context.TODO(), job.ID)
		Expect(err).To(BeNil())
		Expect(found.Status).To(Equal(model.JobStatusSent))
		Expect(found.RetryCount).To(Equal(2))
		Expect(found.LastError).To(Equal("connection reset by peer"))
	})

	It("fails a job terminally once the retries are exhausted", func() {
		job := enqueue()

		dispatcher := service.NewDispatcher(s, &flakyChannel{failures: 10}, nil, cfg)

		for i := 0; i < 3; i++ {
			result, err := dispatcher.RunBatch(context.TODO(), 10)
			Expect(err).To(BeNil())
			Expect(result.Failed).To(Equal(1))
		}

		found, err := s.DeliveryJob().Get(context.TODO(), job.ID)
		Expect(err).To(BeNil())
		Expect(found.Status).To(Equal(model.JobStatusFailed))
		Expect(found.RetryCount).To(Equal(3))

		// nothing left to claim
		result, err := dispatcher.RunBatch(context.TODO(), 10)
		Expect(err).To(BeNil())
		Expect(result.Sent).To(Equal(0))
		Expect(result.Failed).To(Equal(0))
	})

	It("isolates outcomes within a batch", func() {
		enqueue()
		enqueue()

		// first send fails, every following one succeeds
		dispatcher := service.NewDispatcher(s, &flakyChannel{failures: 1}, nil, cfg)
		result, err := dispatcher.RunBatch(context.TODO(), 10)
		Expect(err).To(BeNil())
		Expect(result.Sent).To(Equal(1))
		Expect(result.Failed).To(Equal(1))

		stats, err := s.DeliveryJob().Stats(context.TODO())
		Expect(err).To(BeNil())
		Expect(stats.Sent).To(Equal(int64(1)))
		Expect(stats.Pending).To(Equal(int64(1)))
	})
})

var _ = Describe("delivery service", Ordered, func() {
	var (
		s           store.Store
		gormdb      *gorm.DB
		srv         *service.InspectionService
		deliverySrv *service.DeliveryService
	)

	BeforeAll(func() {
		db, err := store.InitDB(config.NewDefault())
		Expect(err).To(BeNil())

		s = store.NewStore(db)
		gormdb = db
		Expect(s.InitialMigration()).To(BeNil())

		srv = service.NewInspectionService(s, nil)
		deliverySrv = service.NewDeliveryService(s, nil, nil)
	})

	AfterAll(func() {
		s.Close()
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM delivery_jobs;")
		gormdb.Exec("DELETE FROM inspections;")
	})

	It("enqueues a pending job with defaulted subject and body", func() {
		inspection, _, err := srv.Submit(context.TODO(), nil, checklistForm(2, 1))
		Expect(err).To(BeNil())

		job, err := deliverySrv.Notify(context.TODO(), inspection.ID, api.NotifyRequest{
			Recipient: "inspector@example.com",
		})
		Expect(err).To(BeNil())
		Expect(job.Status).To(Equal(model.JobStatusPending))
		Expect(job.Recipient).To(Equal("inspector@example.com"))
		Expect(job.Subject).ToNot(BeEmpty())
		Expect(job.Body).ToNot(BeEmpty())
	})

	It("keeps the caller's subject and body when provided", func() {
		inspection, _, err := srv.Submit(context.TODO(), nil, checklistForm(2, 1))
		Expect(err).To(BeNil())

		job, err := deliverySrv.Notify(context.TODO(), inspection.ID, api.NotifyRequest{
			Recipient: "inspector@example.com",
			Subject:   "weekly report",
			Body:      "see attachment",
		})
		Expect(err).To(BeNil())
		Expect(job.Subject).To(Equal("weekly report"))
		Expect(job.Body).To(Equal("see attachment"))
	})

	It("fails for a missing inspection", func() {
		_, err := deliverySrv.Notify(context.TODO(), uuid.New(), api.NotifyRequest{Recipient: "a@b.c"})
		Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
	})
})
