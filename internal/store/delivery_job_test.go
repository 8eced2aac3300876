package store_test

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/fieldform/inspection-api/internal/config"
	"github.com/fieldform/inspection-api/internal/store"
	"github.com/fieldform/inspection-api/internal/store/model"
)

func newJob(inspectionID uuid.UUID, createdAt time.Time) model.DeliveryJob {
	return model.DeliveryJob{
		ID:           uuid.New(),
		InspectionID: inspectionID,
		Recipient:    "inspector@example.com",
		Subject:      "inspection report",
		Body:         "report attached",
		CreatedAt:    createdAt,
	}
}

var _ = Describe("delivery job store", Ordered, func() {
	var (
		s            store.Store
		gormdb       *gorm.DB
		inspectionID uuid.UUID
	)

	BeforeAll(func() {
		db, err := store.InitDB(config.NewDefault())
		Expect(err).To(BeNil())

		s = store.NewStore(db)
		gormdb = db
		Expect(s.InitialMigration()).To(BeNil())
	})

	AfterAll(func() {
		s.Close()
	})

	BeforeEach(func() {
		created, err := s.Inspection().Create(context.TODO(), newInspection(model.InspectionStatusSubmitted, nil))
		Expect(err).To(BeNil())
		inspectionID = created.ID
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM delivery_jobs;")
		gormdb.Exec("DELETE FROM inspections;")
	})

	Context("enqueue", func() {
		It("enqueues a job as pending", func() {
			job, err := s.DeliveryJob().Enqueue(context.TODO(), newJob(inspectionID, time.Time{}))
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusPending))
			Expect(job.RetryCount).To(Equal(0))
		})
	})

	Context("claim", func() {
		It("claims pending jobs oldest first", func() {
			base := time.Now().UTC().Add(-time.Hour)
			first, err := s.DeliveryJob().Enqueue(context.TODO(), newJob(inspectionID, base))
			Expect(err).To(BeNil())
			second, err := s.DeliveryJob().Enqueue(context.TODO(), newJob(inspectionID, base.Add(time.Minute)))
			Expect(err).To(BeNil())
			_, err = s.DeliveryJob().Enqueue(context.TODO(), newJob(inspectionID, base.Add(2*time.Minute)))
			Expect(err).To(BeNil())

			claimed, err := s.DeliveryJob().ClaimBatch(context.TODO(), 2)
			Expect(err).To(BeNil())
			Expect(claimed).To(HaveLen(2))
			Expect(claimed[0].ID).To(Equal(first.ID))
			Expect(claimed[1].ID).To(Equal(second.ID))
			Expect(claimed[0].Status).To(Equal(model.JobStatusInFlight))
		})

		It("never hands the same job to two claimers", func() {
			for i := 0; i < 5; i++ {
				_, err := s.DeliveryJob().Enqueue(context.TODO(), newJob(inspectionID, time.Time{}))
				Expect(err).To(BeNil())
			}

			firstBatch, err := s.DeliveryJob().ClaimBatch(context.TODO(), 3)
			Expect(err).To(BeNil())
			secondBatch, err := s.DeliveryJob().ClaimBatch(context.TODO(), 3)
			Expect(err).To(BeNil())

			Expect(len(firstBatch) + len(secondBatch)).To(Equal(5))
			seen := map[uuid.UUID]bool{}
			for _, job := range append(firstBatch, secondBatch...) {
				Expect(seen[job.ID]).To(BeFalse())
				seen[job.ID] = true
			}

			thirdBatch, err := s.DeliveryJob().ClaimBatch(context.TODO(), 3)
			Expect(err).To(BeNil())
			Expect(thirdBatch).To(HaveLen(0))
		})

		It("claims nothing when max is zero", func() {
			_, err := s.DeliveryJob().Enqueue(context.TODO(), newJob(inspectionID, time.Time{}))
			Expect(err).To(BeNil())

			claimed, err := s.DeliveryJob().ClaimBatch(context.TODO(), 0)
			Expect(err).To(BeNil())
			Expect(claimed).To(HaveLen(0))
		})
	})

	Context("mark sent", func() {
		It("marks an in_flight job sent and stamps sent_at", func() {
			job, err := s.DeliveryJob().Enqueue(context.TODO(), newJob(inspectionID, time.Time{}))
			Expect(err).To(BeNil())
			_, err = s.DeliveryJob().ClaimBatch(context.TODO(), 1)
			Expect(err).To(BeNil())

			Expect(s.DeliveryJob().MarkSent(context.TODO(), job.ID)).To(BeNil())

			found, err := s.DeliveryJob().Get(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(found.Status).To(Equal(model.JobStatusSent))
			Expect(found.SentAt).ToNot(BeNil())
		})

		It("refuses to mark a pending job sent", func() {
			job, err := s.DeliveryJob().Enqueue(context.TODO(), newJob(inspectionID, time.Time{}))
			Expect(err).To(BeNil())

			err = s.DeliveryJob().MarkSent(context.TODO(), job.ID)
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})

	Context("mark failed", func() {
		It("returns the job to pending below the retry ceiling", func() {
			job, err := s.DeliveryJob().Enqueue(context.TODO(), newJob(inspectionID, time.Time{}))
			Expect(err).To(BeNil())
			_, err = s.DeliveryJob().ClaimBatch(context.TODO(), 1)
			Expect(err).To(BeNil())

			failed, err := s.DeliveryJob().MarkFailed(context.TODO(), job.ID, "connection refused", 3)
			Expect(err).To(BeNil())
			Expect(failed.Status).To(Equal(model.JobStatusPending))
			Expect(failed.RetryCount).To(Equal(1))
			Expect(failed.LastError).To(Equal("connection refused"))
		})

		It("fails the job terminally at the retry ceiling", func() {
			job, err := s.DeliveryJob().Enqueue(context.TODO(), newJob(inspectionID, time.Time{}))
			Expect(err).To(BeNil())

			for i := 1; i <= 3; i++ {
				claimed, err := s.DeliveryJob().ClaimBatch(context.TODO(), 1)
				Expect(err).To(BeNil())
				Expect(claimed).To(HaveLen(1))

				failed, err := s.DeliveryJob().MarkFailed(context.TODO(), job.ID, "timeout", 3)
				Expect(err).To(BeNil())
				Expect(failed.RetryCount).To(Equal(i))
				if i < 3 {
					Expect(failed.Status).To(Equal(model.JobStatusPending))
				} else {
					Expect(failed.Status).To(Equal(model.JobStatusFailed))
				}
			}

			claimed, err := s.DeliveryJob().ClaimBatch(context.TODO(), 1)
			Expect(err).To(BeNil())
			Expect(claimed).To(HaveLen(0))
		})

		It("truncates long delivery errors", func() {
			job, err := s.DeliveryJob().Enqueue(context.TODO(), newJob(inspectionID, time.Time{}))
			Expect(err).To(BeNil())
			_, err = s.DeliveryJob().ClaimBatch(context.TODO(), 1)
			Expect(err).To(BeNil())

			failed, err := s.DeliveryJob().MarkFailed(context.TODO(), job.ID, strings.Repeat("x", 2000), 3)
			Expect(err).To(BeNil())
			Expect(failed.LastError).To(HaveLen(512))
		})
	})

	Context("cancel", func() {
		It("removes every job of the inspection whatever its status", func() {
			job, err := s.DeliveryJob().Enqueue(context.TODO(), newJob(inspectionID, time.Time{}))
			Expect(err).To(BeNil())
			_, err = s.DeliveryJob().Enqueue(context.TODO(), newJob(inspectionID, time.Time{}))
			Expect(err).To(BeNil())

			_, err = s.DeliveryJob().ClaimBatch(context.TODO(), 1)
			Expect(err).To(BeNil())
			Expect(s.DeliveryJob().MarkSent(context.TODO(), job.ID)).To(BeNil())

			cancelled, err := s.DeliveryJob().CancelForInspection(context.TODO(), inspectionID)
			Expect(err).To(BeNil())
			Expect(cancelled).To(Equal(int64(2)))

			count := 0
			err = gormdb.Raw("SELECT COUNT(*) FROM delivery_jobs;").Scan(&count).Error
			Expect(err).To(BeNil())
			Expect(count).To(Equal(0))
		})
	})

	Context("stats", func() {
		It("counts jobs per status", func() {
			job, err := s.DeliveryJob().Enqueue(context.TODO(), newJob(inspectionID, time.Time{}))
			Expect(err).To(BeNil())
			_, err = s.DeliveryJob().Enqueue(context.TODO(), newJob(inspectionID, time.Time{}))
			Expect(err).To(BeNil())

			_, err = s.DeliveryJob().ClaimBatch(context.TODO(), 1)
			Expect(err).To(BeNil())
			Expect(s.DeliveryJob().MarkSent(context.TODO(), job.ID)).To(BeNil())

			stats, err := s.DeliveryJob().Stats(context.TODO())
			Expect(err).To(BeNil())
			Expect(stats.Pending).To(Equal(int64(1)))
			Expect(stats.Sent).To(Equal(int64(1)))
			Expect(stats.InFlight).To(Equal(int64(0)))
			Expect(stats.Failed).To(Equal(int64(0)))
		})
	})
})
