package store_test

import (
	"context"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/fieldform/inspection-api/internal/config"
	"github.com/fieldform/inspection-api/internal/store"
	"github.com/fieldform/inspection-api/internal/store/model"
)

func newInspection(status string, key *string) model.Inspection {
	checklist := []model.ChecklistItem{
		{PointID: "p-1", Label: "fire exits clear", Checked: true},
		{PointID: "p-2", Label: "extinguishers charged", Checked: false},
	}
	return model.Inspection{
		ID:              uuid.New(),
		IdempotencyKey:  key,
		Checklist:       model.MakeJSONField(checklist),
		CompletionRatio: model.ComputeCompletionRatio(checklist),
		Status:          status,
	}
}

var _ = Describe("inspection store", Ordered, func() {
	var (
		s      store.Store
		gormdb *gorm.DB
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

	AfterEach(func() {
		gormdb.Exec("DELETE FROM delivery_jobs;")
		gormdb.Exec("DELETE FROM inspections;")
	})

	Context("create", func() {
		It("successfully creates an inspection", func() {
			created, err := s.Inspection().Create(context.TODO(), newInspection(model.InspectionStatusDraft, nil))
			Expect(err).To(BeNil())
			Expect(created).ToNot(BeNil())

			count := 0
			err = gormdb.Raw("SELECT COUNT(*) FROM inspections;").Scan(&count).Error
			Expect(err).To(BeNil())
			Expect(count).To(Equal(1))
		})

		It("rejects a second insert with the same idempotency key", func() {
			key := "retry-key-1"
			_, err := s.Inspection().Create(context.TODO(), newInspection(model.InspectionStatusDraft, &key))
			Expect(err).To(BeNil())

			_, err = s.Inspection().Create(context.TODO(), newInspection(model.InspectionStatusDraft, &key))
			Expect(err).To(MatchError(store.ErrDuplicateKey))

			count := 0
			err = gormdb.Raw("SELECT COUNT(*) FROM inspections;").Scan(&count).Error
			Expect(err).To(BeNil())
			Expect(count).To(Equal(1))
		})

		It("allows many inspections without idempotency key", func() {
			_, err := s.Inspection().Create(context.TODO(), newInspection(model.InspectionStatusDraft, nil))
			Expect(err).To(BeNil())
			_, err = s.Inspection().Create(context.TODO(), newInspection(model.InspectionStatusDraft, nil))
			Expect(err).To(BeNil())

			count := 0
			err = gormdb.Raw("SELECT COUNT(*) FROM inspections;").Scan(&count).Error
			Expect(err).To(BeNil())
			Expect(count).To(Equal(2))
		})
	})

	Context("get", func() {
		It("successfully gets an inspection", func() {
			created, err := s.Inspection().Create(context.TODO(), newInspection(model.InspectionStatusDraft, nil))
			Expect(err).To(BeNil())

			found, err := s.Inspection().Get(context.TODO(), created.ID)
			Expect(err).To(BeNil())
			Expect(found.ID).To(Equal(created.ID))
			Expect(found.Checklist.Data).To(HaveLen(2))
			Expect(found.CompletionRatio).To(Equal(0.5))
		})

		It("fails to get an inspection -- record does not exist", func() {
			_, err := s.Inspection().Get(context.TODO(), uuid.New())
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})

		It("successfully gets an inspection by idempotency key", func() {
			key := "retry-key-2"
			created, err := s.Inspection().Create(context.TODO(), newInspection(model.InspectionStatusSubmitted, &key))
			Expect(err).To(BeNil())

			found, err := s.Inspection().GetByIdempotencyKey(context.TODO(), key)
			Expect(err).To(BeNil())
			Expect(found.ID).To(Equal(created.ID))
		})
	})

	Context("list", func() {
		It("successfully lists inspections filtered by status", func() {
			_, err := s.Inspection().Create(context.TODO(), newInspection(model.InspectionStatusDraft, nil))
			Expect(err).To(BeNil())
			_, err = s.Inspection().Create(context.TODO(), newInspection(model.InspectionStatusSubmitted, nil))
			Expect(err).To(BeNil())
			_, err = s.Inspection().Create(context.TODO(), newInspection(model.InspectionStatusSubmitted, nil))
			Expect(err).To(BeNil())

			inspections, err := s.Inspection().List(context.TODO(),
				store.NewInspectionQueryFilter().ByStatus(model.InspectionStatusSubmitted),
				store.NewInspectionQueryOptions())
			Expect(err).To(BeNil())
			Expect(inspections).To(HaveLen(2))
		})

		It("caps the page size", func() {
			for i := 0; i < 3; i++ {
				_, err := s.Inspection().Create(context.TODO(), newInspection(model.InspectionStatusDraft, nil))
				Expect(err).To(BeNil())
			}

			inspections, err := s.Inspection().List(context.TODO(),
				store.NewInspectionQueryFilter(),
				store.NewInspectionQueryOptions().WithLimit(2))
			Expect(err).To(BeNil())
			Expect(inspections).To(HaveLen(2))

			inspections, err = s.Inspection().List(context.TODO(),
				store.NewInspectionQueryFilter(),
				store.NewInspectionQueryOptions().WithLimit(2).WithOffset(2))
			Expect(err).To(BeNil())
			Expect(inspections).To(HaveLen(1))
		})
	})

	Context("update", func() {
		It("updates only the selected fields", func() {
			created, err := s.Inspection().Create(context.TODO(), newInspection(model.InspectionStatusDraft, nil))
			Expect(err).To(BeNil())

			created.Status = model.InspectionStatusSubmitted
			created.CompletionRatio = 1.0
			updated, err := s.Inspection().Update(context.TODO(), *created, []string{"status"})
			Expect(err).To(BeNil())
			Expect(updated.Status).To(Equal(model.InspectionStatusSubmitted))

			found, err := s.Inspection().Get(context.TODO(), created.ID)
			Expect(err).To(BeNil())
			Expect(found.Status).To(Equal(model.InspectionStatusSubmitted))
			Expect(found.CompletionRatio).To(Equal(0.5))
		})

		It("fails to update a missing inspection", func() {
			_, err := s.Inspection().Update(context.TODO(), newInspection(model.InspectionStatusDraft, nil), []string{"status"})
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})

	Context("delete", func() {
		It("successfully deletes an inspection", func() {
			created, err := s.Inspection().Create(context.TODO(), newInspection(model.InspectionStatusDraft, nil))
			Expect(err).To(BeNil())

			Expect(s.Inspection().Delete(context.TODO(), created.ID)).To(BeNil())

			count := 0
			err = gormdb.Raw("SELECT COUNT(*) FROM inspections;").Scan(&count).Error
			Expect(err).To(BeNil())
			Expect(count).To(Equal(0))
		})

		It("fails to delete a missing inspection", func() {
			err := s.Inspection().Delete(context.TODO(), uuid.New())
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})

	Context("transaction", func() {
		It("commits an inspection", func() {
			ctx, err := s.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())

			_, err = s.Inspection().Create(ctx, newInspection(model.InspectionStatusDraft, nil))
			Expect(err).To(BeNil())

			_, cerr := store.Commit(ctx)
			Expect(cerr).To(BeNil())

			count := 0
			err = gormdb.Raw("SELECT COUNT(*) FROM inspections;").Scan(&count).Error
			Expect(err).To(BeNil())
			Expect(count).To(Equal(1))
		})

		It("rolls back an inspection", func() {
			ctx, err := s.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())

			_, err = s.Inspection().Create(ctx, newInspection(model.InspectionStatusDraft, nil))
			Expect(err).To(BeNil())

			_, cerr := store.Rollback(ctx)
			Expect(cerr).To(BeNil())

			count := 0
			err = gormdb.Raw("SELECT COUNT(*) FROM inspections;").Scan(&count).Error
			Expect(err).To(BeNil())
			Expect(count).To(Equal(0))
		})
	})
})
