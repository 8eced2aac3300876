// Package handlers exposes the inspection pipeline over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	api "github.com/fieldform/inspection-api/api/v1alpha1"
	"github.com/fieldform/inspection-api/internal/handlers/validator"
	"github.com/fieldform/inspection-api/internal/service"
)

type ServiceHandler struct {
	inspectionSrv *service.InspectionService
	deliverySrv   *service.DeliveryService
	dispatcher    *service.Dispatcher
	validator     *validator.Validator
}

func NewServiceHandler(inspectionSrv *service.InspectionService, deliverySrv *service.DeliveryService, dispatcher *service.Dispatcher) *ServiceHandler {
	v := validator.NewValidator()
	v.Register(validator.NewInspectionValidationRules()...)

	return &ServiceHandler{
		inspectionSrv: inspectionSrv,
		deliverySrv:   deliverySrv,
		dispatcher:    dispatcher,
		validator:     v,
	}
}

func (h *ServiceHandler) Routes(router chi.Router) {
	router.Route("/api/v1/inspections", func(r chi.Router) {
		r.Post("/", h.CreateInspection)
		r.Get("/", h.ListInspections)
		r.Get("/{id}", h.GetInspection)
		r.Patch("/{id}", h.UpdateInspection)
		r.Delete("/{id}", h.DeleteInspection)
		r.Put("/{id}/attachment", h.UploadAttachment)
		r.Post("/{id}/notify", h.NotifyInspection)
	})
	router.Route("/api/v1/queue", func(r chi.Router) {
		r.Get("/stats", h.QueueStats)
		r.Get("/jobs/{id}", h.GetDeliveryJob)
		r.Post("/dispatch", h.DispatchQueue)
	})
	router.Get("/health", h.Health)
}

func (h *ServiceHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func respond(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.S().Named("handlers").Errorf("failed to write response: %v", err)
	}
}

func respondError(w http.ResponseWriter, statusCode int, message string) {
	respond(w, statusCode, api.Error{Message: message})
}
