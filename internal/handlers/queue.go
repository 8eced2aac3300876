package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	api "github.com/fieldform/inspection-api/api/v1alpha1"
	"github.com/fieldform/inspection-api/internal/service"
	"github.com/fieldform/inspection-api/internal/service/mappers"
)

func (h *ServiceHandler) NotifyInspection(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid inspection id")
		return
	}

	var req api.NotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("failed to decode request body: %v", err))
		return
	}

	if err := h.validator.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.deliverySrv.Notify(r.Context(), id, req)
	if err != nil {
		switch err.(type) {
		case *service.ErrResourceNotFound:
			respondError(w, http.StatusNotFound, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to enqueue notification: %v", err))
		}
		return
	}

	respond(w, http.StatusAccepted, api.NotifyResponse{JobId: job.ID.String()})
}

func (h *ServiceHandler) GetDeliveryJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, err := h.deliverySrv.GetJob(r.Context(), id)
	if err != nil {
		switch err.(type) {
		case *service.ErrResourceNotFound:
			respondError(w, http.StatusNotFound, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get delivery job: %v", err))
		}
		return
	}

	respond(w, http.StatusOK, mappers.DeliveryJobToApi(*job))
}

func (h *ServiceHandler) QueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deliverySrv.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read queue stats: %v", err))
		return
	}

	respond(w, http.StatusOK, mappers.QueueStatsToApi(*stats))
}

// DispatchQueue runs one delivery batch on demand, outside the timer loop.
func (h *ServiceHandler) DispatchQueue(w http.ResponseWriter, r *http.Request) {
	result, err := h.dispatcher.RunBatch(r.Context(), 0)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to dispatch queue: %v", err))
		return
	}

	respond(w, http.StatusOK, result)
}
