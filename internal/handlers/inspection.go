package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	api "github.com/fieldform/inspection-api/api/v1alpha1"
	"github.com/fieldform/inspection-api/internal/service"
	"github.com/fieldform/inspection-api/internal/service/mappers"
	"github.com/fieldform/inspection-api/internal/store"
	"github.com/fieldform/inspection-api/internal/store/model"
)

// IdempotencyKeyHeader carries the client-supplied deduplication token.
const IdempotencyKeyHeader = "Idempotency-Key"

func (h *ServiceHandler) CreateInspection(w http.ResponseWriter, r *http.Request) {
	var form api.InspectionCreate
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("failed to decode request body: %v", err))
		return
	}

	if err := h.validator.Struct(form); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var idempotencyKey *string
	if key := r.Header.Get(IdempotencyKeyHeader); key != "" {
		idempotencyKey = &key
	}

	inspection, isDuplicate, err := h.inspectionSrv.Submit(r.Context(), idempotencyKey, form)
	if err != nil {
		switch err.(type) {
		case *service.ErrValidation:
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to create inspection: %v", err))
		}
		return
	}

	// a duplicate submission echoes the original outcome
	statusCode := http.StatusCreated
	if isDuplicate {
		statusCode = http.StatusOK
	}
	respond(w, statusCode, mappers.InspectionToApi(*inspection))
}

func (h *ServiceHandler) GetInspection(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid inspection id")
		return
	}

	inspection, err := h.inspectionSrv.Get(r.Context(), id)
	if err != nil {
		switch err.(type) {
		case *service.ErrResourceNotFound:
			respondError(w, http.StatusNotFound, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get inspection: %v", err))
		}
		return
	}

	respond(w, http.StatusOK, mappers.InspectionToApi(*inspection))
}

func (h *ServiceHandler) ListInspections(w http.ResponseWriter, r *http.Request) {
	filter := store.NewInspectionQueryFilter()
	if status := r.URL.Query().Get("status"); status != "" {
		if !service.IsValidStatus(status) {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", status))
			return
		}
		filter = filter.ByStatus(status)
	}

	opts := store.NewInspectionQueryOptions().WithSortOrder(parseSortOrder(r.URL.Query().Get("sortBy")))
	if limit := r.URL.Query().Get("limit"); limit != "" {
		v, err := strconv.Atoi(limit)
		if err != nil {
			respondError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		opts = opts.WithLimit(v)
	} else {
		opts = opts.WithLimit(store.MaxPageSize)
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		v, err := strconv.Atoi(offset)
		if err != nil {
			respondError(w, http.StatusBadRequest, "offset must be an integer")
			return
		}
		opts = opts.WithOffset(v)
	}

	inspections, err := h.inspectionSrv.List(r.Context(), filter, opts)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list inspections: %v", err))
		return
	}

	respond(w, http.StatusOK, mappers.InspectionListToApi(inspections))
}

func (h *ServiceHandler) UpdateInspection(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid inspection id")
		return
	}

	var form api.InspectionUpdate
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("failed to decode request body: %v", err))
		return
	}

	if err := h.validator.Struct(form); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if form.Status == nil && len(form.Checklist) == 0 {
		respondError(w, http.StatusBadRequest, "either status or checklist must be provided")
		return
	}
	if form.Status != nil && len(form.Checklist) > 0 {
		respondError(w, http.StatusBadRequest, "status and checklist cannot be updated together")
		return
	}

	var inspection *model.Inspection
	if form.Status != nil {
		inspection, err = h.inspectionSrv.UpdateStatus(r.Context(), id, *form.Status)
	} else {
		inspection, err = h.inspectionSrv.UpdateChecklist(r.Context(), id, form.Checklist)
	}
	if err != nil {
		switch err.(type) {
		case *service.ErrResourceNotFound:
			respondError(w, http.StatusNotFound, err.Error())
		case *service.ErrInvalidTransition:
			respondError(w, http.StatusConflict, err.Error())
		case *service.ErrValidation:
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to update inspection: %v", err))
		}
		return
	}

	respond(w, http.StatusOK, mappers.InspectionToApi(*inspection))
}

// maxAttachmentSize bounds an uploaded inspection document.
const maxAttachmentSize = 10 << 20

func (h *ServiceHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid inspection id")
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxAttachmentSize+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("failed to read request body: %v", err))
		return
	}
	if len(data) == 0 {
		respondError(w, http.StatusBadRequest, "attachment body is empty")
		return
	}
	if len(data) > maxAttachmentSize {
		respondError(w, http.StatusRequestEntityTooLarge, "attachment exceeds the size limit")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	inspection, err := h.inspectionSrv.ReplaceAttachment(r.Context(), id, data, contentType)
	if err != nil {
		switch err.(type) {
		case *service.ErrResourceNotFound:
			respondError(w, http.StatusNotFound, err.Error())
		case *service.ErrValidation:
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to store attachment: %v", err))
		}
		return
	}

	respond(w, http.StatusOK, mappers.InspectionToApi(*inspection))
}

func (h *ServiceHandler) DeleteInspection(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid inspection id")
		return
	}

	if err := h.inspectionSrv.Delete(r.Context(), id); err != nil {
		switch err.(type) {
		case *service.ErrResourceNotFound:
			respondError(w, http.StatusNotFound, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to delete inspection: %v", err))
		}
		return
	}

	respond(w, http.StatusOK, nil)
}

func parseSortOrder(sortBy string) store.SortOrder {
	switch sortBy {
	case "updatedAt":
		return store.SortByUpdatedTime
	case "id":
		return store.SortByID
	default:
		return store.SortByCreatedTime
	}
}
