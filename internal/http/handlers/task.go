package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/geo"
	"service-dispatch/internal/logx"
)

// TaskHandler handles HTTP requests for courier task progress.
type TaskHandler struct {
	usecase taskUsecase
	logger  logx.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(logger logx.Logger, uc taskUsecase) *TaskHandler {
	return &TaskHandler{usecase: uc, logger: logger}
}

func (h *TaskHandler) decodeProgress(w http.ResponseWriter, r *http.Request) (taskID, courierID string, req progressRequest, ok bool) {
	taskID = idFromURL(r, "id")
	if taskID == "" {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid task id")
		return "", "", req, false
	}
	if !decodeJSON(h.logger, w, r, &req) {
		return "", "", req, false
	}
	if strings.TrimSpace(req.CourierID) == "" {
		writeError(h.logger, w, r, http.StatusBadRequest, "courier_id is required")
		return "", "", req, false
	}
	return taskID, req.CourierID, req, true
}

func (h *TaskHandler) stopIdx(w http.ResponseWriter, r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(idFromURL(r, "idx"))
	if err != nil || idx < 0 {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid stop index")
		return 0, false
	}
	return idx, true
}

func (h *TaskHandler) point(w http.ResponseWriter, r *http.Request, req progressRequest) (geo.Point, bool) {
	if req.Lat == nil || req.Lng == nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "lat and lng are required")
		return geo.Point{}, false
	}
	return geo.Point{Lat: *req.Lat, Lng: *req.Lng}, true
}

func (h *TaskHandler) respond(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case err == nil:
		writeJSON(h.logger, w, r, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, apperr.ErrInvalid):
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid input")
	case errors.Is(err, apperr.ErrUnauthorized):
		writeError(h.logger, w, r, http.StatusUnauthorized, "task belongs to another agent")
	case errors.Is(err, apperr.ErrNotFound):
		writeError(h.logger, w, r, http.StatusNotFound, "task not found")
	case errors.Is(err, apperr.ErrConflict):
		writeError(h.logger, w, r, http.StatusConflict, "conflicting task state")
	case errors.Is(err, apperr.ErrOutOfRange):
		writeError(h.logger, w, r, http.StatusUnprocessableEntity, "too far from stop")
	case errors.Is(err, apperr.ErrUpstream):
		writeError(h.logger, w, r, http.StatusBadGateway, "routing unavailable")
	default:
		writeError(h.logger, w, r, http.StatusInternalServerError, "internal error")
	}
}

// StartPickup handles POST /tasks/{id}/pickup/{idx}/start.
func (h *TaskHandler) StartPickup(w http.ResponseWriter, r *http.Request) {
	taskID, courierID, _, ok := h.decodeProgress(w, r)
	if !ok {
		return
	}
	idx, ok := h.stopIdx(w, r)
	if !ok {
		return
	}
	h.respond(w, r, h.usecase.StartPickup(r.Context(), taskID, courierID, idx))
}

// ReachPickup handles POST /tasks/{id}/pickup/{idx}/reach.
func (h *TaskHandler) ReachPickup(w http.ResponseWriter, r *http.Request) {
	taskID, courierID, req, ok := h.decodeProgress(w, r)
	if !ok {
		return
	}
	idx, ok := h.stopIdx(w, r)
	if !ok {
		return
	}
	at, ok := h.point(w, r, req)
	if !ok {
		return
	}
	h.respond(w, r, h.usecase.ReachPickup(r.Context(), taskID, courierID, idx, at, req.Force))
}

// StartDelivery handles POST /tasks/{id}/drop/{idx}/start.
func (h *TaskHandler) StartDelivery(w http.ResponseWriter, r *http.Request) {
	taskID, courierID, _, ok := h.decodeProgress(w, r)
	if !ok {
		return
	}
	idx, ok := h.stopIdx(w, r)
	if !ok {
		return
	}
	h.respond(w, r, h.usecase.StartDelivery(r.Context(), taskID, courierID, idx))
}

// ReachDelivery handles POST /tasks/{id}/drop/{idx}/reach.
func (h *TaskHandler) ReachDelivery(w http.ResponseWriter, r *http.Request) {
	taskID, courierID, req, ok := h.decodeProgress(w, r)
	if !ok {
		return
	}
	idx, ok := h.stopIdx(w, r)
	if !ok {
		return
	}
	at, ok := h.point(w, r, req)
	if !ok {
		return
	}
	h.respond(w, r, h.usecase.ReachDelivery(r.Context(), taskID, courierID, idx, at))
}

// Cancel handles POST /tasks/{id}/cancel.
func (h *TaskHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	taskID, courierID, _, ok := h.decodeProgress(w, r)
	if !ok {
		return
	}
	h.respond(w, r, h.usecase.Cancel(r.Context(), taskID, courierID))
}

// StartBatchPickup handles POST /batches/{id}/pickup/start.
func (h *TaskHandler) StartBatchPickup(w http.ResponseWriter, r *http.Request) {
	batchID, courierID, _, ok := h.decodeProgress(w, r)
	if !ok {
		return
	}
	h.respond(w, r, h.usecase.StartBatchPickup(r.Context(), batchID, courierID))
}

// ReachBatchPickup handles POST /batches/{id}/pickup/reach.
func (h *TaskHandler) ReachBatchPickup(w http.ResponseWriter, r *http.Request) {
	batchID, courierID, req, ok := h.decodeProgress(w, r)
	if !ok {
		return
	}
	at, ok := h.point(w, r, req)
	if !ok {
		return
	}
	h.respond(w, r, h.usecase.ReachBatchPickup(r.Context(), batchID, courierID, at))
}

// StartBatchDrop handles POST /batches/{id}/drop/{idx}/start.
func (h *TaskHandler) StartBatchDrop(w http.ResponseWriter, r *http.Request) {
	batchID, courierID, _, ok := h.decodeProgress(w, r)
	if !ok {
		return
	}
	idx, ok := h.stopIdx(w, r)
	if !ok {
		return
	}
	h.respond(w, r, h.usecase.StartBatchDrop(r.Context(), batchID, courierID, idx))
}

// ReachBatchDrop handles POST /batches/{id}/drop/{idx}/reach.
func (h *TaskHandler) ReachBatchDrop(w http.ResponseWriter, r *http.Request) {
	batchID, courierID, req, ok := h.decodeProgress(w, r)
	if !ok {
		return
	}
	idx, ok := h.stopIdx(w, r)
	if !ok {
		return
	}
	at, ok := h.point(w, r, req)
	if !ok {
		return
	}
	h.respond(w, r, h.usecase.ReachBatchDrop(r.Context(), batchID, courierID, idx, at))
}

// CancelBatch handles POST /batches/{id}/cancel.
func (h *TaskHandler) CancelBatch(w http.ResponseWriter, r *http.Request) {
	batchID, courierID, _, ok := h.decodeProgress(w, r)
	if !ok {
		return
	}
	h.respond(w, r, h.usecase.CancelBatch(r.Context(), batchID, courierID))
}
