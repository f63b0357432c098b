package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/service/dispatch"
)

// DispatchHandler handles HTTP requests for assignment and offers.
type DispatchHandler struct {
	usecase dispatchUsecase
	logger  logx.Logger
}

// NewDispatchHandler creates a new DispatchHandler.
func NewDispatchHandler(logger logx.Logger, uc dispatchUsecase) *DispatchHandler {
	return &DispatchHandler{usecase: uc, logger: logger}
}

// Candidates handles GET /tasks/{id}/candidates.
func (h *DispatchHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	taskID := idFromURL(r, "id")
	if taskID == "" {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid task id")
		return
	}

	opts := dispatch.SelectOptions{
		GeofenceEnabled: r.URL.Query().Get("geofence") != "false",
		NameFilter:      strings.TrimSpace(r.URL.Query().Get("name")),
	}
	got, err := h.usecase.SelectCandidates(r.Context(), taskID, opts)
	switch {
	case err == nil:
		out := make([]candidateResponse, 0, len(got))
		for _, c := range got {
			out = append(out, candidateToResponse(c))
		}
		writeJSON(h.logger, w, r, http.StatusOK, out)
	case errors.Is(err, apperr.ErrNotFound):
		writeError(h.logger, w, r, http.StatusNotFound, "task not found")
	default:
		writeError(h.logger, w, r, http.StatusInternalServerError, "internal error")
	}
}

// Assign handles POST /tasks/{id}/assign.
func (h *DispatchHandler) Assign(w http.ResponseWriter, r *http.Request) {
	taskID := idFromURL(r, "id")
	if taskID == "" {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid task id")
		return
	}

	var req assignTaskRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	if strings.TrimSpace(req.CourierID) == "" {
		writeError(h.logger, w, r, http.StatusBadRequest, "courier_id is required")
		return
	}

	offer, err := h.usecase.Assign(r.Context(), taskID, req.CourierID)
	switch {
	case err == nil:
		writeJSON(h.logger, w, r, http.StatusOK, offerToResponse(offer))
	case errors.Is(err, apperr.ErrNotFound):
		writeError(h.logger, w, r, http.StatusNotFound, "task or courier not found")
	case errors.Is(err, apperr.ErrConflict):
		writeError(h.logger, w, r, http.StatusConflict, "task already assigned")
	default:
		writeError(h.logger, w, r, http.StatusInternalServerError, "internal error")
	}
}

// Batch handles POST /tasks/batch.
func (h *DispatchHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var req batchTasksRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	if strings.TrimSpace(req.CourierID) == "" {
		writeError(h.logger, w, r, http.StatusBadRequest, "courier_id is required")
		return
	}

	b, offer, err := h.usecase.Batch(r.Context(), req.TaskIDs, req.CourierID)
	switch {
	case err == nil:
		writeJSON(h.logger, w, r, http.StatusOK, map[string]any{
			"batch": batchToResponse(b),
			"offer": offerToResponse(offer),
		})
	case errors.Is(err, apperr.ErrInvalid):
		writeError(h.logger, w, r, http.StatusBadRequest, "tasks cannot be batched")
	case errors.Is(err, apperr.ErrNotFound):
		writeError(h.logger, w, r, http.StatusNotFound, "task or courier not found")
	default:
		writeError(h.logger, w, r, http.StatusInternalServerError, "internal error")
	}
}

// AcceptOffer handles POST /offers/{id}/accept, where {id} is the task or
// batch the offer was issued for.
func (h *DispatchHandler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	h.resolveOffer(w, r, h.usecase.AcceptOffer)
}

// RejectOffer handles POST /offers/{id}/reject.
func (h *DispatchHandler) RejectOffer(w http.ResponseWriter, r *http.Request) {
	h.resolveOffer(w, r, h.usecase.RejectOffer)
}

func (h *DispatchHandler) resolveOffer(w http.ResponseWriter, r *http.Request,
	action func(ctx context.Context, taskOrBatchID, courierID string) error) {

	id := idFromURL(r, "id")
	if id == "" {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid offer id")
		return
	}

	var req offerActionRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	if strings.TrimSpace(req.CourierID) == "" {
		writeError(h.logger, w, r, http.StatusBadRequest, "courier_id is required")
		return
	}

	err := action(r.Context(), id, req.CourierID)
	switch {
	case err == nil:
		writeJSON(h.logger, w, r, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, apperr.ErrNotFound):
		writeError(h.logger, w, r, http.StatusNotFound, "notification not found")
	case errors.Is(err, apperr.ErrUnauthorized):
		writeError(h.logger, w, r, http.StatusUnauthorized, "agent must be online")
	default:
		writeError(h.logger, w, r, http.StatusInternalServerError, "internal error")
	}
}

// PendingOffers handles GET /couriers/{id}/offers.
func (h *DispatchHandler) PendingOffers(w http.ResponseWriter, r *http.Request) {
	courierID := idFromURL(r, "id")
	if courierID == "" {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid courier id")
		return
	}

	got, err := h.usecase.PendingOffers(r.Context(), courierID)
	if err != nil {
		writeError(h.logger, w, r, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]pendingOfferResponse, 0, len(got))
	for _, p := range got {
		out = append(out, pendingOfferToResponse(p))
	}
	writeJSON(h.logger, w, r, http.StatusOK, out)
}
