package handlers

import (
	"net/http"
	"strconv"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/geo"
	"service-dispatch/internal/logx"
)

const defaultInboxLimit = 50

// CourierHandler handles HTTP requests for courier presence and inbox.
type CourierHandler struct {
	presence      presencePort
	locations     locationStore
	notifications notificationStore
	logger        logx.Logger
}

// NewCourierHandler creates a new CourierHandler.
func NewCourierHandler(logger logx.Logger, p presencePort, loc locationStore, n notificationStore) *CourierHandler {
	return &CourierHandler{presence: p, locations: loc, notifications: n, logger: logger}
}

// UpdateLocation handles POST /couriers/{id}/location. The live directory is
// updated synchronously; the durable record is updated best effort so a slow
// database never throttles the location stream.
func (h *CourierHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	courierID := idFromURL(r, "id")
	if courierID == "" {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid courier id")
		return
	}

	var req locationUpdateRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 {
		writeError(h.logger, w, r, http.StatusBadRequest, "coordinates out of range")
		return
	}

	// a courier reporting a location is online; the first update must land
	// even when nothing else registered the courier yet
	h.presence.Register(courierID, nil, "")

	pt := geo.Point{Lat: req.Lat, Lng: req.Lng}
	h.presence.UpdateLocation(courierID, pt)

	if req.Availability != "" {
		a := domain.Availability(req.Availability)
		if !a.Valid() {
			writeError(h.logger, w, r, http.StatusBadRequest, "invalid availability")
			return
		}
		h.presence.SetAvailability(courierID, a)
		if err := h.locations.SetAvailability(r.Context(), courierID, a); err != nil {
			h.logger.Warn("availability persist failed",
				logx.String("courier_id", courierID),
				logx.Any("err", err),
			)
		}
	}

	if err := h.locations.UpdateLastLocation(r.Context(), courierID, pt); err != nil {
		h.logger.Warn("location persist failed",
			logx.String("courier_id", courierID),
			logx.Any("err", err),
		)
	}

	writeJSON(h.logger, w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// RegisterPushToken handles POST /couriers/{id}/push-token. Tokens feed the
// push fallback channel; the newest tokens win when the per-user set is full.
func (h *CourierHandler) RegisterPushToken(w http.ResponseWriter, r *http.Request) {
	courierID := idFromURL(r, "id")
	if courierID == "" {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid courier id")
		return
	}

	var req pushTokenRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	if req.Token == "" {
		writeError(h.logger, w, r, http.StatusBadRequest, "token required")
		return
	}

	h.presence.Register(courierID, nil, req.Token)
	writeJSON(h.logger, w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// Events handles GET /couriers/{id}/events: a server-sent event stream that
// doubles as the courier's realtime registration. The connection stays in
// the presence directory until the client goes away; push tokens and the
// last location survive the disconnect.
func (h *CourierHandler) Events(w http.ResponseWriter, r *http.Request) {
	courierID := idFromURL(r, "id")
	if courierID == "" {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid courier id")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(h.logger, w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.presence.Register(courierID, newSSEConn(w, flusher), "")
	h.logger.Info("realtime channel connected", logx.String("courier_id", courierID))

	<-r.Context().Done()

	h.presence.Disconnect(courierID)
	h.logger.Info("realtime channel disconnected", logx.String("courier_id", courierID))
}

// Notifications handles GET /couriers/{id}/notifications.
func (h *CourierHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	courierID := idFromURL(r, "id")
	if courierID == "" {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid courier id")
		return
	}

	limit := defaultInboxLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			writeError(h.logger, w, r, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	got, err := h.notifications.ListByUser(r.Context(), courierID, limit)
	if err != nil {
		writeError(h.logger, w, r, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]notificationResponse, 0, len(got))
	for _, e := range got {
		out = append(out, notificationToResponse(e))
	}
	writeJSON(h.logger, w, r, http.StatusOK, out)
}
