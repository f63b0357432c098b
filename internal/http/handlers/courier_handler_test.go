package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/geo"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/presence"
)

type stubPresencePort struct {
	locations    map[string]geo.Point
	avail        map[string]domain.Availability
	registered   []string
	tokens       map[string][]string
	disconnected []string
}

func (s *stubPresencePort) Register(userID string, _ presence.Conn, token string) {
	s.registered = append(s.registered, userID)
	if token != "" {
		if s.tokens == nil {
			s.tokens = map[string][]string{}
		}
		s.tokens[userID] = append(s.tokens[userID], token)
	}
}

func (s *stubPresencePort) Disconnect(userID string) {
	s.disconnected = append(s.disconnected, userID)
}

func (s *stubPresencePort) UpdateLocation(userID string, pt geo.Point) {
	if s.locations == nil {
		s.locations = map[string]geo.Point{}
	}
	s.locations[userID] = pt
}

func (s *stubPresencePort) SetAvailability(userID string, a domain.Availability) {
	if s.avail == nil {
		s.avail = map[string]domain.Availability{}
	}
	s.avail[userID] = a
}

func (s *stubPresencePort) Availability(userID string) domain.Availability {
	return s.avail[userID]
}

type stubLocationStore struct {
	persisted map[string]geo.Point
	avail     map[string]domain.Availability
	err       error
}

func (s *stubLocationStore) UpdateLastLocation(_ context.Context, id string, pt geo.Point) error {
	if s.err != nil {
		return s.err
	}
	if s.persisted == nil {
		s.persisted = map[string]geo.Point{}
	}
	s.persisted[id] = pt
	return nil
}

func (s *stubLocationStore) SetAvailability(_ context.Context, id string, a domain.Availability) error {
	if s.avail == nil {
		s.avail = map[string]domain.Availability{}
	}
	s.avail[id] = a
	return nil
}

type stubNotificationStore struct {
	entries []domain.NotificationLogEntry
	err     error
}

func (s *stubNotificationStore) ListByUser(_ context.Context, _ string, _ int) ([]domain.NotificationLogEntry, error) {
	return s.entries, s.err
}

func TestCourierHandler_UpdateLocation(t *testing.T) {
	t.Parallel()

	p := &stubPresencePort{}
	store := &stubLocationStore{}
	h := NewCourierHandler(logx.Nop(), p, store, &stubNotificationStore{})

	req := httptest.NewRequest(http.MethodPost, "/couriers/c1/location",
		strings.NewReader(`{"lat":10.5,"lng":20.25,"availability":"free"}`))
	req = withURLParam(req, "id", "c1")
	rr := httptest.NewRecorder()

	h.UpdateLocation(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, geo.Point{Lat: 10.5, Lng: 20.25}, p.locations["c1"])
	require.Equal(t, geo.Point{Lat: 10.5, Lng: 20.25}, store.persisted["c1"])
	require.Equal(t, domain.AvailabilityFree, p.avail["c1"])
	require.Equal(t, domain.AvailabilityFree, store.avail["c1"])
}

func TestCourierHandler_UpdateLocation_FirstUpdateLands(t *testing.T) {
	t.Parallel()

	// the live directory, not a stub: the very first location report of a
	// courier nobody registered before must be visible to dispatch
	dir := presence.NewDirectory()
	h := NewCourierHandler(logx.Nop(), dir, &stubLocationStore{}, &stubNotificationStore{})

	req := httptest.NewRequest(http.MethodPost, "/couriers/c1/location",
		strings.NewReader(`{"lat":10.5,"lng":20.25,"availability":"free"}`))
	req = withURLParam(req, "id", "c1")
	rr := httptest.NewRecorder()
	h.UpdateLocation(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	pt, ok := dir.Location("c1")
	require.True(t, ok)
	require.Equal(t, geo.Point{Lat: 10.5, Lng: 20.25}, pt)
	require.Equal(t, domain.AvailabilityFree, dir.Availability("c1"))

	// coordinates without availability land just the same
	req = httptest.NewRequest(http.MethodPost, "/couriers/c2/location",
		strings.NewReader(`{"lat":1,"lng":2}`))
	req = withURLParam(req, "id", "c2")
	rr = httptest.NewRecorder()
	h.UpdateLocation(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	_, ok = dir.Location("c2")
	require.True(t, ok)
}

func TestCourierHandler_RegisterPushToken(t *testing.T) {
	t.Parallel()

	dir := presence.NewDirectory()
	h := NewCourierHandler(logx.Nop(), dir, &stubLocationStore{}, &stubNotificationStore{})

	req := httptest.NewRequest(http.MethodPost, "/couriers/c1/push-token",
		strings.NewReader(`{"token":"tok-1"}`))
	req = withURLParam(req, "id", "c1")
	rr := httptest.NewRecorder()
	h.RegisterPushToken(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, []string{"tok-1"}, dir.Tokens("c1"))

	// an empty token is rejected, not silently dropped
	req = httptest.NewRequest(http.MethodPost, "/couriers/c1/push-token",
		strings.NewReader(`{"token":""}`))
	req = withURLParam(req, "id", "c1")
	rr = httptest.NewRecorder()
	h.RegisterPushToken(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, []string{"tok-1"}, dir.Tokens("c1"))
}

func TestCourierHandler_Events_ConnectionLifecycle(t *testing.T) {
	t.Parallel()

	dir := presence.NewDirectory()
	h := NewCourierHandler(logx.Nop(), dir, &stubLocationStore{}, &stubNotificationStore{})

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/couriers/c1/events", nil).WithContext(ctx)
	req = withURLParam(req, "id", "c1")
	rr := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.Events(rr, req)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, ok := dir.Connection("c1")
		return ok
	}, time.Second, 5*time.Millisecond)

	conn, _ := dir.Connection("c1")
	require.NoError(t, conn.Send(domain.EventNewOrder, map[string]any{"task_id": "t1"}))

	cancel()
	<-done

	_, connected := dir.Connection("c1")
	require.False(t, connected)

	body := rr.Body.String()
	require.Contains(t, body, "event: "+domain.EventNewOrder)
	require.Contains(t, body, `"task_id":"t1"`)
	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
}

func TestCourierHandler_UpdateLocation_PersistFailureStaysOK(t *testing.T) {
	t.Parallel()

	p := &stubPresencePort{}
	store := &stubLocationStore{err: errors.New("db down")}
	h := NewCourierHandler(logx.Nop(), p, store, &stubNotificationStore{})

	req := httptest.NewRequest(http.MethodPost, "/couriers/c1/location",
		strings.NewReader(`{"lat":10.5,"lng":20.25}`))
	req = withURLParam(req, "id", "c1")
	rr := httptest.NewRecorder()

	h.UpdateLocation(rr, req)

	// the live directory is the authority; a durable write failure is logged only
	assert.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, geo.Point{Lat: 10.5, Lng: 20.25}, p.locations["c1"])
}

func TestCourierHandler_UpdateLocation_BadCoordinates(t *testing.T) {
	t.Parallel()

	h := NewCourierHandler(logx.Nop(), &stubPresencePort{}, &stubLocationStore{}, &stubNotificationStore{})

	req := httptest.NewRequest(http.MethodPost, "/couriers/c1/location",
		strings.NewReader(`{"lat":123.0,"lng":20}`))
	req = withURLParam(req, "id", "c1")
	rr := httptest.NewRecorder()

	h.UpdateLocation(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCourierHandler_Notifications(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &stubNotificationStore{entries: []domain.NotificationLogEntry{{
		Event:           domain.EventNewOrder,
		TaskID:          "t1",
		OrderID:         "o1",
		Title:           "New order",
		Body:            "Pickup at merchant st 1",
		PickupAddresses: []string{"merchant st 1"},
		ExpiresIn:       60 * time.Second,
		CreatedAt:       created,
	}}}
	h := NewCourierHandler(logx.Nop(), &stubPresencePort{}, &stubLocationStore{}, store)

	req := httptest.NewRequest(http.MethodGet, "/couriers/c1/notifications", nil)
	req = withURLParam(req, "id", "c1")
	rr := httptest.NewRecorder()

	h.Notifications(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"expires_in_seconds":60`)
	assert.Contains(t, rr.Body.String(), `"pickup_addresses":["merchant st 1"]`)
}

func TestCourierHandler_Notifications_BadLimit(t *testing.T) {
	t.Parallel()

	h := NewCourierHandler(logx.Nop(), &stubPresencePort{}, &stubLocationStore{}, &stubNotificationStore{})

	req := httptest.NewRequest(http.MethodGet, "/couriers/c1/notifications?limit=zero", nil)
	req = withURLParam(req, "id", "c1")
	rr := httptest.NewRecorder()

	h.Notifications(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
