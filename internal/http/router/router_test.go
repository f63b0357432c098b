package router_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"service-dispatch/internal/http/handlers"
	"service-dispatch/internal/http/router"
	"service-dispatch/internal/logx"
)

func TestNew_ServesPing(t *testing.T) {
	base := handlers.New(logx.Nop())
	disp := &handlers.DispatchHandler{}
	task := &handlers.TaskHandler{}
	courier := &handlers.CourierHandler{}

	var h http.Handler = router.New(logx.Nop(), base, disp, task, courier, nil)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
}

func TestNew_UnknownRouteIs404(t *testing.T) {
	base := handlers.New(logx.Nop())

	h := router.New(logx.Nop(), base, &handlers.DispatchHandler{}, &handlers.TaskHandler{}, &handlers.CourierHandler{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}
