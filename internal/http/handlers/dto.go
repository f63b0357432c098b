package handlers

import "time"

type assignTaskRequest struct {
	CourierID string `json:"courier_id"`
}

type batchTasksRequest struct {
	TaskIDs   []string `json:"task_ids"`
	CourierID string   `json:"courier_id"`
}

type offerActionRequest struct {
	CourierID string `json:"courier_id"`
}

type offerResponse struct {
	ID               string    `json:"id"`
	TaskID           string    `json:"task_id"`
	CourierID        string    `json:"courier_id"`
	Batch            bool      `json:"batch"`
	Status           string    `json:"status"`
	ExpiresInSeconds int64     `json:"expires_in_seconds"`
	CreatedAt        time.Time `json:"created_at"`
}

type batchResponse struct {
	ID        string   `json:"id"`
	TaskIDs   []string `json:"task_ids"`
	CourierID string   `json:"courier_id"`
	Mode      string   `json:"mode"`
	Drops     int      `json:"drops"`
}

type candidateResponse struct {
	CourierID     string   `json:"courier_id"`
	Name          string   `json:"name"`
	Availability  string   `json:"availability"`
	PendingOrders int      `json:"pending_orders"`
	DistanceKM    float64  `json:"distance_km"`
	Lat           *float64 `json:"lat,omitempty"`
	Lng           *float64 `json:"lng,omitempty"`
}

type pendingOfferResponse struct {
	offerResponse
	RemainingSeconds int64 `json:"remaining_seconds"`
}

type progressRequest struct {
	CourierID string   `json:"courier_id"`
	Lat       *float64 `json:"lat,omitempty"`
	Lng       *float64 `json:"lng,omitempty"`
	Force     bool     `json:"force,omitempty"`
}

type locationUpdateRequest struct {
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	Availability string  `json:"availability,omitempty"`
}

type pushTokenRequest struct {
	Token string `json:"token"`
}

type notificationResponse struct {
	Event            string    `json:"event"`
	TaskID           string    `json:"task_id,omitempty"`
	OrderID          string    `json:"order_id,omitempty"`
	Title            string    `json:"title"`
	Body             string    `json:"body"`
	PickupAddresses  []string  `json:"pickup_addresses,omitempty"`
	DropAddresses    []string  `json:"drop_addresses,omitempty"`
	ExpiresInSeconds int64     `json:"expires_in_seconds,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
