package handlers

import (
	"service-dispatch/internal/domain"
	"service-dispatch/internal/service/dispatch"
)

func offerToResponse(o *domain.Offer) offerResponse {
	return offerResponse{
		ID:               o.ID,
		TaskID:           o.TaskID,
		CourierID:        o.CourierID,
		Batch:            o.Batch,
		Status:           string(o.Status),
		ExpiresInSeconds: int64(o.ExpiresIn.Seconds()),
		CreatedAt:        o.CreatedAt,
	}
}

func batchToResponse(b *domain.BatchTask) batchResponse {
	return batchResponse{
		ID:        b.ID,
		TaskIDs:   b.TaskIDs,
		CourierID: b.CourierID,
		Mode:      string(b.Mode),
		Drops:     len(b.Drops),
	}
}

func candidateToResponse(c domain.Candidate) candidateResponse {
	out := candidateResponse{
		CourierID:     c.Courier.ID,
		Name:          c.Courier.Name,
		Availability:  string(c.Courier.Availability),
		PendingOrders: c.Courier.PendingOrders,
		DistanceKM:    c.DistanceKM,
	}
	if c.Location != nil {
		out.Lat = &c.Location.Lat
		out.Lng = &c.Location.Lng
	}
	return out
}

func pendingOfferToResponse(p dispatch.PendingOffer) pendingOfferResponse {
	return pendingOfferResponse{
		offerResponse:    offerToResponse(&p.Offer),
		RemainingSeconds: int64(p.Remaining.Seconds()),
	}
}

func notificationToResponse(e domain.NotificationLogEntry) notificationResponse {
	return notificationResponse{
		Event:            e.Event,
		TaskID:           e.TaskID,
		OrderID:          e.OrderID,
		Title:            e.Title,
		Body:             e.Body,
		PickupAddresses:  e.PickupAddresses,
		DropAddresses:    e.DropAddresses,
		ExpiresInSeconds: int64(e.ExpiresIn.Seconds()),
		CreatedAt:        e.CreatedAt,
	}
}
