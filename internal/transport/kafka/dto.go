package kafka

import (
	"strings"
	"time"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/geo"
	"service-dispatch/internal/service/tasks"
)

// StopDTO is one pickup or drop point of an incoming order.
type StopDTO struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

// OrderEventDTO is the order-confirmation message consumed from Kafka.
type OrderEventDTO struct {
	OrderID    string    `json:"order_id"`
	MerchantID string    `json:"merchant_id"`
	CustomerID string    `json:"customer_id"`
	Mode       string    `json:"mode"`
	Schedule   string    `json:"schedule"`
	Pickups    []StopDTO `json:"pickups"`
	Drops      []StopDTO `json:"drops"`
	CreatedAt  time.Time `json:"created_at"`
}

// ToDomain converts OrderEventDTO to tasks.OrderInfo.
func ToDomain(dto OrderEventDTO) tasks.OrderInfo {
	schedule := domain.Schedule(strings.TrimSpace(dto.Schedule))
	if schedule == "" {
		schedule = domain.ScheduleOnDemand
	}
	return tasks.OrderInfo{
		OrderID:    strings.TrimSpace(dto.OrderID),
		MerchantID: strings.TrimSpace(dto.MerchantID),
		CustomerID: strings.TrimSpace(dto.CustomerID),
		Mode:       domain.DeliveryMode(strings.TrimSpace(dto.Mode)),
		Schedule:   schedule,
		Pickups:    toStops(dto.Pickups),
		Drops:      toStops(dto.Drops),
	}
}

func toStops(in []StopDTO) []domain.Stop {
	out := make([]domain.Stop, 0, len(in))
	for _, s := range in {
		out = append(out, domain.Stop{
			Location: geo.Point{Lat: s.Lat, Lng: s.Lng},
			Address:  strings.TrimSpace(s.Address),
		})
	}
	return out
}
