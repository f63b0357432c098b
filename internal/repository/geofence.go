package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"service-dispatch/internal/geo"
)

// GeofenceRepo loads merchant service-area polygons.
type GeofenceRepo struct {
	db *pgxpool.Pool
}

// NewGeofenceRepo creates a new GeofenceRepo.
func NewGeofenceRepo(db *pgxpool.Pool) *GeofenceRepo {
	return &GeofenceRepo{db: db}
}

// ServiceArea returns the merchant's polygon ring, closed. A merchant with
// no polygon returns an empty ring, which disables geofence filtering.
func (r *GeofenceRepo) ServiceArea(ctx context.Context, merchantID string) (geo.Polygon, error) {
	rows, err := r.db.Query(ctx, `
        SELECT lat, lng
        FROM merchant_geofences
        WHERE merchant_id = $1
        ORDER BY idx
    `, merchantID)
	if err != nil {
		return nil, fmt.Errorf("service area of merchant %q: %w", merchantID, err)
	}
	defer rows.Close()

	var ring geo.Polygon
	for rows.Next() {
		var p geo.Point
		if err := rows.Scan(&p.Lat, &p.Lng); err != nil {
			return nil, fmt.Errorf("scan geofence vertex: %w", err)
		}
		ring = append(ring, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return geo.NormalizeRing(ring), nil
}
