package geo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var triangle = Polygon{
	{Lat: 0, Lng: 0},
	{Lat: 0, Lng: 4},
	{Lat: 4, Lng: 0},
}

func TestNormalizeRing(t *testing.T) {
	t.Parallel()

	closed := NormalizeRing(triangle)
	require.Len(t, closed, 4)
	require.Equal(t, closed[0], closed[3])

	// already closed rings are untouched
	again := NormalizeRing(closed)
	require.Len(t, again, 4)

	require.Empty(t, NormalizeRing(nil))
}

func TestContains_Triangle(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		p    Point
		want bool
	}{
		{"inside", Point{Lat: 1, Lng: 1}, true},
		{"outside", Point{Lat: 3, Lng: 3}, false},
		{"far outside", Point{Lat: -1, Lng: -1}, false},
		{"vertex", Point{Lat: 0, Lng: 0}, true},
		{"on horizontal edge", Point{Lat: 0, Lng: 2}, true},
		{"on hypotenuse", Point{Lat: 2, Lng: 2}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Contains(tc.p, triangle))
		})
	}
}

func TestContains_DegenerateRing(t *testing.T) {
	t.Parallel()

	require.False(t, Contains(Point{Lat: 1, Lng: 1}, nil))
	require.False(t, Contains(Point{Lat: 1, Lng: 1}, Polygon{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}}))
}

func TestHaversineKM(t *testing.T) {
	t.Parallel()

	require.Zero(t, HaversineKM(Point{Lat: 10, Lng: 20}, Point{Lat: 10, Lng: 20}))

	// one degree of latitude is roughly 111 km
	d := HaversineKM(Point{Lat: 0, Lng: 0}, Point{Lat: 1, Lng: 0})
	require.InDelta(t, 111.2, d, 0.5)

	// short hop used by the reach-pickup guard: ~0.5 km
	d = HaversineKM(Point{Lat: 0, Lng: 0}, Point{Lat: 0.0045, Lng: 0})
	require.InDelta(t, 0.5, d, 0.01)
}
