package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want, tolerance        float64
	}{
		{"Raffles Place to Changi Airport", 1.2830, 103.8513, 1.3644, 103.9915, 18_023, 180},
		{"same point", 1.3521, 103.8198, 1.3521, 103.8198, 0, 0},
		{"London to Paris", 51.5074, -0.1278, 48.8566, 2.3522, 343_500, 3_500},
		{"one millidegree of latitude", 1.3521, 103.8198, 1.3531, 103.8198, 111.19, 0.01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.want, got, tt.tolerance)
			assert.InDelta(t, got, Haversine(tt.lat2, tt.lon2, tt.lat1, tt.lon1), 1e-9, "symmetric")
		})
	}
}

func TestProjectionAgreesWithHaversine(t *testing.T) {
	p := NewProjection(1.356)
	x1, y1 := p.Project(1.3521, 103.8198)
	x2, y2 := p.Project(1.3600, 103.8300)

	planar := math.Hypot(x2-x1, y2-y1) * MetersPerDegree
	h := Haversine(1.3521, 103.8198, 1.3600, 103.8300)
	assert.InEpsilon(t, h, planar, 0.003)
}

func TestPointToSegmentDist(t *testing.T) {
	tests := []struct {
		name                   string
		pLat, pLon             float64
		aLat, aLon, bLat, bLon float64
		wantRatio, wantDist    float64
	}{
		{"at start", 1.35, 103.82, 1.35, 103.82, 1.36, 103.82, 0, 0},
		{"at end", 1.36, 103.82, 1.35, 103.82, 1.36, 103.82, 1, 0},
		{"beyond end", 1.37, 103.82, 1.35, 103.82, 1.36, 103.82, 1, 1111.9},
		{"perpendicular at midpoint", 1.355, 103.821, 1.35, 103.82, 1.36, 103.82, 0.5, 111.2},
		{"degenerate segment", 1.35, 103.821, 1.35, 103.82, 1.35, 103.82, 0, 111.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dist, ratio := PointToSegmentDist(tt.pLat, tt.pLon, tt.aLat, tt.aLon, tt.bLat, tt.bLon)
			assert.InDelta(t, tt.wantRatio, ratio, 1e-6)
			assert.InDelta(t, tt.wantDist, dist, 0.5)
		})
	}
}

func BenchmarkHaversine(b *testing.B) {
	for b.Loop() {
		Haversine(1.3521, 103.8198, 1.2905, 103.8520)
	}
}

func BenchmarkPointToSegmentDist(b *testing.B) {
	for b.Loop() {
		PointToSegmentDist(1.355, 103.821, 1.35, 103.82, 1.36, 103.82)
	}
}
