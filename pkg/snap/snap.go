// Package snap attaches coordinates to the nearest graph link.
package snap

import (
	"errors"
	"math"

	"github.com/tidwall/rtree"

	"access_router/pkg/geo"
	"access_router/pkg/graph"
)

// DefaultMaxDistance is used when a Snapper is built with a non-positive
// maximum distance.
const DefaultMaxDistance = 500.0

var (
	// ErrPointTooFar is returned when the query point is too far from any link.
	ErrPointTooFar = errors.New("point too far from road")
	// ErrNoCoords is returned for graphs without node coordinates.
	ErrNoCoords = errors.New("graph has no node coordinates")
)

// Result is a point snapped onto a link.
type Result struct {
	Link  int32   // link index
	NodeU int32   // from-node of the link
	NodeV int32   // to-node of the link
	Ratio float64 // 0.0 = at NodeU, 1.0 = at NodeV
	Dist  float64 // meters from the query point to the snapped point
}

// Node returns the link endpoint nearer to the snapped point.
func (r Result) Node() int32 {
	if r.Ratio <= 0.5 {
		return r.NodeU
	}
	return r.NodeV
}

// Snapper finds the nearest link using an R-tree over link bounding boxes.
//
// Boxes are stored in a planar projection (lon scaled by the cosine of the
// network's mean latitude) so that box distances convert to meters and can
// bound the exact point-to-segment distance.
type Snapper struct {
	g       *graph.Graph
	tr      rtree.RTreeG[int32]
	proj    geo.Projection
	maxDist float64
}

// New indexes every link of g. maxDist <= 0 selects DefaultMaxDistance.
func New(g *graph.Graph, maxDist float64) (*Snapper, error) {
	if !g.HasCoords() {
		return nil, ErrNoCoords
	}
	if maxDist <= 0 {
		maxDist = DefaultMaxDistance
	}

	var sumLat float64
	for _, lat := range g.NodeLat {
		sumLat += lat
	}
	s := &Snapper{
		g:       g,
		proj:    geo.NewProjection(sumLat / float64(g.NumNodes)),
		maxDist: maxDist,
	}

	for l := int32(0); l < g.NumLinks; l++ {
		u, v := g.Tail[l], g.Head[l]
		ux, uy := s.proj.Project(g.NodeLat[u], g.NodeLon[u])
		vx, vy := s.proj.Project(g.NodeLat[v], g.NodeLon[v])
		s.tr.Insert(
			[2]float64{math.Min(ux, vx), math.Min(uy, vy)},
			[2]float64{math.Max(ux, vx), math.Max(uy, vy)},
			l,
		)
	}
	return s, nil
}

// MaxDistance returns the snapping radius in meters.
func (s *Snapper) MaxDistance() float64 { return s.maxDist }

// Len returns the number of indexed links.
func (s *Snapper) Len() int { return s.tr.Len() }

// slack absorbs the difference between the index projection and the local
// projection used for exact distances.
const slack = 1.02

// Snap finds the nearest link to the given lat/lng.
func (s *Snapper) Snap(lat, lng float64) (Result, error) {
	px, py := s.proj.Project(lat, lng)
	target := [2]float64{px, py}

	best := Result{Dist: math.Inf(1)}
	s.tr.Nearby(
		func(min, max [2]float64, _ int32, _ bool) float64 {
			return boxDist(target, min, max)
		},
		func(_, _ [2]float64, l int32, dist float64) bool {
			lower := dist / slack
			if lower > s.maxDist || lower > best.Dist {
				return false
			}
			u, v := s.g.Tail[l], s.g.Head[l]
			d, ratio := geo.PointToSegmentDist(lat, lng,
				s.g.NodeLat[u], s.g.NodeLon[u],
				s.g.NodeLat[v], s.g.NodeLon[v])
			if d < best.Dist || (d == best.Dist && l < best.Link) {
				best = Result{Link: l, NodeU: u, NodeV: v, Ratio: ratio, Dist: d}
			}
			return true
		},
	)

	if best.Dist > s.maxDist {
		return Result{}, ErrPointTooFar
	}
	return best, nil
}

// boxDist returns the distance in meters from p to the box.
func boxDist(p, min, max [2]float64) float64 {
	var d2 float64
	for i := 0; i < 2; i++ {
		if p[i] < min[i] {
			d := min[i] - p[i]
			d2 += d * d
		} else if p[i] > max[i] {
			d := p[i] - max[i]
			d2 += d * d
		}
	}
	return math.Sqrt(d2) * geo.MetersPerDegree
}
