package snap

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"access_router/pkg/geo"
	"access_router/pkg/graph"
)

// grid builds an n×n lattice around Singapore with ~111 m spacing and links
// in both directions between horizontal and vertical neighbours.
func grid(n int) *graph.Graph {
	const step = 0.001
	b := graph.NewBuilder(int32(n * n))
	lat := make([]float64, n*n)
	lon := make([]float64, n*n)
	id := func(r, c int) int32 { return int32(r*n + c) }
	var linkID int64
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			lat[id(r, c)] = 1.3 + float64(r)*step
			lon[id(r, c)] = 103.8 + float64(c)*step
			if c+1 < n {
				b.AddLink(id(r, c), id(r, c+1), 111, linkID)
				b.AddLink(id(r, c+1), id(r, c), 111, linkID+1)
				linkID += 2
			}
			if r+1 < n {
				b.AddLink(id(r, c), id(r+1, c), 111, linkID)
				b.AddLink(id(r+1, c), id(r, c), 111, linkID+1)
				linkID += 2
			}
		}
	}
	g := b.Build()
	g.NodeLat, g.NodeLon = lat, lon
	return g
}

func TestNewRequiresCoords(t *testing.T) {
	b := graph.NewBuilder(2)
	b.AddLink(0, 1, 10, 0)
	_, err := New(b.Build(), 0)
	assert.ErrorIs(t, err, ErrNoCoords)
}

func TestSnapOnLink(t *testing.T) {
	g := grid(5)
	s, err := New(g, 0)
	require.NoError(t, err)
	assert.Equal(t, int(g.NumLinks), s.Len())
	assert.Equal(t, DefaultMaxDistance, s.MaxDistance())

	// A quarter of the way from node 0 to node 1, slightly north.
	res, err := s.Snap(1.30001, 103.80025)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int32{0, 1}, []int32{res.NodeU, res.NodeV})
	assert.InDelta(t, 1.1, res.Dist, 0.1)
	assert.Equal(t, int32(0), res.Node())
}

func TestSnapNearerEndpoint(t *testing.T) {
	r := Result{NodeU: 4, NodeV: 9, Ratio: 0.8}
	assert.Equal(t, int32(9), r.Node())
	r.Ratio = 0.2
	assert.Equal(t, int32(4), r.Node())
}

func TestSnapTooFar(t *testing.T) {
	s, err := New(grid(3), 100)
	require.NoError(t, err)

	_, err = s.Snap(1.31, 103.80) // ~900 m north of the grid
	assert.ErrorIs(t, err, ErrPointTooFar)

	_, err = s.Snap(1.3025, 103.8005) // ~50 m beyond the top row
	assert.NoError(t, err)
}

func TestSnapMatchesBruteForce(t *testing.T) {
	g := grid(12)
	s, err := New(g, 2000)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 300; i++ {
		lat := 1.2995 + rng.Float64()*0.012
		lon := 103.7995 + rng.Float64()*0.012

		want := 1e18
		for l := int32(0); l < g.NumLinks; l++ {
			u, v := g.Tail[l], g.Head[l]
			d, _ := geo.PointToSegmentDist(lat, lon, g.NodeLat[u], g.NodeLon[u], g.NodeLat[v], g.NodeLon[v])
			want = min(want, d)
		}

		got, err := s.Snap(lat, lon)
		require.NoError(t, err)
		assert.InDelta(t, want, got.Dist, 1e-6, "point %f,%f", lat, lon)
	}
}
