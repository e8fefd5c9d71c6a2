package graph

import (
	"testing"

	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	osmparser "access_router/pkg/osm"
)

func TestBuildSimpleGraph(t *testing.T) {
	// Create a simple triangle graph: 0 -> 1 -> 2 -> 0
	//   Node 100: (1.0, 103.0)
	//   Node 200: (1.1, 103.0)
	//   Node 300: (1.0, 103.1)
	result := &osmparser.ParseResult{
		Edges: []osmparser.RawEdge{
			{FromNodeID: 100, ToNodeID: 200, WayID: 7, Length: 1000},
			{FromNodeID: 200, ToNodeID: 300, WayID: 8, Length: 2000},
			{FromNodeID: 300, ToNodeID: 100, WayID: 9, Length: 3000},
		},
		NodeLat: map[osm.NodeID]float64{100: 1.0, 200: 1.1, 300: 1.0},
		NodeLon: map[osm.NodeID]float64{100: 103.0, 200: 103.0, 300: 103.1},
	}

	g := Build(result)

	if g.NumNodes != 3 {
		t.Fatalf("NumNodes = %d, want 3", g.NumNodes)
	}
	if g.NumLinks != 3 {
		t.Fatalf("NumLinks = %d, want 3", g.NumLinks)
	}

	// Verify each node has exactly 1 outgoing link.
	for i := int32(0); i < g.NumNodes; i++ {
		start, end := g.EdgesFrom(i)
		if end-start != 1 {
			t.Errorf("Node %d has %d links, want 1", i, end-start)
		}
	}

	var total float64
	for _, l := range g.Length {
		total += l
	}
	if total != 6000 {
		t.Errorf("total length = %f, want 6000", total)
	}

	// Nodes are numbered in order of first appearance.
	assert.Equal(t, []int64{7, 8, 9}, g.LinkID)
	assert.Equal(t, []float64{1.0, 1.1, 1.0}, g.NodeLat)
	assert.True(t, g.HasCoords())
}

func TestBuildEmptyGraph(t *testing.T) {
	result := &osmparser.ParseResult{
		Edges:   nil,
		NodeLat: map[osm.NodeID]float64{},
		NodeLon: map[osm.NodeID]float64{},
	}

	g := Build(result)

	if g.NumNodes != 0 {
		t.Errorf("NumNodes = %d, want 0", g.NumNodes)
	}
	if g.NumLinks != 0 {
		t.Errorf("NumLinks = %d, want 0", g.NumLinks)
	}
	assert.False(t, g.HasCoords())
}

func TestBuildCSRInvariants(t *testing.T) {
	// Star graph: center -> A, center -> B, center -> C
	result := &osmparser.ParseResult{
		Edges: []osmparser.RawEdge{
			{FromNodeID: 10, ToNodeID: 20, Length: 100},
			{FromNodeID: 10, ToNodeID: 30, Length: 200},
			{FromNodeID: 10, ToNodeID: 40, Length: 300},
			{FromNodeID: 20, ToNodeID: 10, Length: 100},
		},
		NodeLat: map[osm.NodeID]float64{10: 1.0, 20: 1.1, 30: 1.2, 40: 1.3},
		NodeLon: map[osm.NodeID]float64{10: 103.0, 20: 103.1, 30: 103.2, 40: 103.3},
	}

	g := Build(result)

	require.Equal(t, int32(4), g.NumNodes)
	require.Equal(t, int32(4), g.NumLinks)

	// CSR invariant: FirstOut is monotonically non-decreasing.
	for i := int32(1); i <= g.NumNodes; i++ {
		if g.FirstOut[i] < g.FirstOut[i-1] {
			t.Errorf("FirstOut[%d]=%d < FirstOut[%d]=%d, not monotonic", i, g.FirstOut[i], i-1, g.FirstOut[i-1])
		}
	}
	if g.FirstOut[g.NumNodes] != g.NumLinks {
		t.Errorf("FirstOut[%d]=%d != NumLinks=%d", g.NumNodes, g.FirstOut[g.NumNodes], g.NumLinks)
	}

	// Tail agrees with the CSR slot of every link.
	for u := int32(0); u < g.NumNodes; u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			assert.Equal(t, u, g.Tail[e], "Tail[%d]", e)
		}
	}

	// In-index covers every link exactly once.
	require.Equal(t, g.NumLinks, g.FirstIn[g.NumNodes])
	seen := make(map[int32]bool)
	for v := int32(0); v < g.NumNodes; v++ {
		for i := g.FirstIn[v]; i < g.FirstIn[v+1]; i++ {
			e := g.InLink[i]
			assert.Equal(t, v, g.Head[e])
			assert.False(t, seen[e], "link %d listed twice", e)
			seen[e] = true
		}
	}
	assert.Len(t, seen, int(g.NumLinks))
}

func TestBuildCarriesRoadAttributes(t *testing.T) {
	result := &osmparser.ParseResult{
		Edges: []osmparser.RawEdge{
			{FromNodeID: 2, ToNodeID: 1, Length: 40, Class: osmparser.ClassResidential, MaxSpeed: 30, Lanes: 1},
			{FromNodeID: 1, ToNodeID: 2, Length: 40, Class: osmparser.ClassPrimary, MaxSpeed: 50, Lanes: 2},
		},
		NodeLat: map[osm.NodeID]float64{1: 1.0, 2: 1.1},
		NodeLon: map[osm.NodeID]float64{1: 103.0, 2: 103.1},
	}

	g := Build(result)

	// Node 2 appears first, so the residential link is link 0.
	require.Len(t, g.Class, 2)
	assert.Equal(t, osmparser.ClassResidential, g.Class[0])
	assert.Equal(t, float32(30), g.MaxSpeed[0])
	assert.Equal(t, osmparser.ClassPrimary, g.Class[1])
	assert.Equal(t, uint8(2), g.Lanes[1])
}

func TestBuilderStableOrder(t *testing.T) {
	b := NewBuilder(3)
	b.AddLink(1, 2, 5, 11)
	b.AddLink(0, 2, 20, 12)
	b.AddLink(0, 1, 10, 13)
	b.AddLink(0, 1, 11, 14) // parallel link keeps insertion order
	g := b.Build()

	assert.Equal(t, []int32{0, 3, 4, 4}, g.FirstOut)
	assert.Equal(t, []int64{13, 14, 12, 11}, g.LinkID)
	assert.Equal(t, []int32{1, 1, 2, 2}, g.Head)
	assert.Nil(t, g.Class)
	assert.False(t, g.HasCoords())
}

func TestBuilderPanicsOnBadEndpoint(t *testing.T) {
	b := NewBuilder(2)
	b.AddLink(0, 2, 1, 0)
	assert.Panics(t, func() { b.Build() })
}

func TestLinkIterators(t *testing.T) {
	b := NewBuilder(4)
	b.AddLink(0, 1, 10, 100)
	b.AddLink(1, 2, 5, 101)
	b.AddLink(0, 2, 20, 102)
	b.AddLink(2, 3, 1, 103)
	g := b.Build()

	collect := func(it *LinkIterator, n int32) (links, nodes []int32) {
		it.Reset(n)
		for it.Next() {
			links = append(links, it.Link())
			nodes = append(nodes, it.ToNode())
		}
		return links, nodes
	}

	out := g.OutLinks()
	links, nodes := collect(out, 0)
	assert.Equal(t, []int32{1, 2}, nodes)
	for _, l := range links {
		assert.Equal(t, int32(0), g.Tail[l])
	}

	// Reset makes the same iterator reusable.
	_, nodes = collect(out, 2)
	assert.Equal(t, []int32{3}, nodes)
	_, nodes = collect(out, 3)
	assert.Empty(t, nodes)

	in := g.InLinks()
	links, nodes = collect(in, 2)
	assert.ElementsMatch(t, []int32{0, 1}, nodes)
	for _, l := range links {
		assert.Equal(t, int32(2), g.Head[l])
	}

	assert.Panics(t, func() { out.Reset(4) })
	assert.Panics(t, func() { in.Reset(-1) })
}
