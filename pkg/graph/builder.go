package graph

import (
	"sort"

	"github.com/paulmach/osm"

	osmparser "access_router/pkg/osm"
)

// LinkSpec describes one directed link handed to a Builder.
type LinkSpec struct {
	From, To int32
	Length   float64 // meters
	ID       int64
	Class    osmparser.RoadClass
	MaxSpeed float32
	Lanes    uint8
}

// Builder accumulates links over a fixed node set and produces a Graph.
type Builder struct {
	numNodes int32
	links    []LinkSpec
	lat, lon []float64
	attrs    bool
}

// NewBuilder creates a Builder for nodes 0..numNodes-1.
func NewBuilder(numNodes int32) *Builder {
	return &Builder{numNodes: numNodes}
}

// SetCoord records the coordinate of node n.
func (b *Builder) SetCoord(n int32, lat, lon float64) {
	if b.lat == nil {
		b.lat = make([]float64, b.numNodes)
		b.lon = make([]float64, b.numNodes)
	}
	b.lat[n] = lat
	b.lon[n] = lon
}

// AddLink adds a directed link with no road attributes.
func (b *Builder) AddLink(from, to int32, length float64, id int64) {
	b.links = append(b.links, LinkSpec{From: from, To: to, Length: length, ID: id})
}

// Add adds a directed link including its road attributes.
func (b *Builder) Add(spec LinkSpec) {
	b.attrs = true
	b.links = append(b.links, spec)
}

// Build sorts links by tail node and emits the CSR arrays. Links with equal
// (from, to) keep their insertion order.
func (b *Builder) Build() *Graph {
	n := b.numNodes
	for _, l := range b.links {
		if l.From < 0 || l.From >= n || l.To < 0 || l.To >= n {
			panic("graph: link endpoint out of range")
		}
	}

	links := make([]LinkSpec, len(b.links))
	copy(links, b.links)
	sort.SliceStable(links, func(i, j int) bool {
		if links[i].From != links[j].From {
			return links[i].From < links[j].From
		}
		return links[i].To < links[j].To
	})

	numLinks := int32(len(links))
	g := &Graph{
		NumNodes: n,
		NumLinks: numLinks,
		FirstOut: make([]int32, n+1),
		Head:     make([]int32, numLinks),
		Tail:     make([]int32, numLinks),
		Length:   make([]float64, numLinks),
		LinkID:   make([]int64, numLinks),
		NodeLat:  b.lat,
		NodeLon:  b.lon,
	}
	if b.attrs {
		g.Class = make([]osmparser.RoadClass, numLinks)
		g.MaxSpeed = make([]float32, numLinks)
		g.Lanes = make([]uint8, numLinks)
	}

	for i, l := range links {
		g.Head[i] = l.To
		g.Tail[i] = l.From
		g.Length[i] = l.Length
		g.LinkID[i] = l.ID
		if b.attrs {
			g.Class[i] = l.Class
			g.MaxSpeed[i] = l.MaxSpeed
			g.Lanes[i] = l.Lanes
		}
		g.FirstOut[l.From+1]++
	}
	for i := int32(1); i <= n; i++ {
		g.FirstOut[i] += g.FirstOut[i-1]
	}

	g.buildInIndex()
	return g
}

// buildInIndex derives FirstIn/InLink from Head. In-links of a node are kept
// in ascending link index.
func (g *Graph) buildInIndex() {
	n := g.NumNodes
	g.FirstIn = make([]int32, n+1)
	g.InLink = make([]int32, g.NumLinks)
	for _, v := range g.Head {
		g.FirstIn[v+1]++
	}
	for i := int32(1); i <= n; i++ {
		g.FirstIn[i] += g.FirstIn[i-1]
	}
	pos := make([]int32, n)
	copy(pos, g.FirstIn[:n])
	for e := int32(0); e < g.NumLinks; e++ {
		v := g.Head[e]
		g.InLink[pos[v]] = e
		pos[v]++
	}
}

// buildTails derives Tail from FirstOut.
func (g *Graph) buildTails() {
	g.Tail = make([]int32, g.NumLinks)
	for u := int32(0); u < g.NumNodes; u++ {
		for e := g.FirstOut[u]; e < g.FirstOut[u+1]; e++ {
			g.Tail[e] = u
		}
	}
}

// Build creates a Graph from parsed OSM links. Node indices are assigned in
// order of first appearance; LinkID is the OSM way id of each link.
func Build(result *osmparser.ParseResult) *Graph {
	edges := result.Edges
	if len(edges) == 0 {
		return NewBuilder(0).Build()
	}

	// Collect all unique node IDs and build a compact mapping.
	nodeSet := make(map[osm.NodeID]int32)
	var nodeIDs []osm.NodeID

	addNode := func(id osm.NodeID) int32 {
		if idx, ok := nodeSet[id]; ok {
			return idx
		}
		idx := int32(len(nodeIDs))
		nodeSet[id] = idx
		nodeIDs = append(nodeIDs, id)
		return idx
	}
	for i := range edges {
		addNode(edges[i].FromNodeID)
		addNode(edges[i].ToNodeID)
	}

	b := NewBuilder(int32(len(nodeIDs)))
	for _, e := range edges {
		b.Add(LinkSpec{
			From:     nodeSet[e.FromNodeID],
			To:       nodeSet[e.ToNodeID],
			Length:   e.Length,
			ID:       int64(e.WayID),
			Class:    e.Class,
			MaxSpeed: e.MaxSpeed,
			Lanes:    e.Lanes,
		})
	}
	for idx, id := range nodeIDs {
		b.SetCoord(int32(idx), result.NodeLat[id], result.NodeLon[id])
	}

	return b.Build()
}
