package graph

import (
	"fmt"

	osmparser "access_router/pkg/osm"
)

// Graph is an immutable directed network in CSR (Compressed Sparse Row) form.
//
// Links are stored sorted by tail node, so a link index is also its CSR slot:
// FirstOut[n]..FirstOut[n+1] are the out-links of node n. In-links are kept as
// a second CSR over link indices: InLink[FirstIn[n]..FirstIn[n+1]].
//
// A Graph is never mutated after Build/Builder.Build returns and may be read
// from any number of goroutines.
type Graph struct {
	NumNodes int32
	NumLinks int32

	FirstOut []int32 // len: NumNodes + 1
	Head     []int32 // len: NumLinks; to-node of each link
	Tail     []int32 // len: NumLinks; from-node of each link

	FirstIn []int32 // len: NumNodes + 1
	InLink  []int32 // len: NumLinks; link indices grouped by head node

	Length []float64 // len: NumLinks; meters
	LinkID []int64   // len: NumLinks; opaque identifier reported in paths

	// Optional per-link columns read by cost models. Nil when unknown.
	Class    []osmparser.RoadClass
	MaxSpeed []float32 // km/h, 0 if untagged
	Lanes    []uint8

	NodeLat []float64 // len: NumNodes (optional)
	NodeLon []float64 // len: NumNodes (optional)
}

// EdgesFrom returns the range of link indices for links originating from node u.
func (g *Graph) EdgesFrom(u int32) (start, end int32) {
	g.checkNode(u)
	return g.FirstOut[u], g.FirstOut[u+1]
}

// HasCoords reports whether node coordinates are available.
func (g *Graph) HasCoords() bool {
	return len(g.NodeLat) == int(g.NumNodes) && g.NumNodes > 0
}

// OutLinks returns a reusable iterator over out-links. Call Reset(node)
// before each traversal.
func (g *Graph) OutLinks() *LinkIterator {
	return &LinkIterator{g: g}
}

// InLinks returns a reusable iterator over in-links. ToNode() yields the
// link's tail, i.e. the node reached when walking the link backwards.
func (g *Graph) InLinks() *LinkIterator {
	return &LinkIterator{g: g, backward: true}
}

func (g *Graph) checkNode(n int32) {
	if n < 0 || n >= g.NumNodes {
		panic(fmt.Sprintf("graph: node %d out of range [0, %d)", n, g.NumNodes))
	}
}

// LinkIterator walks the out- or in-links of one node at a time. It holds no
// allocation beyond itself, so one iterator per tree is reused for every
// expanded node.
type LinkIterator struct {
	g        *Graph
	backward bool
	pos, end int32
	link     int32
}

// Reset positions the iterator before the first link of node n.
func (it *LinkIterator) Reset(n int32) {
	it.g.checkNode(n)
	if it.backward {
		it.pos, it.end = it.g.FirstIn[n]-1, it.g.FirstIn[n+1]
	} else {
		it.pos, it.end = it.g.FirstOut[n]-1, it.g.FirstOut[n+1]
	}
	it.link = -1
}

// Next advances to the next link. Returns false when exhausted.
func (it *LinkIterator) Next() bool {
	it.pos++
	if it.pos >= it.end {
		it.link = -1
		return false
	}
	if it.backward {
		it.link = it.g.InLink[it.pos]
	} else {
		it.link = it.pos
	}
	return true
}

// Link returns the current link index.
func (it *LinkIterator) Link() int32 { return it.link }

// ToNode returns the node at the far end of the current link in the
// iteration direction.
func (it *LinkIterator) ToNode() int32 {
	if it.backward {
		return it.g.Tail[it.link]
	}
	return it.g.Head[it.link]
}
