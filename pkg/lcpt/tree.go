// Package lcpt computes least-cost path trees over a graph.Graph with
// pluggable travel time, disutility and attribute functions.
package lcpt

import (
	"fmt"
	"math"

	"access_router/pkg/graph"
)

// Traveler and Vehicle are passed through to link functions untouched.
type (
	Traveler any
	Vehicle  any
)

// LinkFunc returns the travel time or disutility of traversing link when
// entering it at currentTime. Returning +Inf makes the link impassable.
type LinkFunc func(link int32, currentTime float64, traveler Traveler, vehicle Vehicle) float64

// AttributeFunc returns the contribution of link to an attribute sum.
type AttributeFunc func(link int32, disutility, travelTime float64) float64

// Record layout per node.
const (
	offCost = iota
	offTime
	offDistance
	offAttrs
)

// Tree holds the scratch state of one least-cost path tree. All arrays are
// allocated once in New and reset at the start of every calculation.
//
// A Tree is not safe for concurrent use; give each goroutine its own.
type Tree struct {
	g          *graph.Graph
	travelTime LinkFunc
	disutility LinkFunc
	attrs      []AttributeFunc

	stride         int
	data           []float64
	comingFromNode []int32
	comingFromLink []int32
	settled        []bool
	numSettled     int

	heap    *NodeHeap
	out, in *graph.LinkIterator

	origin    int32
	startTime float64
	backward  bool
}

// New allocates a Tree sized to g.
func New(g *graph.Graph, travelTime, disutility LinkFunc, attrs ...AttributeFunc) *Tree {
	stride := offAttrs + len(attrs)
	n := int(g.NumNodes)
	data := make([]float64, n*stride)
	t := &Tree{
		g:              g,
		travelTime:     travelTime,
		disutility:     disutility,
		attrs:          attrs,
		stride:         stride,
		data:           data,
		comingFromNode: make([]int32, n),
		comingFromLink: make([]int32, n),
		settled:        make([]bool, n),
		heap:           NewNodeHeap(data, stride),
		out:            g.OutLinks(),
		in:             g.InLinks(),
		origin:         -1,
	}
	t.reset()
	return t
}

func (t *Tree) reset() {
	for i := range t.comingFromNode {
		t.data[i*t.stride+offCost] = math.Inf(1)
		t.comingFromNode[i] = -1
		t.comingFromLink[i] = -1
		t.settled[i] = false
	}
	t.numSettled = 0
	t.heap.Clear()
}

// Calculate builds the tree from start, departing at startTime, until the
// heap is exhausted or stop reports true for a polled node. A nil stop is
// the same as NoStop.
//
// A node polled when stop fires keeps its cost but is not expanded, so
// nodes up to one link past the cutoff may be reached without being
// settled. Use IsSettled for strict cutoff semantics.
func (t *Tree) Calculate(start int32, startTime float64, traveler Traveler, vehicle Vehicle, stop StopCriterion) {
	t.run(start, startTime, traveler, vehicle, stop, false)
}

// CalculateFull builds the complete tree from start.
func (t *Tree) CalculateFull(start int32, startTime float64, traveler Traveler, vehicle Vehicle) {
	t.run(start, startTime, traveler, vehicle, nil, false)
}

// CalculateBackward builds the tree of least-cost paths leading into target,
// arriving at arrivalTime. Link functions are evaluated at the time the
// traveler would leave the link, and Time(n) is the departure time at n.
func (t *Tree) CalculateBackward(target int32, arrivalTime float64, traveler Traveler, vehicle Vehicle, stop StopCriterion) {
	t.run(target, arrivalTime, traveler, vehicle, stop, true)
}

func (t *Tree) run(start int32, startTime float64, traveler Traveler, vehicle Vehicle, stop StopCriterion, backward bool) {
	if start < 0 || start >= t.g.NumNodes {
		panic(fmt.Sprintf("lcpt: start node %d out of range [0, %d)", start, t.g.NumNodes))
	}
	if stop == nil {
		stop = NoStop{}
	}
	t.reset()
	t.origin = start
	t.startTime = startTime
	t.backward = backward

	rec := t.data[int(start)*t.stride : int(start+1)*t.stride]
	rec[offCost] = 0
	rec[offTime] = startTime
	rec[offDistance] = 0
	for i := range t.attrs {
		rec[offAttrs+i] = 0
	}
	t.heap.Insert(start)

	it := t.out
	if backward {
		it = t.in
	}

	for !t.heap.IsEmpty() {
		u := t.heap.Poll()
		ub := int(u) * t.stride
		cost, now, dist := t.data[ub+offCost], t.data[ub+offTime], t.data[ub+offDistance]
		if stop.Stop(u, now, cost, dist, startTime) {
			return
		}
		t.settled[u] = true
		t.numSettled++

		it.Reset(u)
		for it.Next() {
			v := it.ToNode()
			if t.settled[v] {
				continue
			}
			link := it.Link()
			du := t.disutility(link, now, traveler, vehicle)
			newCost := cost + du
			if math.IsNaN(newCost) {
				panic(fmt.Sprintf("lcpt: disutility of link %d is NaN", link))
			}
			if math.IsInf(newCost, 1) {
				continue
			}

			vb := int(v) * t.stride
			switch old := t.data[vb+offCost]; {
			case math.IsInf(old, 1):
				t.data[vb+offCost] = newCost
				t.heap.Insert(v)
			case newCost < old:
				t.heap.DecreaseKey(v, newCost)
			default:
				continue
			}

			tt := t.travelTime(link, now, traveler, vehicle)
			if backward {
				t.data[vb+offTime] = now - tt
			} else {
				t.data[vb+offTime] = now + tt
			}
			t.data[vb+offDistance] = dist + t.g.Length[link]
			for i, attr := range t.attrs {
				t.data[vb+offAttrs+i] = t.data[ub+offAttrs+i] + attr(link, du, tt)
			}
			t.comingFromNode[v] = u
			t.comingFromLink[v] = link
		}
	}
}

// Origin returns the node the last calculation started from, or -1.
func (t *Tree) Origin() int32 { return t.origin }

// Backward reports whether the last calculation was a backward tree.
func (t *Tree) Backward() bool { return t.backward }

// StartTime returns the departure (or, backward, arrival) time of the last
// calculation.
func (t *Tree) StartTime() float64 { return t.startTime }

// NumAttributes returns the number of accumulated attributes.
func (t *Tree) NumAttributes() int { return len(t.attrs) }

// NumSettled returns how many nodes were expanded by the last calculation.
func (t *Tree) NumSettled() int { return t.numSettled }

// IsReached reports whether n holds a finite cost.
func (t *Tree) IsReached(n int32) bool {
	return !math.IsInf(t.data[int(n)*t.stride+offCost], 1)
}

// IsSettled reports whether n was polled and expanded before any stop.
func (t *Tree) IsSettled(n int32) bool { return t.settled[n] }

// Cost returns the least cost to n, or +Inf when unreached.
func (t *Tree) Cost(n int32) float64 { return t.data[int(n)*t.stride+offCost] }

// Time returns the arrival time at n, or +Inf when unreached.
func (t *Tree) Time(n int32) float64 { return t.field(n, offTime) }

// Distance returns the path length to n in meters, or +Inf when unreached.
func (t *Tree) Distance(n int32) float64 { return t.field(n, offDistance) }

// Attribute returns the i-th attribute sum along the path to n, or +Inf
// when unreached.
func (t *Tree) Attribute(n int32, i int) float64 {
	if i < 0 || i >= len(t.attrs) {
		panic(fmt.Sprintf("lcpt: attribute %d out of range [0, %d)", i, len(t.attrs)))
	}
	return t.field(n, offAttrs+i)
}

func (t *Tree) field(n int32, off int) float64 {
	if !t.IsReached(n) {
		return math.Inf(1)
	}
	return t.data[int(n)*t.stride+off]
}

// ComingFrom returns the predecessor node and link of n, both -1 for the
// origin and for unreached nodes. In a backward tree the predecessor is the
// next node toward the target.
func (t *Tree) ComingFrom(n int32) (node, link int32) {
	return t.comingFromNode[n], t.comingFromLink[n]
}

// LinkIndexPath returns the link indices of the path between the origin and
// n in travel order. Panics if n is unreached.
func (t *Tree) LinkIndexPath(n int32) []int32 {
	if !t.IsReached(n) {
		panic(fmt.Sprintf("lcpt: no path to unreached node %d", n))
	}
	var path []int32
	for cur := n; t.comingFromLink[cur] >= 0; cur = t.comingFromNode[cur] {
		path = append(path, t.comingFromLink[cur])
	}
	if !t.backward {
		for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
			path[i], path[j] = path[j], path[i]
		}
	}
	return path
}

// LinkPath returns the link identifiers of the path between the origin and
// n in travel order. Panics if n is unreached.
func (t *Tree) LinkPath(n int32) []int64 {
	idx := t.LinkIndexPath(n)
	ids := make([]int64, len(idx))
	for i, l := range idx {
		ids[i] = t.g.LinkID[l]
	}
	return ids
}
