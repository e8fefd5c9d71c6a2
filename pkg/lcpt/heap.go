package lcpt

import "fmt"

// NodeHeap is a binary min-heap of node indices. The key of a node is read
// live from the owning tree's record array at data[node*stride], so there is
// no separate priority storage and no interface boxing as with container/heap.
//
// A NodeHeap belongs to exactly one Tree and is never shared.
type NodeHeap struct {
	nodes  []int32
	size   int
	data   []float64
	stride int
}

// NewNodeHeap creates a heap able to hold every node of a record array with
// the given stride.
func NewNodeHeap(data []float64, stride int) *NodeHeap {
	return &NodeHeap{
		nodes:  make([]int32, len(data)/stride),
		data:   data,
		stride: stride,
	}
}

func (h *NodeHeap) key(i int) float64 { return h.data[int(h.nodes[i])*h.stride] }

// Insert adds a node whose cost has already been written.
func (h *NodeHeap) Insert(node int32) {
	h.nodes[h.size] = node
	h.size++
	h.siftUp(h.size - 1)
}

// DecreaseKey writes newCost for node and restores the heap order. The node
// slot is found by a linear scan. Panics if newCost is not strictly smaller
// than the current cost or the node is not in the heap.
func (h *NodeHeap) DecreaseKey(node int32, newCost float64) {
	off := int(node) * h.stride
	if !(newCost < h.data[off]) {
		panic(fmt.Sprintf("lcpt: decreaseKey(%d): new cost %g not below %g", node, newCost, h.data[off]))
	}
	h.data[off] = newCost
	for i := 0; i < h.size; i++ {
		if h.nodes[i] == node {
			h.siftUp(i)
			return
		}
	}
	panic(fmt.Sprintf("lcpt: decreaseKey(%d): node not in heap", node))
}

// Poll removes and returns the node with the least cost. Panics when empty.
func (h *NodeHeap) Poll() int32 {
	if h.size == 0 {
		panic("lcpt: poll on empty heap")
	}
	top := h.nodes[0]
	h.size--
	h.nodes[0] = h.nodes[h.size]
	if h.size > 0 {
		h.siftDown(0)
	}
	return top
}

// Peek returns the node with the least cost without removing it, or -1.
func (h *NodeHeap) Peek() int32 {
	if h.size == 0 {
		return -1
	}
	return h.nodes[0]
}

func (h *NodeHeap) Size() int     { return h.size }
func (h *NodeHeap) IsEmpty() bool { return h.size == 0 }
func (h *NodeHeap) Clear()        { h.size = 0 }

func (h *NodeHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.key(i) >= h.key(parent) {
			break
		}
		h.nodes[i], h.nodes[parent] = h.nodes[parent], h.nodes[i]
		i = parent
	}
}

func (h *NodeHeap) siftDown(i int) {
	n := h.size
	for {
		smallest := i
		left := 2*i + 1
		right := 2*i + 2
		if left < n && h.key(left) < h.key(smallest) {
			smallest = left
		}
		if right < n && h.key(right) < h.key(smallest) {
			smallest = right
		}
		if smallest == i {
			break
		}
		h.nodes[i], h.nodes[smallest] = h.nodes[smallest], h.nodes[i]
		i = smallest
	}
}
