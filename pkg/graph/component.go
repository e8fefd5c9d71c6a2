package graph

// UnionFind is a disjoint-set forest over node indices in a single slice:
// a negative entry marks a root and holds minus the set size, any other
// entry is the parent.
type UnionFind struct {
	up []int32
}

// NewUnionFind creates n singleton sets.
func NewUnionFind(n int32) *UnionFind {
	up := make([]int32, n)
	for i := range up {
		up[i] = -1
	}
	return &UnionFind{up: up}
}

// Find returns the root of x's set, halving the path on the way up.
func (uf *UnionFind) Find(x int32) int32 {
	for uf.up[x] >= 0 {
		if p := uf.up[x]; uf.up[p] >= 0 {
			uf.up[x] = uf.up[p]
		}
		x = uf.up[x]
	}
	return x
}

// Size returns the number of elements in x's set.
func (uf *UnionFind) Size(x int32) int32 { return -uf.up[uf.Find(x)] }

// Union merges the sets of x and y, attaching the smaller under the larger.
// It reports whether two distinct sets were merged.
func (uf *UnionFind) Union(x, y int32) bool {
	rx, ry := uf.Find(x), uf.Find(y)
	if rx == ry {
		return false
	}
	if uf.up[rx] > uf.up[ry] {
		rx, ry = ry, rx
	}
	uf.up[rx] += uf.up[ry]
	uf.up[ry] = rx
	return true
}

// LargestComponent returns the node indices belonging to the largest
// weakly connected component (treating the directed graph as undirected).
func LargestComponent(g *Graph) []int32 {
	if g.NumNodes == 0 {
		return nil
	}

	uf := NewUnionFind(g.NumNodes)
	for e := int32(0); e < g.NumLinks; e++ {
		uf.Union(g.Tail[e], g.Head[e])
	}

	// Ties go to the component holding the lowest node index.
	var bestRoot, bestSize int32
	for i := int32(0); i < g.NumNodes; i++ {
		if size := uf.Size(i); size > bestSize {
			bestRoot, bestSize = uf.Find(i), size
		}
	}

	nodes := make([]int32, 0, bestSize)
	for i := int32(0); i < g.NumNodes; i++ {
		if uf.Find(i) == bestRoot {
			nodes = append(nodes, i)
		}
	}
	return nodes
}

// FilterToComponent creates a new graph containing only the specified nodes
// and the links with both endpoints among them. Link attributes and ids are
// carried over.
func FilterToComponent(g *Graph, nodes []int32) *Graph {
	if len(nodes) == 0 {
		return NewBuilder(0).Build()
	}

	oldToNew := make(map[int32]int32, len(nodes))
	for newIdx, oldIdx := range nodes {
		oldToNew[oldIdx] = int32(newIdx)
	}

	b := NewBuilder(int32(len(nodes)))
	for _, oldU := range nodes {
		start, end := g.EdgesFrom(oldU)
		for e := start; e < end; e++ {
			newV, ok := oldToNew[g.Head[e]]
			if !ok {
				continue
			}
			newU := oldToNew[oldU]
			if g.Class == nil {
				b.AddLink(newU, newV, g.Length[e], g.LinkID[e])
				continue
			}
			b.Add(LinkSpec{
				From:     newU,
				To:       newV,
				Length:   g.Length[e],
				ID:       g.LinkID[e],
				Class:    g.Class[e],
				MaxSpeed: g.MaxSpeed[e],
				Lanes:    g.Lanes[e],
			})
		}
	}

	if g.HasCoords() {
		for newIdx, oldIdx := range nodes {
			b.SetCoord(int32(newIdx), g.NodeLat[oldIdx], g.NodeLon[oldIdx])
		}
	}
	return b.Build()
}
