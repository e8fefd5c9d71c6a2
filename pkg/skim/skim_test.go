package skim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"access_router/pkg/graph"
	"access_router/pkg/lcpt"
	"access_router/pkg/matrix"
)

const eps = 1e-9

// testNetwork is the four node diamond
//
//	0 --(10m, 1.0)--> 1 --(5m, 1.0)--> 2 --(1m, 0.1)--> 3
//	0 -------------(20m, 1.5)--------> 2
//
// with a "fast" profile ranking by the cost column and a "short" profile
// ranking by length. Both accumulate length as attribute "len".
func testNetwork(t *testing.T) (*graph.Graph, Profile, Profile) {
	t.Helper()
	b := graph.NewBuilder(4)
	b.AddLink(0, 1, 10, 1)
	b.AddLink(1, 2, 5, 2)
	b.AddLink(0, 2, 20, 3)
	b.AddLink(2, 3, 1, 4)
	g := b.Build()

	costByID := map[int64]float64{1: 1, 2: 1, 3: 1.5, 4: 0.1}
	cost := make([]float64, g.NumLinks)
	for l, id := range g.LinkID {
		cost[l] = costByID[id]
	}
	tt := func(link int32, _ float64, _ lcpt.Traveler, _ lcpt.Vehicle) float64 { return 60 * cost[link] }
	length := NamedAttribute{Name: "len", Func: func(link int32, _, _ float64) float64 { return g.Length[link] }}

	fast := Profile{
		Name:       "fast",
		TravelTime: tt,
		Disutility: func(link int32, _ float64, _ lcpt.Traveler, _ lcpt.Vehicle) float64 { return cost[link] },
		Attributes: []NamedAttribute{length},
	}
	short := Profile{
		Name:       "short",
		TravelTime: tt,
		Disutility: func(link int32, _ float64, _ lcpt.Traveler, _ lcpt.Vehicle) float64 { return g.Length[link] },
		Attributes: []NamedAttribute{length},
	}
	return g, fast, short
}

func testZones() (origins, destinations []Zone) {
	origins = []Zone{
		{ID: "A", Node: 0},
		{ID: "B", Node: 0},
		{ID: "C", Node: -1},
		{ID: "D", Node: 1},
	}
	destinations = []Zone{
		{ID: "X", Node: 2, Weight: 2},
		{ID: "Y", Node: 3, Weight: 3},
		{ID: "Z", Node: 0, Weight: 1},
		{ID: "W", Node: -1, Weight: 5},
	}
	return origins, destinations
}

func get(t *testing.T, m *matrix.Numeric[float64], o, d string) float64 {
	t.Helper()
	v, err := m.GetByID(o, d)
	require.NoError(t, err)
	return v
}

func TestSkimMatrices(t *testing.T) {
	g, fast, short := testNetwork(t)
	origins, dests := testZones()

	s, err := New(Config{
		Graph:           g,
		Origins:         origins,
		Destinations:    dests,
		Profiles:        []Profile{short, fast},
		Threads:         2,
		DepartureTime:   28800,
		DetourThreshold: 1.3,
	})
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 1}, s.OriginNodes(), "A and B share node 0")

	out, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Results, 2)
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, 2, out.Stats.Origins)

	sh, fa := out.Results[0], out.Results[1]
	assert.Equal(t, "short", sh.Profile)

	// fast: direct link to 2 wins.
	assert.InDelta(t, 1.5, get(t, fa.Cost, "A", "X"), eps)
	assert.InDelta(t, 1.6, get(t, fa.Cost, "B", "Y"), eps)
	assert.InDelta(t, 96, get(t, fa.Time, "A", "Y"), eps)
	assert.InDelta(t, 21, get(t, fa.Distance, "A", "Y"), eps)
	assert.InDelta(t, 21, get(t, fa.Attributes[0], "A", "Y"), eps)
	assert.Equal(t, 0.0, get(t, fa.Cost, "A", "Z"))

	// short: via node 1.
	assert.InDelta(t, 16, get(t, sh.Cost, "A", "Y"), eps)
	assert.InDelta(t, 126, get(t, sh.Time, "A", "Y"), eps)
	assert.Equal(t, []string{"len"}, sh.AttrNames)

	// Unreached, unsnapped origin and unsnapped destination stay +Inf.
	assert.True(t, math.IsInf(get(t, fa.Cost, "D", "Z"), 1))
	for _, d := range []string{"X", "Y", "Z", "W"} {
		assert.True(t, math.IsInf(get(t, fa.Cost, "C", d), 1))
	}
	assert.True(t, math.IsInf(get(t, sh.Distance, "A", "W"), 1))

	// Detours: fast distance over short distance.
	assert.InDelta(t, 20.0/15.0, out.MaxDetour, eps)
	require.Len(t, out.Outliers, 4)
	d := out.Outliers["B->X"]
	assert.InDelta(t, 20.0/15.0, d.Ratio, eps)
	assert.Equal(t, [2]float64{15, 20}, d.Distance)
	assert.Contains(t, out.Outliers, "A->Y")
	assert.NotContains(t, out.Outliers, "D->X")
}

func TestSkimSingleProfileHasNoDetours(t *testing.T) {
	g, fast, _ := testNetwork(t)
	origins, dests := testZones()
	s, err := New(Config{Graph: g, Origins: origins, Destinations: dests, Profiles: []Profile{fast}, Threads: 1})
	require.NoError(t, err)

	out, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, math.IsInf(out.MaxDetour, -1))
	assert.Empty(t, out.Outliers)
}

func TestSkimWithCutoffKeepsTentativeValues(t *testing.T) {
	g, fast, _ := testNetwork(t)
	origins, dests := testZones()
	s, err := New(Config{
		Graph: g, Origins: origins, Destinations: dests,
		Profiles: []Profile{fast},
		Stop:     lcpt.DistanceCutoff{Max: 12},
		Threads:  1,
	})
	require.NoError(t, err)

	out, err := s.Run(context.Background())
	require.NoError(t, err)
	r := out.Results[0]
	assert.InDelta(t, 1.5, get(t, r.Cost, "A", "X"), eps, "node 2 discovered before the stop")
	assert.True(t, math.IsInf(get(t, r.Cost, "A", "Y"), 1))
}

func TestSkimConfigErrors(t *testing.T) {
	g, fast, _ := testNetwork(t)
	origins, dests := testZones()

	_, err := New(Config{Graph: g, Origins: origins, Destinations: dests})
	assert.True(t, errors.Is(err, ErrNoProfiles))

	dup := append([]Zone{}, origins...)
	dup = append(dup, Zone{ID: "A", Node: 2})
	_, err = New(Config{Graph: g, Origins: dup, Destinations: dests, Profiles: []Profile{fast}})
	assert.True(t, errors.Is(err, matrix.ErrDuplicateID))

	_, err = New(Config{Graph: g, Origins: []Zone{{ID: "far", Node: 9}}, Destinations: dests, Profiles: []Profile{fast}})
	assert.Error(t, err)

	s, err := New(Config{Graph: g, Origins: origins, Destinations: dests, Profiles: []Profile{fast}})
	require.NoError(t, err)
	_, err = s.Run(context.Background())
	assert.Error(t, err, "zero threads")
}

func TestSkimThreadCountDoesNotChangeResults(t *testing.T) {
	r := rand.New(rand.NewPCG(21, 12))
	const n = 120
	b := graph.NewBuilder(n)
	for i := 0; i < n; i++ {
		b.AddLink(int32(i), int32((i+1)%n), 5+r.Float64()*50, int64(i))
		b.AddLink(int32(r.IntN(n)), int32(r.IntN(n)), 5+r.Float64()*50, int64(n+i))
	}
	g := b.Build()
	du := func(link int32, _ float64, _ lcpt.Traveler, _ lcpt.Vehicle) float64 {
		return g.Length[link] * (1 + float64(link%3))
	}
	tt := func(link int32, _ float64, _ lcpt.Traveler, _ lcpt.Vehicle) float64 { return g.Length[link] / 4 }
	p := Profile{Name: "p", TravelTime: tt, Disutility: du}

	var zones []Zone
	for i := 0; i < 40; i++ {
		zones = append(zones, Zone{ID: fmt.Sprintf("z%d", i), Node: int32(r.IntN(n)), Weight: 1})
	}

	run := func(threads int) *Result {
		s, err := New(Config{Graph: g, Origins: zones, Destinations: zones, Profiles: []Profile{p}, Threads: threads})
		require.NoError(t, err)
		out, err := s.Run(context.Background())
		require.NoError(t, err)
		return out.Results[0]
	}
	one, many := run(1), run(6)
	for i := range zones {
		assert.Equal(t, one.Cost.Row(i), many.Cost.Row(i))
		assert.Equal(t, one.Time.Row(i), many.Time.Row(i))
		assert.Equal(t, one.Distance.Row(i), many.Distance.Row(i))
	}
}

func TestAccessibility(t *testing.T) {
	g, fast, _ := testNetwork(t)
	origins, dests := testZones()
	s, err := New(Config{Graph: g, Origins: origins, Destinations: dests, Profiles: []Profile{fast}, Threads: 3})
	require.NoError(t, err)

	acc, err := s.Accessibility(context.Background(), Cumulative(1.55))
	require.NoError(t, err)

	score := func(id string) float64 {
		v, ok := acc.Score("fast", id)
		require.True(t, ok)
		return v
	}
	assert.Equal(t, 3.0, score("A"), "Z (1) and X (2) within the cutoff")
	assert.Equal(t, 3.0, score("B"))
	assert.Equal(t, 0.0, score("C"))
	assert.Equal(t, 5.0, score("D"), "X (2) and Y (3)")

	_, ok := acc.Score("slow", "A")
	assert.False(t, ok)

	exp, err := s.Accessibility(context.Background(), NegativeExponential(1))
	require.NoError(t, err)
	v, _ := exp.Score("fast", "D")
	assert.InDelta(t, 2*math.Exp(-1)+3*math.Exp(-1.1), v, eps)
}

func TestDecay(t *testing.T) {
	c := Cumulative(10)
	assert.Equal(t, 1.0, c(10))
	assert.Equal(t, 0.0, c(10.001))
	assert.InDelta(t, math.Exp(-0.5), NegativeExponential(0.05)(10), eps)
}

func TestPath(t *testing.T) {
	g, fast, _ := testNetwork(t)
	tree := fast.NewTree(g)

	res, err := Path(tree, fast, 0, 3, 100, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.6, res.Cost, eps)
	assert.InDelta(t, 96, res.Time, eps)
	assert.InDelta(t, 21, res.Distance, eps)
	assert.InDelta(t, 21, res.Attributes["len"], eps)
	assert.Equal(t, []int64{3, 4}, res.LinkIDs)
	require.Len(t, res.Links, 2)
	assert.Equal(t, int32(0), g.Tail[res.Links[0]])

	_, err = Path(tree, fast, 3, 0, 0, nil)
	assert.True(t, errors.Is(err, ErrNoRoute))

	bare := lcpt.New(g, fast.TravelTime, fast.Disutility)
	_, err = Path(bare, fast, 0, 3, 0, nil)
	assert.Error(t, err)
}

func TestWriteOutput(t *testing.T) {
	g, fast, short := testNetwork(t)
	origins, dests := testZones()
	s, err := New(Config{
		Graph: g, Origins: origins, Destinations: dests,
		Profiles: []Profile{short, fast}, Threads: 2, DetourThreshold: 1.3,
	})
	require.NoError(t, err)
	out, err := s.Run(context.Background())
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "out")
	files, err := WriteOutput(dir, out)
	require.NoError(t, err)
	assert.Len(t, files, 2*4+1)

	data, err := os.ReadFile(filepath.Join(dir, "fast_cost.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "origin,destination,value", lines[0])
	assert.Contains(t, lines, "A,X,1.500")
	assert.NotContains(t, string(data), "C,")

	data, err = os.ReadFile(filepath.Join(dir, "outliers.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "A,X,1.3333,15.0,20.0")

	acc, err := s.Accessibility(context.Background(), Cumulative(100))
	require.NoError(t, err)
	accPath := filepath.Join(dir, "access.csv")
	require.NoError(t, WriteAccessibility(accPath, acc))
	data, err = os.ReadFile(accPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "zone,fast,short\n"))
}
