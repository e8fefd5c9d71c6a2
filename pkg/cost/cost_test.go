package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"access_router/pkg/graph"
	osmparser "access_router/pkg/osm"
)

// testGraph has one link per road class of interest, each 360 m long.
//
//	link 0: primary, 2 lanes, maxspeed 50
//	link 1: residential, untagged
//	link 2: cycleway
//	link 3: steps
//	link 4: secondary, 4 lanes
func testGraph() *graph.Graph {
	b := graph.NewBuilder(6)
	specs := []graph.LinkSpec{
		{Class: osmparser.ClassPrimary, MaxSpeed: 50, Lanes: 2},
		{Class: osmparser.ClassResidential},
		{Class: osmparser.ClassCycleway},
		{Class: osmparser.ClassSteps},
		{Class: osmparser.ClassSecondary, Lanes: 4},
	}
	for i, s := range specs {
		s.From, s.To = int32(i), int32(i+1)
		s.Length = 360
		s.ID = int64(i)
		b.Add(s)
	}
	return b.Build()
}

func TestSpeedsPerMode(t *testing.T) {
	g := testGraph()
	tests := []struct {
		mode osmparser.Mode
		link int32
		kmh  float64
	}{
		{osmparser.ModeCar, 0, 50}, // capped by maxspeed
		{osmparser.ModeCar, 1, 30},
		{osmparser.ModeCar, 4, 60},
		{osmparser.ModeBike, 0, 16},
		{osmparser.ModeBike, 3, 2},
		{osmparser.ModeWalk, 2, 5},
		{osmparser.ModeWalk, 3, 3},
	}
	for _, tt := range tests {
		m, err := New(g, tt.mode)
		require.NoError(t, err)
		assert.InDelta(t, tt.kmh/3.6, m.Speed(tt.link), 1e-9, "%s link %d", tt.mode, tt.link)
		assert.InDelta(t, 360/(tt.kmh/3.6), m.TravelTime(tt.link, 0, nil, nil), 1e-9)
	}

	_, err := New(g, osmparser.Mode("boat"))
	assert.Error(t, err)
}

func TestVehicleCapsSpeed(t *testing.T) {
	m, err := New(testGraph(), osmparser.ModeCar)
	require.NoError(t, err)
	assert.InDelta(t, 360/(25/3.6), m.TravelTime(4, 0, nil, Vehicle{MaxSpeedKmh: 25}), 1e-9)
	// Unknown vehicle types are ignored.
	assert.InDelta(t, 360/(60/3.6), m.TravelTime(4, 0, nil, "truck"), 1e-9)
}

func TestStressLevels(t *testing.T) {
	m, err := New(testGraph(), osmparser.ModeBike)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 1, 1, 2, 4}, []float64{
		m.StressLevel(0), m.StressLevel(1), m.StressLevel(2), m.StressLevel(3), m.StressLevel(4),
	})
}

func TestDisutilities(t *testing.T) {
	g := testGraph()
	bike, err := New(g, osmparser.ModeBike)
	require.NoError(t, err)

	fastest, err := bike.Disutility(Fastest)
	require.NoError(t, err)
	shortest, err := bike.Disutility(Shortest)
	require.NoError(t, err)
	generalized, err := bike.Disutility(Generalized)
	require.NoError(t, err)

	base := fastest(0, 0, nil, nil)
	assert.InDelta(t, 81, base, 1e-9) // 360 m at 16 km/h
	assert.Equal(t, 360.0, shortest(0, 0, nil, nil))
	assert.InDelta(t, base*2.5, generalized(0, 0, nil, nil), 1e-9, "stress 4")
	assert.InDelta(t, fastest(2, 0, nil, nil), generalized(2, 0, nil, nil), 1e-9, "stress 1")

	car, err := New(g, osmparser.ModeCar)
	require.NoError(t, err)
	carGen, err := car.Disutility(Generalized)
	require.NoError(t, err)
	assert.Equal(t, car.TravelTime(0, 0, nil, nil), carGen(0, 0, nil, nil))

	_, err = bike.Disutility("scenic")
	assert.ErrorContains(t, err, "fastest")
}

func TestAttributes(t *testing.T) {
	m, err := New(testGraph(), osmparser.ModeBike)
	require.NoError(t, err)

	stress, err := m.Attribute(Stress)
	require.NoError(t, err)
	assert.Equal(t, 4*360.0, stress(0, 0, 0))

	lanes, err := m.Attribute(Lanes)
	require.NoError(t, err)
	assert.Equal(t, 2*360.0, lanes(0, 0, 0))
	assert.Equal(t, 360.0, lanes(1, 0, 0), "untagged counts as one lane")

	_, err = m.Attribute("noise")
	assert.Error(t, err)
}

func TestProfile(t *testing.T) {
	m, err := New(testGraph(), osmparser.ModeBike)
	require.NoError(t, err)

	p, err := m.Profile("bike_generalized", Generalized, Vehicle{MaxSpeedKmh: 12}, Stress, Lanes)
	require.NoError(t, err)
	assert.Equal(t, "bike_generalized", p.Name)
	require.Len(t, p.Attributes, 2)
	assert.Equal(t, Lanes, p.Attributes[1].Name)

	// The profile computes trees end to end.
	tree := p.NewTree(testGraph())
	tree.CalculateFull(0, 0, nil, p.Vehicle)
	assert.InDelta(t, 5*360.0, tree.Distance(5), 1e-9)
	assert.InDelta(t, 360/(12/3.6), tree.Time(1), 1e-9)

	_, err = m.Profile("x", Fastest, Vehicle{}, "noise")
	assert.Error(t, err)
}
