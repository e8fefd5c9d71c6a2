// Package cost derives travel time, disutility and attribute functions for a
// travel mode from the road attributes stored on graph links.
package cost

import (
	"fmt"
	"sort"

	"access_router/pkg/graph"
	"access_router/pkg/lcpt"
	osmparser "access_router/pkg/osm"
)

// Disutility names.
const (
	Fastest     = "fastest"
	Shortest    = "shortest"
	Generalized = "generalized"
)

// Attribute names.
const (
	Stress = "stress"
	Lanes  = "lanes"
)

// Vehicle may be passed as the vehicle argument of a calculation to cap the
// speed of every link.
type Vehicle struct {
	MaxSpeedKmh float64
}

// Default speeds in km/h per road class.
var (
	carSpeeds = map[osmparser.RoadClass]float64{
		osmparser.ClassMotorway:     110,
		osmparser.ClassTrunk:        90,
		osmparser.ClassPrimary:      70,
		osmparser.ClassSecondary:    60,
		osmparser.ClassTertiary:     50,
		osmparser.ClassUnclassified: 40,
		osmparser.ClassResidential:  30,
		osmparser.ClassLivingStreet: 10,
		osmparser.ClassService:      20,
		osmparser.ClassTrack:        15,
	}
	bikeSpeeds = map[osmparser.RoadClass]float64{
		osmparser.ClassPedestrian: 8,
		osmparser.ClassFootway:    8,
		osmparser.ClassTrack:      12,
		osmparser.ClassSteps:      2,
	}
	walkSpeeds = map[osmparser.RoadClass]float64{
		osmparser.ClassSteps: 3,
	}
	defaultSpeed = map[osmparser.Mode]float64{
		osmparser.ModeCar:  30,
		osmparser.ModeBike: 16,
		osmparser.ModeWalk: 5,
	}
)

// stressWeight scales how much one stress level above 1 adds to the
// generalized cost of cycling.
const stressWeight = 0.5

// Model holds per-link speed and stress for one mode.
type Model struct {
	g      *graph.Graph
	mode   osmparser.Mode
	speed  []float64 // m/s
	stress []float64 // level of traffic stress, 1 (calm) to 4
}

// New computes link speeds and stress levels for mode.
func New(g *graph.Graph, mode osmparser.Mode) (*Model, error) {
	def, ok := defaultSpeed[mode]
	if !ok {
		return nil, fmt.Errorf("cost: unknown mode %q", mode)
	}
	m := &Model{
		g:      g,
		mode:   mode,
		speed:  make([]float64, g.NumLinks),
		stress: make([]float64, g.NumLinks),
	}
	for l := int32(0); l < g.NumLinks; l++ {
		class := osmparser.ClassUnknown
		var maxSpeed float64
		var lanes uint8
		if g.Class != nil {
			class, maxSpeed, lanes = g.Class[l], float64(g.MaxSpeed[l]), g.Lanes[l]
		}

		kmh := def
		switch mode {
		case osmparser.ModeCar:
			if v, ok := carSpeeds[class]; ok {
				kmh = v
			}
			if maxSpeed > 0 {
				kmh = min(kmh, maxSpeed)
			}
		case osmparser.ModeBike:
			if v, ok := bikeSpeeds[class]; ok {
				kmh = v
			}
		case osmparser.ModeWalk:
			if v, ok := walkSpeeds[class]; ok {
				kmh = v
			}
		}
		m.speed[l] = kmh / 3.6
		m.stress[l] = stressLevel(class, maxSpeed, lanes)
	}
	return m, nil
}

// stressLevel classifies a link into four levels of traffic stress.
func stressLevel(class osmparser.RoadClass, maxSpeed float64, lanes uint8) float64 {
	if lanes >= 4 {
		return 4
	}
	switch class {
	case osmparser.ClassMotorway, osmparser.ClassTrunk, osmparser.ClassPrimary:
		return 4
	case osmparser.ClassSecondary, osmparser.ClassTertiary:
		if maxSpeed > 0 && maxSpeed <= 30 {
			return 2
		}
		return 3
	case osmparser.ClassUnclassified, osmparser.ClassService, osmparser.ClassSteps:
		return 2
	case osmparser.ClassResidential:
		if maxSpeed > 30 {
			return 2
		}
		return 1
	case osmparser.ClassUnknown:
		return 2
	default:
		return 1
	}
}

// Mode returns the travel mode of the model.
func (m *Model) Mode() osmparser.Mode { return m.mode }

// Speed returns the free speed of link in m/s.
func (m *Model) Speed(link int32) float64 { return m.speed[link] }

// StressLevel returns the level of traffic stress of link.
func (m *Model) StressLevel(link int32) float64 { return m.stress[link] }

// TravelTime returns seconds to traverse link. It is an lcpt.LinkFunc.
func (m *Model) TravelTime(link int32, _ float64, _ lcpt.Traveler, vehicle lcpt.Vehicle) float64 {
	v := m.speed[link]
	if veh, ok := vehicle.(Vehicle); ok && veh.MaxSpeedKmh > 0 {
		v = min(v, veh.MaxSpeedKmh/3.6)
	}
	return m.g.Length[link] / v
}

// Disutility returns the named disutility function.
func (m *Model) Disutility(name string) (lcpt.LinkFunc, error) {
	switch name {
	case Fastest:
		return m.TravelTime, nil
	case Shortest:
		return func(link int32, _ float64, _ lcpt.Traveler, _ lcpt.Vehicle) float64 {
			return m.g.Length[link]
		}, nil
	case Generalized:
		if m.mode != osmparser.ModeBike {
			return m.TravelTime, nil
		}
		return func(link int32, now float64, traveler lcpt.Traveler, vehicle lcpt.Vehicle) float64 {
			return m.TravelTime(link, now, traveler, vehicle) * (1 + stressWeight*(m.stress[link]-1))
		}, nil
	}
	return nil, fmt.Errorf("cost: unknown disutility %q (have %v)", name, DisutilityNames())
}

// Attribute returns the named attribute accumulator.
func (m *Model) Attribute(name string) (lcpt.AttributeFunc, error) {
	switch name {
	case Stress:
		// Stress-weighted meters.
		return func(link int32, _, _ float64) float64 {
			return m.stress[link] * m.g.Length[link]
		}, nil
	case Lanes:
		// Lane-meters; untagged links count as one lane.
		return func(link int32, _, _ float64) float64 {
			lanes := 1.0
			if m.g.Lanes != nil && m.g.Lanes[link] > 0 {
				lanes = float64(m.g.Lanes[link])
			}
			return lanes * m.g.Length[link]
		}, nil
	}
	return nil, fmt.Errorf("cost: unknown attribute %q (have %v)", name, AttributeNames())
}

func DisutilityNames() []string { return sortedNames(Fastest, Shortest, Generalized) }
func AttributeNames() []string  { return sortedNames(Stress, Lanes) }

func sortedNames(names ...string) []string {
	sort.Strings(names)
	return names
}
