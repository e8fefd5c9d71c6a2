package cost

import (
	"access_router/pkg/skim"
)

// Profile assembles a skim profile named name from a disutility and a list
// of attribute names. The vehicle is passed to every link function.
func (m *Model) Profile(name, disutility string, vehicle Vehicle, attributes ...string) (skim.Profile, error) {
	du, err := m.Disutility(disutility)
	if err != nil {
		return skim.Profile{}, err
	}
	p := skim.Profile{
		Name:       name,
		TravelTime: m.TravelTime,
		Disutility: du,
		Vehicle:    vehicle,
	}
	for _, a := range attributes {
		f, err := m.Attribute(a)
		if err != nil {
			return skim.Profile{}, err
		}
		p.Attributes = append(p.Attributes, skim.NamedAttribute{Name: a, Func: f})
	}
	return p, nil
}
