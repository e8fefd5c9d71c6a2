package skim

import (
	"errors"
	"fmt"

	"access_router/pkg/lcpt"
)

// ErrNoRoute is returned when the destination is not reachable.
var ErrNoRoute = errors.New("skim: no route found")

// PathResult summarises the least-cost path between two nodes.
type PathResult struct {
	Cost       float64
	Time       float64 // seconds
	Distance   float64 // meters
	Attributes map[string]float64
	LinkIDs    []int64
	Links      []int32
}

// Path computes the least-cost path from origin to destination with tree,
// which must have been created by p.NewTree.
func Path(tree *lcpt.Tree, p Profile, origin, destination int32, departure float64, stop lcpt.StopCriterion) (*PathResult, error) {
	if tree.NumAttributes() != len(p.Attributes) {
		return nil, fmt.Errorf("skim: tree has %d attributes, profile %s has %d", tree.NumAttributes(), p.Name, len(p.Attributes))
	}
	tree.Calculate(origin, departure, p.Traveler, p.Vehicle, stop)
	if !tree.IsReached(destination) {
		return nil, fmt.Errorf("%w: %d -> %d", ErrNoRoute, origin, destination)
	}

	res := &PathResult{
		Cost:       tree.Cost(destination),
		Time:       tree.Time(destination) - departure,
		Distance:   tree.Distance(destination),
		Attributes: make(map[string]float64, len(p.Attributes)),
		Links:      tree.LinkIndexPath(destination),
		LinkIDs:    tree.LinkPath(destination),
	}
	for i, a := range p.Attributes {
		res.Attributes[a.Name] = tree.Attribute(destination, i)
	}
	return res, nil
}
