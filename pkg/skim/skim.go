// Package skim runs batches of least-cost path trees and collects
// origin-destination indicator matrices, detour outliers and accessibility
// scores.
package skim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/google/uuid"

	"access_router/pkg/dispatch"
	"access_router/pkg/graph"
	"access_router/pkg/lcpt"
	"access_router/pkg/matrix"
	"access_router/pkg/metrics"
)

// ErrNoProfiles is returned when a job has nothing to compute.
var ErrNoProfiles = errors.New("skim: at least one profile required")

// NamedAttribute is an attribute accumulator with the name its matrix is
// reported under.
type NamedAttribute struct {
	Name string
	Func lcpt.AttributeFunc
}

// Profile bundles the link functions of one way of ranking paths.
type Profile struct {
	Name       string
	TravelTime lcpt.LinkFunc
	Disutility lcpt.LinkFunc
	Attributes []NamedAttribute
	Traveler   lcpt.Traveler
	Vehicle    lcpt.Vehicle
}

// NewTree allocates a tree computing p on g.
func (p Profile) NewTree(g *graph.Graph) *lcpt.Tree {
	attrs := make([]lcpt.AttributeFunc, len(p.Attributes))
	for i, a := range p.Attributes {
		attrs[i] = a.Func
	}
	return lcpt.New(g, p.TravelTime, p.Disutility, attrs...)
}

// Zone is an origin or destination location snapped to a graph node. Node
// is -1 when the zone could not be snapped.
type Zone struct {
	ID     string
	Node   int32
	Weight float64
}

// Config describes one skim job.
type Config struct {
	Graph         *graph.Graph
	Origins       []Zone
	Destinations  []Zone
	Profiles      []Profile
	Stop          lcpt.StopCriterion // nil means no cutoff
	Threads       int
	DepartureTime float64 // seconds

	// DetourThreshold records origin-destination pairs whose second profile
	// distance exceeds the first profile distance by this ratio. Zero
	// disables outlier collection.
	DetourThreshold float64

	Metrics *metrics.Dispatch
	Logger  *slog.Logger
}

// Result holds the matrices of one profile. Cells of unreached pairs hold
// +Inf. Time is the travel duration in seconds.
type Result struct {
	Profile    string
	Cost       *matrix.Numeric[float64]
	Time       *matrix.Numeric[float64]
	Distance   *matrix.Numeric[float64]
	Attributes []*matrix.Numeric[float64] // in Profile.Attributes order
	AttrNames  []string
}

// Detour is a pair whose second profile path is unusually long.
type Detour struct {
	Origin      string
	Destination string
	Ratio       float64
	Distance    [2]float64 // per profile
}

// Output is everything a skim run produces.
type Output struct {
	RunID     string
	Results   []*Result
	MaxDetour float64 // -Inf without two profiles
	Outliers  map[string]Detour
	Stats     dispatch.Stats
}

// Skimmer runs Config jobs.
type Skimmer struct {
	cfg    Config
	rows   *matrix.Index[string]
	cols   *matrix.Index[string]
	byNode map[int32][]int // origin node -> origin rows
	nodes  []int32         // unique snapped origin nodes, ascending
	dests  []destination
	logger *slog.Logger
}

type destination struct {
	col  int
	node int32
}

// New validates cfg and indexes its zones.
func New(cfg Config) (*Skimmer, error) {
	if cfg.Graph == nil {
		return nil, errors.New("skim: graph required")
	}
	if len(cfg.Profiles) == 0 {
		return nil, ErrNoProfiles
	}
	if cfg.Stop == nil {
		cfg.Stop = lcpt.NoStop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Skimmer{cfg: cfg, byNode: make(map[int32][]int), logger: cfg.Logger}
	var err error
	if s.rows, err = zoneIndex(cfg.Origins, cfg.Graph); err != nil {
		return nil, fmt.Errorf("skim: origins: %w", err)
	}
	if s.cols, err = zoneIndex(cfg.Destinations, cfg.Graph); err != nil {
		return nil, fmt.Errorf("skim: destinations: %w", err)
	}

	for row, z := range cfg.Origins {
		if z.Node < 0 {
			continue
		}
		if _, seen := s.byNode[z.Node]; !seen {
			s.nodes = append(s.nodes, z.Node)
		}
		s.byNode[z.Node] = append(s.byNode[z.Node], row)
	}
	sort.Slice(s.nodes, func(i, j int) bool { return s.nodes[i] < s.nodes[j] })

	for col, z := range cfg.Destinations {
		if z.Node >= 0 {
			s.dests = append(s.dests, destination{col: col, node: z.Node})
		}
	}
	return s, nil
}

func zoneIndex(zones []Zone, g *graph.Graph) (*matrix.Index[string], error) {
	ids := make([]string, len(zones))
	for i, z := range zones {
		if z.Node >= g.NumNodes {
			return nil, fmt.Errorf("zone %s: node %d out of range [0, %d)", z.ID, z.Node, g.NumNodes)
		}
		ids[i] = z.ID
	}
	return matrix.NewIndex(ids)
}

// OriginNodes returns the unique snapped origin nodes that will be
// dispatched.
func (s *Skimmer) OriginNodes() []int32 { return s.nodes }

func (s *Skimmer) newResult(p Profile) *Result {
	r := &Result{
		Profile:  p.Name,
		Cost:     matrix.NewFloat(s.rows, s.cols),
		Time:     matrix.NewFloat(s.rows, s.cols),
		Distance: matrix.NewFloat(s.rows, s.cols),
	}
	unreached := []*matrix.Numeric[float64]{r.Cost, r.Time, r.Distance}
	for _, a := range p.Attributes {
		m := matrix.NewFloat(s.rows, s.cols)
		r.Attributes = append(r.Attributes, m)
		r.AttrNames = append(r.AttrNames, a.Name)
		unreached = append(unreached, m)
	}
	for _, m := range unreached {
		m.Fill(math.Inf(1))
	}
	return r
}

// Run computes every profile from every snapped origin. Matrices are only
// returned once all workers have joined without error.
func (s *Skimmer) Run(ctx context.Context) (*Output, error) {
	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID)
	cfg := s.cfg

	results := make([]*Result, len(cfg.Profiles))
	for i, p := range cfg.Profiles {
		results[i] = s.newResult(p)
	}

	detours := len(cfg.Profiles) >= 2
	maxDetour := dispatch.NewMaxTracker()
	var outliers dispatch.OutlierSet[string, Detour]

	logger.Info("skim started",
		"origins", len(cfg.Origins), "origin_nodes", len(s.nodes),
		"destinations", len(cfg.Destinations), "profiles", len(cfg.Profiles), "threads", cfg.Threads)

	newWorker := func(int) (dispatch.Worker, error) {
		trees := make([]*lcpt.Tree, len(cfg.Profiles))
		for i, p := range cfg.Profiles {
			trees[i] = p.NewTree(cfg.Graph)
		}
		return dispatch.WorkerFunc(func(node int32) error {
			for i, p := range cfg.Profiles {
				trees[i].Calculate(node, cfg.DepartureTime, p.Traveler, p.Vehicle, cfg.Stop)
				for _, row := range s.byNode[node] {
					s.writeRow(results[i], trees[i], row)
				}
			}
			if detours {
				for _, row := range s.byNode[node] {
					s.recordDetours(trees[0], trees[1], row, maxDetour, &outliers)
				}
			}
			return nil
		}), nil
	}

	stats, err := dispatch.Run(ctx, cfg.Threads, s.nodes, newWorker,
		dispatch.WithMetrics(cfg.Metrics), dispatch.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("skim %s: %w", runID, err)
	}

	out := &Output{
		RunID:     runID,
		Results:   results,
		MaxDetour: maxDetour.Load(),
		Outliers:  outliers.Snapshot(),
		Stats:     stats,
	}
	logger.Info("skim finished", "elapsed", stats.Elapsed, "outliers", len(out.Outliers))
	return out, nil
}

// writeRow copies the tree values of every destination into row. Nodes
// reached beyond a cutoff are written too.
func (s *Skimmer) writeRow(r *Result, tree *lcpt.Tree, row int) {
	for _, d := range s.dests {
		if !tree.IsReached(d.node) {
			continue
		}
		r.Cost.Set(row, d.col, tree.Cost(d.node))
		r.Time.Set(row, d.col, tree.Time(d.node)-tree.StartTime())
		r.Distance.Set(row, d.col, tree.Distance(d.node))
		for i, m := range r.Attributes {
			m.Set(row, d.col, tree.Attribute(d.node, i))
		}
	}
}

func (s *Skimmer) recordDetours(base, alt *lcpt.Tree, row int, maxDetour *dispatch.MaxTracker, outliers *dispatch.OutlierSet[string, Detour]) {
	origin := s.rows.ID(row)
	for _, d := range s.dests {
		d0, d1 := base.Distance(d.node), alt.Distance(d.node)
		if math.IsInf(d0, 1) || math.IsInf(d1, 1) || d0 <= 0 {
			continue
		}
		ratio := d1 / d0
		maxDetour.Update(ratio)
		if s.cfg.DetourThreshold > 0 && ratio > s.cfg.DetourThreshold {
			dest := s.cols.ID(d.col)
			outliers.Store(origin+"->"+dest, Detour{
				Origin:      origin,
				Destination: dest,
				Ratio:       ratio,
				Distance:    [2]float64{d0, d1},
			})
		}
	}
}
