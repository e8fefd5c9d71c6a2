// Package routing answers point-to-point and matrix queries on coordinates
// by snapping them onto the graph and running least-cost path trees.
package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"

	"github.com/paulmach/orb"

	"access_router/pkg/graph"
	"access_router/pkg/lcpt"
	"access_router/pkg/metrics"
	"access_router/pkg/skim"
	"access_router/pkg/snap"
)

var (
	// ErrNoRoute is returned when no route exists between the two points.
	ErrNoRoute = skim.ErrNoRoute
	// ErrPointTooFar is returned when a point cannot be snapped.
	ErrPointTooFar = snap.ErrPointTooFar
	// ErrUnknownProfile is returned for profile names the engine was not
	// built with.
	ErrUnknownProfile = errors.New("unknown profile")
)

// LatLng represents a geographic coordinate.
type LatLng struct {
	Lat float64
	Lng float64
}

// RouteResult is the output of a route query.
type RouteResult struct {
	Profile    string
	Cost       float64
	Time       float64 // seconds
	Distance   float64 // meters
	Attributes map[string]float64
	LinkIDs    []int64
	Geometry   orb.LineString
}

// MatrixResult holds cost, time and distance between every origin and
// destination. Unreached or unsnapped pairs are +Inf.
type MatrixResult struct {
	Profile  string
	Cost     [][]float64
	Time     [][]float64
	Distance [][]float64
	Snapped  []bool // per origin, then per destination
}

// Router is the interface for route queries.
type Router interface {
	Route(ctx context.Context, profile string, start, end LatLng) (*RouteResult, error)
	Matrix(ctx context.Context, profile string, origins, destinations []LatLng) (*MatrixResult, error)
	Profiles() []string
}

// Options tunes query execution.
type Options struct {
	Threads       int
	DepartureTime float64
	Stop          lcpt.StopCriterion
	Metrics       *metrics.Dispatch
	Logger        *slog.Logger
}

// Engine implements Router over one graph and a fixed set of profiles.
type Engine struct {
	g        *graph.Graph
	snapper  *snap.Snapper
	profiles map[string]skim.Profile
	names    []string
	trees    map[string]*sync.Pool
	opts     Options
}

// NewEngine creates a routing engine. Profile names must be unique.
func NewEngine(g *graph.Graph, snapper *snap.Snapper, profiles []skim.Profile, opts Options) (*Engine, error) {
	if len(profiles) == 0 {
		return nil, skim.ErrNoProfiles
	}
	if opts.Threads <= 0 {
		opts.Threads = 1
	}
	if opts.Stop == nil {
		opts.Stop = lcpt.NoStop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	e := &Engine{
		g:        g,
		snapper:  snapper,
		profiles: make(map[string]skim.Profile, len(profiles)),
		trees:    make(map[string]*sync.Pool, len(profiles)),
		opts:     opts,
	}
	for _, p := range profiles {
		if _, dup := e.profiles[p.Name]; dup {
			return nil, fmt.Errorf("duplicate profile %q", p.Name)
		}
		e.profiles[p.Name] = p
		e.names = append(e.names, p.Name)
		e.trees[p.Name] = &sync.Pool{New: func() any { return p.NewTree(g) }}
	}
	return e, nil
}

// Profiles returns the profile names in construction order.
func (e *Engine) Profiles() []string { return e.names }

func (e *Engine) profile(name string) (skim.Profile, error) {
	if name == "" {
		name = e.names[0]
	}
	p, ok := e.profiles[name]
	if !ok {
		return skim.Profile{}, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}
	return p, nil
}

// Route computes the least-cost path between two points.
func (e *Engine) Route(ctx context.Context, profile string, start, end LatLng) (*RouteResult, error) {
	p, err := e.profile(profile)
	if err != nil {
		return nil, err
	}

	// Step 1: Snap points to nearest links.
	startSnap, err := e.snapper.Snap(start.Lat, start.Lng)
	if err != nil {
		return nil, err
	}
	endSnap, err := e.snapper.Snap(end.Lat, end.Lng)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Step 2: Grow a tree from the start node.
	pool := e.trees[p.Name]
	tree := pool.Get().(*lcpt.Tree)
	defer pool.Put(tree)

	res, err := skim.Path(tree, p, startSnap.Node(), endSnap.Node(), e.opts.DepartureTime, e.opts.Stop)
	if err != nil {
		return nil, err
	}

	// Step 3: Build geometry from the link sequence.
	return &RouteResult{
		Profile:    p.Name,
		Cost:       res.Cost,
		Time:       res.Time,
		Distance:   res.Distance,
		Attributes: res.Attributes,
		LinkIDs:    res.LinkIDs,
		Geometry:   e.buildGeometry(startSnap.Node(), res.Links),
	}, nil
}

// buildGeometry converts a link path into a line through its nodes.
func (e *Engine) buildGeometry(start int32, links []int32) orb.LineString {
	g := e.g
	ls := orb.LineString{{g.NodeLon[start], g.NodeLat[start]}}
	for _, l := range links {
		v := g.Head[l]
		ls = append(ls, orb.Point{g.NodeLon[v], g.NodeLat[v]})
	}
	return ls
}

// Matrix computes cost, time and distance between every origin and every
// destination with a parallel skim.
func (e *Engine) Matrix(ctx context.Context, profile string, origins, destinations []LatLng) (*MatrixResult, error) {
	p, err := e.profile(profile)
	if err != nil {
		return nil, err
	}

	orig, origSnapped := e.zones("o", origins)
	dest, destSnapped := e.zones("d", destinations)

	s, err := skim.New(skim.Config{
		Graph:         e.g,
		Origins:       orig,
		Destinations:  dest,
		Profiles:      []skim.Profile{p},
		Stop:          e.opts.Stop,
		Threads:       e.opts.Threads,
		DepartureTime: e.opts.DepartureTime,
		Metrics:       e.opts.Metrics,
		Logger:        e.opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	out, err := s.Run(ctx)
	if err != nil {
		return nil, err
	}

	r := out.Results[0]
	return &MatrixResult{
		Profile:  p.Name,
		Cost:     rows(r.Cost.Row, len(origins)),
		Time:     rows(r.Time.Row, len(origins)),
		Distance: rows(r.Distance.Row, len(origins)),
		Snapped:  append(origSnapped, destSnapped...),
	}, nil
}

// zones snaps points into skim zones with ids prefix0, prefix1, ...
// Unsnappable points get node -1.
func (e *Engine) zones(prefix string, pts []LatLng) ([]skim.Zone, []bool) {
	zs := make([]skim.Zone, len(pts))
	ok := make([]bool, len(pts))
	for i, pt := range pts {
		zs[i] = skim.Zone{ID: prefix + strconv.Itoa(i), Node: -1, Weight: 1}
		if res, err := e.snapper.Snap(pt.Lat, pt.Lng); err == nil {
			zs[i].Node = res.Node()
			ok[i] = true
		}
	}
	return zs, ok
}

func rows(row func(int) []float64, n int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = append([]float64(nil), row(i)...)
	}
	return out
}

// Reachable reports whether a matrix cell holds a finite value.
func Reachable(v float64) bool { return !math.IsInf(v, 0) && !math.IsNaN(v) }
