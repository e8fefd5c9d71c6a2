package skim

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"access_router/pkg/dispatch"
	"access_router/pkg/lcpt"
	"access_router/pkg/matrix"
)

// Decay weighs an opportunity by the cost of reaching it.
type Decay func(cost float64) float64

// Cumulative counts opportunities within cutoff.
func Cumulative(cutoff float64) Decay {
	return func(cost float64) float64 {
		if cost <= cutoff {
			return 1
		}
		return 0
	}
}

// NegativeExponential weighs opportunities by exp(-beta * cost).
func NegativeExponential(beta float64) Decay {
	return func(cost float64) float64 { return math.Exp(-beta * cost) }
}

// Accessibility holds one score per origin zone and profile.
type Accessibility struct {
	RunID   string
	Origins *matrix.Index[string]
	Scores  map[string][]float64 // profile name -> score per origin row
}

// Score returns the score of origin zone id under profile.
func (a *Accessibility) Score(profile, id string) (float64, bool) {
	row, ok := a.Origins.Pos(id)
	if !ok {
		return 0, false
	}
	scores, ok := a.Scores[profile]
	if !ok {
		return 0, false
	}
	return scores[row], true
}

// Accessibility sums, per origin zone, destination weight times decay(cost)
// over every reached destination. Unsnapped origins score zero.
func (s *Skimmer) Accessibility(ctx context.Context, decay Decay) (*Accessibility, error) {
	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID)
	cfg := s.cfg

	acc := &Accessibility{
		RunID:   runID,
		Origins: s.rows,
		Scores:  make(map[string][]float64, len(cfg.Profiles)),
	}
	scores := make([][]float64, len(cfg.Profiles))
	for i, p := range cfg.Profiles {
		scores[i] = make([]float64, s.rows.Len())
		acc.Scores[p.Name] = scores[i]
	}

	logger.Info("accessibility started", "origin_nodes", len(s.nodes), "destinations", len(s.dests))

	newWorker := func(int) (dispatch.Worker, error) {
		trees := make([]*lcpt.Tree, len(cfg.Profiles))
		for i, p := range cfg.Profiles {
			trees[i] = p.NewTree(cfg.Graph)
		}
		return dispatch.WorkerFunc(func(node int32) error {
			for i, p := range cfg.Profiles {
				tree := trees[i]
				tree.Calculate(node, cfg.DepartureTime, p.Traveler, p.Vehicle, cfg.Stop)
				var sum float64
				for _, d := range s.dests {
					if tree.IsReached(d.node) {
						sum += cfg.Destinations[d.col].Weight * decay(tree.Cost(d.node))
					}
				}
				for _, row := range s.byNode[node] {
					scores[i][row] = sum
				}
			}
			return nil
		}), nil
	}

	stats, err := dispatch.Run(ctx, cfg.Threads, s.nodes, newWorker,
		dispatch.WithMetrics(cfg.Metrics), dispatch.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("accessibility %s: %w", runID, err)
	}
	logger.Info("accessibility finished", "elapsed", stats.Elapsed)
	return acc, nil
}
