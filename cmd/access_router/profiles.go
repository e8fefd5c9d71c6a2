package main

import (
	"fmt"
	"log/slog"
	"time"

	"access_router/pkg/config"
	"access_router/pkg/cost"
	"access_router/pkg/graph"
	"access_router/pkg/skim"
)

// loadGraph reads the binary graph named by the configuration.
func loadGraph(c *config.Config) (*graph.Graph, error) {
	start := time.Now()
	g, err := graph.ReadBinary(c.Graph.Path)
	if err != nil {
		return nil, fmt.Errorf("load graph: %w", err)
	}
	slog.Info("graph loaded", "path", c.Graph.Path, "nodes", g.NumNodes, "links", g.NumLinks,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return g, nil
}

// buildProfiles turns the configured profiles into link functions of the
// run's travel mode. Every profile carries the configured attributes.
func buildProfiles(c *config.Config, g *graph.Graph) ([]skim.Profile, error) {
	m, err := cost.New(g, c.Mode())
	if err != nil {
		return nil, err
	}
	profiles := make([]skim.Profile, 0, len(c.Run.Profiles))
	for _, pc := range c.Run.Profiles {
		p, err := m.Profile(pc.Name, pc.Disutility, cost.Vehicle{MaxSpeedKmh: pc.MaxSpeedKmh}, c.Run.Attributes...)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", pc.Name, err)
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}
