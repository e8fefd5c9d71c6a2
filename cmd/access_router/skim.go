package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"access_router/pkg/metrics"
	"access_router/pkg/skim"
	"access_router/pkg/snap"
	"access_router/pkg/zones"
)

var skimCmd = &cobra.Command{
	Use:   "skim",
	Short: "Compute origin-destination matrices for the configured zones",
	Long: `Snap the configured origin and destination zones onto the graph, grow
one least-cost path tree per origin and profile in parallel, and write one
CSV per profile and indicator into output.dir. With two or more profiles,
pairs whose second-profile distance exceeds the first by
run.detour_threshold are written to outliers.csv. When
run.accessibility is set, accessibility.csv holds one score per zone and
profile. origins_snapped.geojson (and destinations_snapped.geojson when
the files differ) show the graph node each zone was attached to.

Examples:
  access_router skim --config job.yaml`,
	Args: cobra.NoArgs,
	RunE: runSkim,
}

func runSkim(cmd *cobra.Command, _ []string) error {
	if cfg.Zones.Origins == "" {
		return errors.New("zones.origins is required for skims")
	}

	g, err := loadGraph(cfg)
	if err != nil {
		return err
	}
	profiles, err := buildProfiles(cfg, g)
	if err != nil {
		return err
	}
	snapper, err := snap.New(g, cfg.Zones.MaxSnapDist)
	if err != nil {
		return err
	}

	originZones, origins, err := loadZones(cfg.Zones.Origins, snapper)
	if err != nil {
		return err
	}
	destZones, destinations := originZones, origins
	if cfg.Zones.Destinations != cfg.Zones.Origins {
		if destZones, destinations, err = loadZones(cfg.Zones.Destinations, snapper); err != nil {
			return err
		}
	}

	s, err := skim.New(skim.Config{
		Graph:           g,
		Origins:         origins,
		Destinations:    destinations,
		Profiles:        profiles,
		Stop:            cfg.Stop(),
		Threads:         cfg.Run.Threads,
		DepartureTime:   cfg.Run.DepartureTime,
		DetourThreshold: cfg.Run.DetourThreshold,
		Metrics:         metrics.NewDispatch(nil),
	})
	if err != nil {
		return err
	}

	out, err := s.Run(cmd.Context())
	if err != nil {
		return err
	}
	written, err := skim.WriteOutput(cfg.Output.Dir, out)
	if err != nil {
		return err
	}
	path := filepath.Join(cfg.Output.Dir, "origins_snapped.geojson")
	if err := zones.WriteGeoJSON(path, originZones, origins); err != nil {
		return err
	}
	written = append(written, path)
	if cfg.Zones.Destinations != cfg.Zones.Origins {
		path = filepath.Join(cfg.Output.Dir, "destinations_snapped.geojson")
		if err := zones.WriteGeoJSON(path, destZones, destinations); err != nil {
			return err
		}
		written = append(written, path)
	}
	if len(profiles) >= 2 {
		slog.Info("detours", "max_ratio", out.MaxDetour, "outliers", len(out.Outliers))
	}

	if a := cfg.Run.Accessibility; a != nil {
		decay := skim.Cumulative(a.Cutoff)
		if a.Beta > 0 {
			decay = skim.NegativeExponential(a.Beta)
		}
		acc, err := s.Accessibility(cmd.Context(), decay)
		if err != nil {
			return err
		}
		path = filepath.Join(cfg.Output.Dir, "accessibility.csv")
		if err := skim.WriteAccessibility(path, acc); err != nil {
			return err
		}
		written = append(written, path)
	}

	slog.Info("skim written", "run_id", out.RunID, "files", len(written), "dir", cfg.Output.Dir)
	return nil
}

// loadZones reads a zone file and snaps it, returning both forms in the
// same order.
func loadZones(path string, snapper *snap.Snapper) ([]zones.Zone, []skim.Zone, error) {
	zs, err := zones.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("zones %s: %w", path, err)
	}
	snapped, err := zones.Snap(zs, snapper, slog.Default())
	if err != nil {
		return nil, nil, err
	}
	return zs, snapped, nil
}
