package main

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"access_router/pkg/api"
	"access_router/pkg/metrics"
	"access_router/pkg/routing"
	"access_router/pkg/snap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve matrix and path queries over HTTP",
	Long: `Load the graph, build every configured profile and serve:

  POST /api/v1/matrix   cost, time and distance between coordinates
  POST /api/v1/path     least-cost path with a GeoJSON LineString
  GET  /api/v1/health
  GET  /api/v1/stats
  GET  /metrics         Prometheus metrics

Examples:
  access_router serve --config job.yaml`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	start := time.Now()

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

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	engine, err := routing.NewEngine(g, snapper, profiles, routing.Options{
		Threads:       cfg.Run.Threads,
		DepartureTime: cfg.Run.DepartureTime,
		Stop:          cfg.Stop(),
		Metrics:       metrics.NewDispatch(reg),
	})
	if err != nil {
		return err
	}
	slog.Info("ready", "elapsed", time.Since(start).Round(time.Millisecond), "profiles", engine.Profiles())

	sc := api.DefaultConfig(cfg.Server.Addr)
	sc.CORSOrigin = cfg.Server.CORSOrigin
	sc.MaxConcurrent = cfg.Server.MaxConcurrent
	sc.RateLimit = cfg.Server.RateLimit
	sc.RateBurst = cfg.Server.RateBurst
	sc.Metrics = metrics.NewHTTP(reg)
	sc.Gatherer = reg

	stats := api.StatsResponse{
		NumNodes: g.NumNodes,
		NumLinks: g.NumLinks,
		Mode:     cfg.Run.Mode,
		Profiles: engine.Profiles(),
	}
	handlers := api.NewHandlers(engine, stats, cfg.Server.MaxPoints)
	return api.ListenAndServe(cmd.Context(), api.NewServer(sc, handlers), slog.Default())
}
