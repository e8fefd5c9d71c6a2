package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"access_router/pkg/graph"
	osmparser "access_router/pkg/osm"
)

var (
	ppInput     string
	ppOutput    string
	ppMode      string
	ppBBox      string
	ppSingapore bool
	ppKL        bool
)

var preprocessCmd = &cobra.Command{
	Use:   "preprocess",
	Short: "Build a binary routing graph from an OSM PBF extract",
	Long: `Parse an OSM PBF file, keep the ways usable by one travel mode, extract
the largest connected component and write the graph in binary form.

Examples:
  access_router preprocess --input sg.osm.pbf --singapore
  access_router preprocess --input my.osm.pbf --mode walk --bbox 2.75,101.2,3.5,102.0`,
	Args: cobra.NoArgs,
	RunE: runPreprocess,
}

func init() {
	f := preprocessCmd.Flags()
	f.StringVar(&ppInput, "input", "", "Path to .osm.pbf file")
	f.StringVar(&ppOutput, "output", "", "Output binary graph file path (default graph.path from config)")
	f.StringVar(&ppMode, "mode", "", "Travel mode: car, bike or walk (default run.mode from config)")
	f.StringVar(&ppBBox, "bbox", "", "Bounding box filter: minLat,minLng,maxLat,maxLng (e.g. 1.15,103.6,1.48,104.1)")
	f.BoolVar(&ppSingapore, "singapore", false, "Shortcut for --bbox 1.15,103.6,1.48,104.1 (Singapore bounding box)")
	f.BoolVar(&ppKL, "kl", false, "Shortcut for --bbox 2.75,101.2,3.5,102.0 (Selangor + Kuala Lumpur bounding box)")
	preprocessCmd.MarkFlagRequired("input")
	preprocessCmd.MarkFlagsMutuallyExclusive("bbox", "singapore", "kl")
}

func runPreprocess(cmd *cobra.Command, _ []string) error {
	output := ppOutput
	if output == "" {
		output = cfg.Graph.Path
	}
	modeName := ppMode
	if modeName == "" {
		modeName = cfg.Run.Mode
	}
	mode, err := osmparser.ParseMode(modeName)
	if err != nil {
		return err
	}

	opts := osmparser.ParseOptions{Mode: mode}
	switch {
	case ppKL:
		opts.BBox = osmparser.BBox{MinLat: 2.75, MaxLat: 3.5, MinLng: 101.2, MaxLng: 102.0}
	case ppSingapore:
		opts.BBox = osmparser.BBox{MinLat: 1.15, MaxLat: 1.48, MinLng: 103.6, MaxLng: 104.1}
	case ppBBox != "":
		var minLat, minLng, maxLat, maxLng float64
		if _, err := fmt.Sscanf(ppBBox, "%f,%f,%f,%f", &minLat, &minLng, &maxLat, &maxLng); err != nil {
			return fmt.Errorf("invalid bbox (expected minLat,minLng,maxLat,maxLng): %w", err)
		}
		opts.BBox = osmparser.BBox{MinLat: minLat, MaxLat: maxLat, MinLng: minLng, MaxLng: maxLng}
	}
	if !opts.BBox.IsZero() {
		slog.Info("bounding box filter", "lat", [2]float64{opts.BBox.MinLat, opts.BBox.MaxLat},
			"lng", [2]float64{opts.BBox.MinLng, opts.BBox.MaxLng})
	}

	start := time.Now()

	// Step 1: Parse OSM data.
	f, err := os.Open(ppInput)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	slog.Info("parsing OSM data", "input", ppInput, "mode", mode)
	parsed, err := osmparser.Parse(cmd.Context(), f, opts)
	if err != nil {
		return fmt.Errorf("parse OSM data: %w", err)
	}
	slog.Info("parsed", "links", len(parsed.Edges), "nodes", len(parsed.NodeLat))

	// Step 2: Build graph.
	g := graph.Build(parsed)
	slog.Info("graph built", "nodes", g.NumNodes, "links", g.NumLinks)

	// Step 3: Extract largest connected component.
	component := graph.LargestComponent(g)
	if g.NumNodes > 0 {
		slog.Info("largest component", "nodes", len(component),
			"share", fmt.Sprintf("%.1f%%", float64(len(component))/float64(g.NumNodes)*100))
	}
	g = graph.FilterToComponent(g, component)
	slog.Info("filtered graph", "nodes", g.NumNodes, "links", g.NumLinks)

	// Step 4: Serialize to binary.
	if err := graph.WriteBinary(output, g); err != nil {
		return fmt.Errorf("write binary: %w", err)
	}

	info, err := os.Stat(output)
	if err != nil {
		return err
	}
	slog.Info("done", "elapsed", time.Since(start).Round(time.Second), "output", output,
		"size_mb", fmt.Sprintf("%.1f", float64(info.Size())/(1024*1024)))
	return nil
}
