package osm

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"

	"access_router/pkg/geo"
)

// RawEdge represents a directed link parsed from OSM data.
type RawEdge struct {
	FromNodeID osm.NodeID
	ToNodeID   osm.NodeID
	WayID      osm.WayID
	Length     float64 // meters
	Class      RoadClass
	MaxSpeed   float32 // km/h, 0 if untagged
	Lanes      uint8   // 0 if untagged
}

// ParseResult holds the output of parsing an OSM PBF file.
type ParseResult struct {
	Edges   []RawEdge
	NodeLat map[osm.NodeID]float64
	NodeLon map[osm.NodeID]float64
}

// wayInfo holds parsed way data collected during Pass 1.
type wayInfo struct {
	ID       osm.WayID
	NodeIDs  []osm.NodeID
	Forward  bool
	Backward bool
	Class    RoadClass
	MaxSpeed float32
	Lanes    uint8
}

// BBox defines a geographic bounding box for filtering.
// If non-zero, only edges with both endpoints inside the box are kept.
type BBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// IsZero returns true if the bbox is unset.
func (b BBox) IsZero() bool {
	return b.MinLat == 0 && b.MaxLat == 0 && b.MinLng == 0 && b.MaxLng == 0
}

// Contains returns true if the point is inside the bounding box.
func (b BBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// ParseOptions configures the OSM parser.
type ParseOptions struct {
	Mode Mode // defaults to ModeCar
	BBox BBox // if non-zero, filter edges to this bounding box
}

// Parse reads an OSM PBF file and returns directed links usable by opts.Mode.
// The reader is consumed twice (seeks back to start for the second pass),
// so it must implement io.ReadSeeker.
func Parse(ctx context.Context, rs io.ReadSeeker, opts ...ParseOptions) (*ParseResult, error) {
	var opt ParseOptions
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.Mode == "" {
		opt.Mode = ModeCar
	}
	useBBox := !opt.BBox.IsZero()

	// Pass 1: Scan ways to collect referenced node IDs and way info.
	referencedNodes := make(map[osm.NodeID]struct{})
	var ways []wayInfo

	scanner := osmpbf.New(ctx, rs, 1)
	scanner.SkipNodes = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		w, ok := scanner.Object().(*osm.Way)
		if !ok {
			continue
		}
		if info, ok := wayFromTags(w, opt.Mode); ok {
			for _, id := range info.NodeIDs {
				referencedNodes[id] = struct{}{}
			}
			ways = append(ways, info)
		}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 1 (ways): %w", err)
	}
	scanner.Close()

	slog.Info("pass 1 complete", "mode", opt.Mode, "ways", len(ways), "referenced_nodes", len(referencedNodes))

	// Pass 2: Scan nodes to collect coordinates for referenced nodes only.
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek for pass 2: %w", err)
	}

	nodeLat := make(map[osm.NodeID]float64, len(referencedNodes))
	nodeLon := make(map[osm.NodeID]float64, len(referencedNodes))

	scanner = osmpbf.New(ctx, rs, 1)
	scanner.SkipWays = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := referencedNodes[n.ID]; !needed {
			continue
		}
		nodeLat[n.ID] = n.Lat
		nodeLon[n.ID] = n.Lon
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 2 (nodes): %w", err)
	}
	scanner.Close()

	slog.Info("pass 2 complete", "node_coordinates", len(nodeLat))

	result := &ParseResult{NodeLat: nodeLat, NodeLon: nodeLon}
	skipped, filtered := result.addWays(ways, opt.BBox, useBBox)

	if skipped > 0 {
		slog.Warn("skipped links with missing node coordinates", "count", skipped)
	}
	if filtered > 0 {
		slog.Info("filtered links outside bounding box", "count", filtered)
	}
	slog.Info("built directed links", "count", len(result.Edges))

	return result, nil
}

// wayFromTags applies the mode filter and direction rules to a way.
func wayFromTags(w *osm.Way, mode Mode) (wayInfo, bool) {
	if len(w.Nodes) < 2 || !isAccessible(w.Tags, mode) {
		return wayInfo{}, false
	}
	fwd, bwd := modeDirectionFlags(w.Tags, mode)
	if !fwd && !bwd {
		return wayInfo{}, false
	}
	nodeIDs := make([]osm.NodeID, len(w.Nodes))
	for i, wn := range w.Nodes {
		nodeIDs[i] = wn.ID
	}
	return wayInfo{
		ID:       w.ID,
		NodeIDs:  nodeIDs,
		Forward:  fwd,
		Backward: bwd,
		Class:    ClassOf(w.Tags.Find("highway")),
		MaxSpeed: parseMaxSpeed(w.Tags),
		Lanes:    parseLanes(w.Tags),
	}, true
}

// addWays splits every way into one link per consecutive node pair and
// direction. Returns the number of pairs skipped for missing coordinates and
// the number dropped by the bounding box.
func (r *ParseResult) addWays(ways []wayInfo, bbox BBox, useBBox bool) (skipped, filtered int) {
	for _, w := range ways {
		for i := 0; i < len(w.NodeIDs)-1; i++ {
			fromID := w.NodeIDs[i]
			toID := w.NodeIDs[i+1]

			fromLat, fromOk := r.NodeLat[fromID]
			fromLon := r.NodeLon[fromID]
			toLat, toOk := r.NodeLat[toID]
			toLon := r.NodeLon[toID]

			if !fromOk || !toOk {
				skipped++
				continue
			}
			if useBBox && (!bbox.Contains(fromLat, fromLon) || !bbox.Contains(toLat, toLon)) {
				filtered++
				continue
			}

			length := geo.Haversine(fromLat, fromLon, toLat, toLon)
			if length < minLinkLength {
				length = minLinkLength
			}

			edge := RawEdge{
				WayID:    w.ID,
				Length:   length,
				Class:    w.Class,
				MaxSpeed: w.MaxSpeed,
				Lanes:    w.Lanes,
			}
			if w.Forward {
				edge.FromNodeID, edge.ToNodeID = fromID, toID
				r.Edges = append(r.Edges, edge)
			}
			if w.Backward {
				edge.FromNodeID, edge.ToNodeID = toID, fromID
				r.Edges = append(r.Edges, edge)
			}
		}
	}
	return skipped, filtered
}

// minLinkLength avoids zero-length links between duplicated OSM nodes.
const minLinkLength = 0.001
