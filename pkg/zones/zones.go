// Package zones reads origin and destination locations and snaps them onto
// the graph.
package zones

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"access_router/pkg/skim"
	"access_router/pkg/snap"
)

// ErrEmpty is returned for inputs without any zone.
var ErrEmpty = errors.New("zones: no zones")

// Zone is a named location with an optional weight (defaults to 1).
type Zone struct {
	ID     string
	Point  orb.Point
	Weight float64
}

// Load reads zones from path. Files ending in .geojson or .json are read as
// a FeatureCollection of points; everything else as CSV.
func Load(path string) ([]Zone, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open zones: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return ParseGeoJSON(data)
	default:
		return ReadCSV(f)
	}
}

// ReadCSV parses id,lat,lon[,weight] rows. A header row is detected by a
// non-numeric lat column and skipped.
func ReadCSV(r io.Reader) ([]Zone, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []Zone
	seen := make(map[string]bool)
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("zones csv: %w", err)
		}
		if len(rec) < 3 || len(rec) > 4 {
			return nil, fmt.Errorf("zones csv line %d: want 3 or 4 columns, got %d", line, len(rec))
		}
		lat, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("zones csv line %d: lat: %w", line, err)
		}
		lon, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("zones csv line %d: lon: %w", line, err)
		}
		z := Zone{ID: rec[0], Point: orb.Point{lon, lat}, Weight: 1}
		if len(rec) == 4 && rec[3] != "" {
			if z.Weight, err = strconv.ParseFloat(rec[3], 64); err != nil {
				return nil, fmt.Errorf("zones csv line %d: weight: %w", line, err)
			}
		}
		if err := z.validate(seen); err != nil {
			return nil, fmt.Errorf("zones csv line %d: %w", line, err)
		}
		out = append(out, z)
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

// ParseGeoJSON reads a FeatureCollection of Point features. The zone id is
// the "id" property, falling back to the feature id; the weight is the
// optional "weight" property.
func ParseGeoJSON(data []byte) ([]Zone, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("zones geojson: %w", err)
	}

	out := make([]Zone, 0, len(fc.Features))
	seen := make(map[string]bool)
	for i, f := range fc.Features {
		p, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, fmt.Errorf("zones geojson feature %d: want Point, got %s", i, f.Geometry.GeoJSONType())
		}
		id := f.Properties.MustString("id", "")
		if id == "" && f.ID != nil {
			id = fmt.Sprint(f.ID)
		}
		z := Zone{ID: id, Point: p, Weight: f.Properties.MustFloat64("weight", 1)}
		if err := z.validate(seen); err != nil {
			return nil, fmt.Errorf("zones geojson feature %d: %w", i, err)
		}
		out = append(out, z)
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

func (z Zone) validate(seen map[string]bool) error {
	if z.ID == "" {
		return errors.New("empty id")
	}
	if seen[z.ID] {
		return fmt.Errorf("duplicate id %q", z.ID)
	}
	seen[z.ID] = true
	if z.Point.Lat() < -90 || z.Point.Lat() > 90 || z.Point.Lon() < -180 || z.Point.Lon() > 180 {
		return fmt.Errorf("zone %s: coordinate out of range", z.ID)
	}
	if z.Weight < 0 {
		return fmt.Errorf("zone %s: negative weight", z.ID)
	}
	return nil
}

// Snap attaches each zone to the nearer endpoint of its nearest link. Zones
// farther than the snapper's radius get node -1 and are logged; any other
// snapping error aborts.
func Snap(zones []Zone, s *snap.Snapper, logger *slog.Logger) ([]skim.Zone, error) {
	if logger == nil {
		logger = slog.Default()
	}
	out := make([]skim.Zone, len(zones))
	unsnapped := 0
	for i, z := range zones {
		out[i] = skim.Zone{ID: z.ID, Node: -1, Weight: z.Weight}
		res, err := s.Snap(z.Point.Lat(), z.Point.Lon())
		if errors.Is(err, snap.ErrPointTooFar) {
			unsnapped++
			logger.Debug("zone not snapped", "zone", z.ID, "lat", z.Point.Lat(), "lon", z.Point.Lon())
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("snap zone %s: %w", z.ID, err)
		}
		out[i].Node = res.Node()
	}
	if unsnapped > 0 {
		logger.Warn("zones beyond snapping radius", "count", unsnapped, "total", len(zones), "max_dist_m", s.MaxDistance())
	}
	return out, nil
}

// FeatureCollection renders zones as GeoJSON points carrying id and weight
// properties. When snapped is non-nil it must be parallel to zones, and each
// feature also carries the graph node it was attached to (-1 when unsnapped).
func FeatureCollection(zones []Zone, snapped []skim.Zone) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, z := range zones {
		f := geojson.NewFeature(z.Point)
		f.Properties["id"] = z.ID
		f.Properties["weight"] = z.Weight
		if snapped != nil {
			f.Properties["node"] = snapped[i].Node
		}
		fc.Append(f)
	}
	return fc
}

// WriteGeoJSON writes the zones and their snapped nodes as a GeoJSON
// FeatureCollection.
func WriteGeoJSON(path string, zones []Zone, snapped []skim.Zone) error {
	data, err := json.Marshal(FeatureCollection(zones, snapped))
	if err != nil {
		return fmt.Errorf("encode zones: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write zones: %w", err)
	}
	return nil
}
