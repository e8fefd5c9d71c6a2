package zones

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"access_router/pkg/graph"
	"access_router/pkg/snap"
)

func TestReadCSV(t *testing.T) {
	in := "id,lat,lon,weight\nA,1.30,103.80,2.5\nB, 1.31, 103.81\n"
	zs, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, zs, 2)

	assert.Equal(t, "A", zs[0].ID)
	assert.Equal(t, orb.Point{103.80, 1.30}, zs[0].Point)
	assert.Equal(t, 2.5, zs[0].Weight)
	assert.Equal(t, 1.0, zs[1].Weight, "weight defaults to 1")
}

func TestReadCSVWithoutHeader(t *testing.T) {
	zs, err := ReadCSV(strings.NewReader("A,1.3,103.8\n"))
	require.NoError(t, err)
	assert.Len(t, zs, 1)
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"columns", "A,1.3\n", "columns"},
		{"bad lat", "A,1.3,103.8\nB,x,103.8\n", "lat"},
		{"bad lon", "A,1.3,east\n", "lon"},
		{"bad weight", "A,1.3,103.8,heavy\n", "weight"},
		{"duplicate", "A,1.3,103.8\nA,1.4,103.8\n", "duplicate"},
		{"range", "A,91,103.8\n", "out of range"},
		{"negative", "A,1.3,103.8,-1\n", "negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.in))
			assert.ErrorContains(t, err, tt.want)
		})
	}

	_, err := ReadCSV(strings.NewReader("id,lat,lon\n"))
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestGeoJSONRoundTrip(t *testing.T) {
	want := []Zone{
		{ID: "A", Point: orb.Point{103.8, 1.3}, Weight: 1},
		{ID: "B", Point: orb.Point{103.9, 1.35}, Weight: 4},
	}
	data, err := json.Marshal(FeatureCollection(want, nil))
	require.NoError(t, err)

	got, err := ParseGeoJSON(data)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseGeoJSONRejectsNonPoints(t *testing.T) {
	data := `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"id":"L"},
		 "geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}}]}`
	_, err := ParseGeoJSON([]byte(data))
	assert.ErrorContains(t, err, "want Point")
}

func TestParseGeoJSONFeatureID(t *testing.T) {
	data := `{"type":"FeatureCollection","features":[
		{"type":"Feature","id":"z1","properties":{},
		 "geometry":{"type":"Point","coordinates":[103.8,1.3]}}]}`
	zs, err := ParseGeoJSON([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, "z1", zs[0].ID)
}

func TestLoadByExtension(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "zones.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("A,1.3,103.8\n"), 0o644))
	zs, err := Load(csvPath)
	require.NoError(t, err)
	assert.Len(t, zs, 1)

	data, err := json.Marshal(FeatureCollection(zs, nil))
	require.NoError(t, err)
	geoPath := filepath.Join(dir, "zones.geojson")
	require.NoError(t, os.WriteFile(geoPath, data, 0o644))
	zs2, err := Load(geoPath)
	require.NoError(t, err)
	assert.Equal(t, zs, zs2)

	_, err = Load(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestSnap(t *testing.T) {
	// Two nodes ~111 m apart along a parallel.
	b := graph.NewBuilder(2)
	b.SetCoord(0, 1.3, 103.800)
	b.SetCoord(1, 1.3, 103.801)
	b.AddLink(0, 1, 111, 7)
	b.AddLink(1, 0, 111, 8)
	s, err := snap.New(b.Build(), 200)
	require.NoError(t, err)

	zs := []Zone{
		{ID: "near0", Point: orb.Point{103.8001, 1.3001}, Weight: 1},
		{ID: "near1", Point: orb.Point{103.8009, 1.2999}, Weight: 2},
		{ID: "far", Point: orb.Point{104.0, 1.3}, Weight: 1},
	}
	out, err := Snap(zs, s, nil)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, int32(0), out[0].Node)
	assert.Equal(t, int32(1), out[1].Node)
	assert.Equal(t, 2.0, out[1].Weight)
	assert.Equal(t, int32(-1), out[2].Node)
	assert.Equal(t, "far", out[2].ID)

	path := filepath.Join(t.TempDir(), "snapped.geojson")
	require.NoError(t, WriteGeoJSON(path, zs, out))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 3)
	assert.Equal(t, 1.0, fc.Features[1].Properties.MustFloat64("node"))
	assert.Equal(t, -1.0, fc.Features[2].Properties.MustFloat64("node"))

	back, err := ParseGeoJSON(data)
	require.NoError(t, err)
	assert.Equal(t, zs, back)
}
