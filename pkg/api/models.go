package api

import "github.com/paulmach/orb/geojson"

// RouteRequest is the JSON body for POST /api/v1/path.
type RouteRequest struct {
	Start   LatLngJSON `json:"start"`
	End     LatLngJSON `json:"end"`
	Profile string     `json:"profile,omitempty"`
}

// LatLngJSON represents a lat/lng pair in JSON.
type LatLngJSON struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RouteResponse is the JSON response for a successful path query. Geometry
// is a GeoJSON LineString feature carrying the path summary as properties.
type RouteResponse struct {
	Profile        string             `json:"profile"`
	Cost           float64            `json:"cost"`
	TimeSeconds    float64            `json:"time_seconds"`
	DistanceMeters float64            `json:"distance_meters"`
	Attributes     map[string]float64 `json:"attributes,omitempty"`
	LinkIDs        []int64            `json:"link_ids"`
	Geometry       *geojson.Feature   `json:"geometry"`
}

// MatrixRequest is the JSON body for POST /api/v1/matrix. Missing or empty
// destinations default to the origins.
type MatrixRequest struct {
	Origins      []LatLngJSON `json:"origins" validate:"required,min=1"`
	Destinations []LatLngJSON `json:"destinations"`
	Profile      string       `json:"profile,omitempty"`
}

// MatrixResponse is the JSON response for a matrix query. Cells of
// unreached pairs are null.
type MatrixResponse struct {
	Profile        string        `json:"profile"`
	Cost           [][]*float64  `json:"cost"`
	TimeSeconds    [][]*float64  `json:"time_seconds"`
	DistanceMeters [][]*float64  `json:"distance_meters"`
	Unsnapped      UnsnappedJSON `json:"unsnapped"`
}

// UnsnappedJSON lists the indices of points too far from any road.
type UnsnappedJSON struct {
	Origins      []int `json:"origins"`
	Destinations []int `json:"destinations"`
}

// ErrorResponse is the JSON response for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// StatsResponse is the JSON response for GET /api/v1/stats.
type StatsResponse struct {
	NumNodes int32    `json:"num_nodes"`
	NumLinks int32    `json:"num_links"`
	Mode     string   `json:"mode"`
	Profiles []string `json:"profiles"`
}

// HealthResponse is the JSON response for GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
}
