package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb/geojson"

	"access_router/pkg/routing"
)

var validate = validator.New()

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	router    routing.Router
	stats     StatsResponse
	maxPoints int
}

// NewHandlers creates handlers with the given router. maxPoints bounds the
// number of origins and of destinations in a matrix request.
func NewHandlers(router routing.Router, stats StatsResponse, maxPoints int) *Handlers {
	return &Handlers{
		router:    router,
		stats:     stats,
		maxPoints: maxPoints,
	}
}

// HandlePath handles POST /api/v1/path.
func (h *Handlers) HandlePath(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if !decodeJSON(w, r, 1024, &req) {
		return
	}

	// Validate coordinates.
	if err := validateCoord(req.Start); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "start")
		return
	}
	if err := validateCoord(req.End); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "end")
		return
	}

	result, err := h.router.Route(r.Context(), req.Profile, toLatLng(req.Start), toLatLng(req.End))
	if err != nil {
		writeRouterError(w, err)
		return
	}

	f := geojson.NewFeature(result.Geometry)
	f.Properties["profile"] = result.Profile
	f.Properties["distance_meters"] = result.Distance
	f.Properties["time_seconds"] = result.Time

	writeJSON(w, RouteResponse{
		Profile:        result.Profile,
		Cost:           result.Cost,
		TimeSeconds:    result.Time,
		DistanceMeters: result.Distance,
		Attributes:     result.Attributes,
		LinkIDs:        result.LinkIDs,
		Geometry:       f,
	})
}

// HandleMatrix handles POST /api/v1/matrix.
func (h *Handlers) HandleMatrix(w http.ResponseWriter, r *http.Request) {
	var req MatrixRequest
	if !decodeJSON(w, r, 64<<10, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "origins")
		return
	}
	if len(req.Destinations) == 0 {
		req.Destinations = req.Origins
	}
	if len(req.Origins) > h.maxPoints {
		writeError(w, http.StatusRequestEntityTooLarge, "too_many_points", "origins")
		return
	}
	if len(req.Destinations) > h.maxPoints {
		writeError(w, http.StatusRequestEntityTooLarge, "too_many_points", "destinations")
		return
	}

	origins, field, ok := toLatLngs(req.Origins, "origins")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", field)
		return
	}
	destinations, field, ok := toLatLngs(req.Destinations, "destinations")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", field)
		return
	}

	result, err := h.router.Matrix(r.Context(), req.Profile, origins, destinations)
	if err != nil {
		writeRouterError(w, err)
		return
	}

	resp := MatrixResponse{
		Profile:        result.Profile,
		Cost:           nullable(result.Cost),
		TimeSeconds:    nullable(result.Time),
		DistanceMeters: nullable(result.Distance),
		Unsnapped:      UnsnappedJSON{Origins: []int{}, Destinations: []int{}},
	}
	for i, ok := range result.Snapped {
		if ok {
			continue
		}
		if i < len(origins) {
			resp.Unsnapped.Origins = append(resp.Unsnapped.Origins, i)
		} else {
			resp.Unsnapped.Destinations = append(resp.Unsnapped.Destinations, i-len(origins))
		}
	}
	writeJSON(w, resp)
}

// HandleHealth handles GET /api/v1/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, HealthResponse{Status: "ok"})
}

// HandleStats handles GET /api/v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.stats)
}

// decodeJSON enforces the content type and a body size limit. It writes the
// error response itself and reports whether v was decoded.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return false
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit)).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request_too_large", "")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return false
	}
	return true
}

func writeRouterError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, routing.ErrPointTooFar):
		writeError(w, http.StatusUnprocessableEntity, "point_too_far_from_road", "")
	case errors.Is(err, routing.ErrNoRoute):
		writeError(w, http.StatusNotFound, "no_route_found", "")
	case errors.Is(err, routing.ErrUnknownProfile):
		writeError(w, http.StatusBadRequest, "unknown_profile", "profile")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request_timeout", "")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}

func toLatLng(ll LatLngJSON) routing.LatLng {
	return routing.LatLng{Lat: ll.Lat, Lng: ll.Lng}
}

func toLatLngs(pts []LatLngJSON, name string) ([]routing.LatLng, string, bool) {
	out := make([]routing.LatLng, len(pts))
	for i, p := range pts {
		if err := validateCoord(p); err != nil {
			return nil, fmt.Sprintf("%s[%d]", name, i), false
		}
		out[i] = toLatLng(p)
	}
	return out, "", true
}

func nullable(m [][]float64) [][]*float64 {
	out := make([][]*float64, len(m))
	for i, row := range m {
		out[i] = make([]*float64, len(row))
		for j := range row {
			if routing.Reachable(row[j]) {
				out[i][j] = &row[j]
			}
		}
	}
	return out
}

func validateCoord(ll LatLngJSON) error {
	if math.IsNaN(ll.Lat) || math.IsNaN(ll.Lng) || math.IsInf(ll.Lat, 0) || math.IsInf(ll.Lng, 0) {
		return errors.New("coordinates must be finite numbers")
	}
	if ll.Lat < -90 || ll.Lat > 90 || ll.Lng < -180 || ll.Lng > 180 {
		return errors.New("coordinates out of range")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, field string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: code, Field: field})
}
