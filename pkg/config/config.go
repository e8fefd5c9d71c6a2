// Package config loads the YAML job and server configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"access_router/pkg/cost"
	"access_router/pkg/lcpt"
	osmparser "access_router/pkg/osm"
	"access_router/pkg/snap"
)

// Config is the full configuration of a skim job or server.
type Config struct {
	Graph  GraphConfig  `yaml:"graph"`
	Zones  ZonesConfig  `yaml:"zones"`
	Run    RunConfig    `yaml:"run"`
	Output OutputConfig `yaml:"output"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

// GraphConfig locates the preprocessed graph.
type GraphConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// ZonesConfig locates origin and destination zones. Destinations default to
// the origins.
type ZonesConfig struct {
	Origins      string  `yaml:"origins"`
	Destinations string  `yaml:"destinations"`
	MaxSnapDist  float64 `yaml:"max_snap_dist_m" validate:"gte=0"`
}

// ProfileConfig names one way of ranking paths. The first two profiles of
// a run are compared for detours.
type ProfileConfig struct {
	Name        string  `yaml:"name" validate:"required"`
	Disutility  string  `yaml:"disutility" validate:"required,oneof=fastest shortest generalized"`
	MaxSpeedKmh float64 `yaml:"max_speed_kmh" validate:"gte=0"`
}

// RunConfig parameterizes tree computation.
type RunConfig struct {
	Mode            string          `yaml:"mode" validate:"oneof=car bike walk"`
	Threads         int             `yaml:"threads" validate:"gte=1"`
	DepartureTime   float64         `yaml:"departure_time_s" validate:"gte=0"`
	MaxTime         float64         `yaml:"max_time_s" validate:"gte=0"`
	MaxDistance     float64         `yaml:"max_distance_m" validate:"gte=0"`
	DetourThreshold float64         `yaml:"detour_threshold" validate:"eq=0|gt=1"`
	Attributes      []string        `yaml:"attributes" validate:"dive,oneof=stress lanes"`
	Profiles        []ProfileConfig `yaml:"profiles" validate:"required,min=1,dive"`
	Accessibility   *Accessibility  `yaml:"accessibility"`
}

// Accessibility enables the per-zone accessibility output. Exactly one of
// Cutoff (cumulative opportunities) or Beta (negative exponential) is set.
type Accessibility struct {
	Cutoff float64 `yaml:"cutoff" validate:"gte=0"`
	Beta   float64 `yaml:"beta" validate:"gte=0"`
}

// OutputConfig controls where skim results are written.
type OutputConfig struct {
	Dir string `yaml:"dir" validate:"required"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr          string  `yaml:"addr" validate:"required"`
	CORSOrigin    string  `yaml:"cors_origin"`
	MaxConcurrent int     `yaml:"max_concurrent" validate:"gte=1"`
	MaxPoints     int     `yaml:"max_points" validate:"gte=1"`
	RateLimit     float64 `yaml:"rate_limit" validate:"gte=0"`
	RateBurst     int     `yaml:"rate_burst" validate:"gte=0"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

var validate = validator.New()

// Default returns a configuration with every optional field set.
func Default() *Config {
	return &Config{
		Graph: GraphConfig{Path: "graph.bin"},
		Zones: ZonesConfig{MaxSnapDist: snap.DefaultMaxDistance},
		Run: RunConfig{
			Mode:     string(osmparser.ModeCar),
			Threads:  runtime.NumCPU(),
			Profiles: []ProfileConfig{{Name: "fastest", Disutility: cost.Fastest}},
		},
		Output: OutputConfig{Dir: "out"},
		Server: ServerConfig{Addr: ":8080", MaxConcurrent: 64, MaxPoints: 100},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over Default, fills zero values and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default. Unknown keys are rejected and an empty
// document yields the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Run.Threads == 0 {
		c.Run.Threads = runtime.NumCPU()
	}
	if c.Zones.MaxSnapDist == 0 {
		c.Zones.MaxSnapDist = snap.DefaultMaxDistance
	}
	if c.Zones.Destinations == "" {
		c.Zones.Destinations = c.Zones.Origins
	}
}

// Validate checks field constraints and the cross-field rules tags cannot
// express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	seen := make(map[string]bool)
	for _, p := range c.Run.Profiles {
		if seen[p.Name] {
			return fmt.Errorf("invalid config: duplicate profile %q", p.Name)
		}
		seen[p.Name] = true
	}
	if a := c.Run.Accessibility; a != nil && (a.Cutoff > 0) == (a.Beta > 0) {
		return errors.New("invalid config: accessibility needs exactly one of cutoff or beta")
	}
	return nil
}

// Mode returns the parsed travel mode.
func (c *Config) Mode() osmparser.Mode {
	return osmparser.Mode(c.Run.Mode)
}

// Stop builds the stop criterion of the run.
func (c *Config) Stop() lcpt.StopCriterion {
	return lcpt.NewStopCriterion(c.Run.MaxTime, c.Run.MaxDistance)
}
