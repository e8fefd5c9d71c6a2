package osm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/osm"
)

// Mode is the travel mode a network is extracted for.
type Mode string

const (
	ModeCar  Mode = "car"
	ModeBike Mode = "bike"
	ModeWalk Mode = "walk"
)

// ParseMode converts a config/CLI string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case ModeCar:
		return ModeCar, nil
	case ModeBike:
		return ModeBike, nil
	case ModeWalk:
		return ModeWalk, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// RoadClass is a compact highway classification stored per link.
type RoadClass uint8

const (
	ClassUnknown RoadClass = iota
	ClassMotorway
	ClassTrunk
	ClassPrimary
	ClassSecondary
	ClassTertiary
	ClassUnclassified
	ClassResidential
	ClassLivingStreet
	ClassService
	ClassCycleway
	ClassPath
	ClassFootway
	ClassPedestrian
	ClassSteps
	ClassTrack
)

var highwayClasses = map[string]RoadClass{
	"motorway":       ClassMotorway,
	"motorway_link":  ClassMotorway,
	"trunk":          ClassTrunk,
	"trunk_link":     ClassTrunk,
	"primary":        ClassPrimary,
	"primary_link":   ClassPrimary,
	"secondary":      ClassSecondary,
	"secondary_link": ClassSecondary,
	"tertiary":       ClassTertiary,
	"tertiary_link":  ClassTertiary,
	"unclassified":   ClassUnclassified,
	"residential":    ClassResidential,
	"living_street":  ClassLivingStreet,
	"service":        ClassService,
	"cycleway":       ClassCycleway,
	"path":           ClassPath,
	"bridleway":      ClassPath,
	"footway":        ClassFootway,
	"pedestrian":     ClassPedestrian,
	"steps":          ClassSteps,
	"track":          ClassTrack,
}

// ClassOf maps a highway tag value to its RoadClass.
func ClassOf(highway string) RoadClass {
	return highwayClasses[highway]
}

func (c RoadClass) String() string {
	for k, v := range highwayClasses {
		if v == c && !strings.HasSuffix(k, "_link") && k != "bridleway" {
			return k
		}
	}
	return "unknown"
}

// modeClasses lists which road classes each mode may use at all.
var modeClasses = map[Mode]map[RoadClass]bool{
	ModeCar: {
		ClassMotorway: true, ClassTrunk: true, ClassPrimary: true, ClassSecondary: true,
		ClassTertiary: true, ClassUnclassified: true, ClassResidential: true,
		ClassLivingStreet: true, ClassService: true,
	},
	ModeBike: {
		ClassPrimary: true, ClassSecondary: true, ClassTertiary: true,
		ClassUnclassified: true, ClassResidential: true, ClassLivingStreet: true,
		ClassService: true, ClassCycleway: true, ClassPath: true, ClassTrack: true,
	},
	ModeWalk: {
		ClassTrunk: true, ClassPrimary: true, ClassSecondary: true, ClassTertiary: true,
		ClassUnclassified: true, ClassResidential: true, ClassLivingStreet: true,
		ClassService: true, ClassCycleway: true, ClassPath: true, ClassFootway: true,
		ClassPedestrian: true, ClassSteps: true, ClassTrack: true,
	},
}

// modeAccessKey is the mode-specific access tag checked after `access`.
var modeAccessKey = map[Mode]string{
	ModeCar:  "motor_vehicle",
	ModeBike: "bicycle",
	ModeWalk: "foot",
}

// isAccessible returns true if the way can be used by the given mode.
func isAccessible(tags osm.Tags, mode Mode) bool {
	class := ClassOf(tags.Find("highway"))
	if !modeClasses[mode][class] {
		return false
	}

	// Area highways (plazas) have no linear geometry to route along.
	if tags.Find("area") == "yes" {
		return false
	}

	modeAccess := tags.Find(modeAccessKey[mode])
	if modeAccess == "yes" || modeAccess == "designated" || modeAccess == "permissive" {
		return true
	}
	if modeAccess == "no" || modeAccess == "private" {
		return false
	}

	access := tags.Find("access")
	if access == "no" || access == "private" {
		return false
	}

	return true
}

// onewayFlags returns the (forward, backward) traversal permitted by the
// highway type and the oneway tag. reversible ways are dropped in both
// directions since their direction depends on the time of day.
func onewayFlags(tags osm.Tags) (forward, backward bool) {
	switch tags.Find("oneway") {
	case "yes", "true", "1":
		return true, false
	case "-1", "reverse":
		return false, true
	case "no":
		return true, true
	case "reversible":
		return false, false
	}
	hw := tags.Find("highway")
	implied := hw == "motorway" || hw == "motorway_link" || tags.Find("junction") == "roundabout"
	return true, !implied
}

// modeDirectionFlags applies mode-specific exceptions on top of onewayFlags.
// Pedestrians ignore oneway restrictions; cyclists honour oneway:bicycle=no.
func modeDirectionFlags(tags osm.Tags, mode Mode) (forward, backward bool) {
	switch mode {
	case ModeWalk:
		return true, true
	case ModeBike:
		fwd, bwd := onewayFlags(tags)
		if (fwd || bwd) && tags.Find("oneway:bicycle") == "no" {
			return true, true
		}
		return fwd, bwd
	default:
		return onewayFlags(tags)
	}
}

// parseMaxSpeed reads the maxspeed tag in km/h. Returns 0 when absent or
// not numeric ("signals", "walk", ...). Values in mph are converted.
func parseMaxSpeed(tags osm.Tags) float32 {
	raw := strings.TrimSpace(tags.Find("maxspeed"))
	if raw == "" {
		return 0
	}
	factor := 1.0
	if v, ok := strings.CutSuffix(raw, "mph"); ok {
		raw = strings.TrimSpace(v)
		factor = 1.609344
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return 0
	}
	return float32(v * factor)
}

// parseLanes reads the lanes tag. Returns 0 when absent or malformed.
func parseLanes(tags osm.Tags) uint8 {
	v, err := strconv.Atoi(strings.TrimSpace(tags.Find("lanes")))
	if err != nil || v <= 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
