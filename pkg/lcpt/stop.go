package lcpt

import (
	"errors"
	"math"
)

// ErrNoCutoff is returned when a job needs a cutoff but neither a time nor a
// distance cutoff was configured.
var ErrNoCutoff = errors.New("lcpt: neither time nor distance cutoff set")

// StopCriterion decides whether tree growth ends at a polled node. It is
// evaluated only on the node just taken off the heap, never on candidates.
// Implementations are stateless and may be shared between trees.
type StopCriterion interface {
	Stop(node int32, arrivalTime, cost, distance, departureTime float64) bool
}

// NoStop never stops; the tree covers every reachable node.
type NoStop struct{}

func (NoStop) Stop(int32, float64, float64, float64, float64) bool { return false }

// TimeCutoff stops once |arrival - departure| reaches Max seconds. The
// absolute value lets the same criterion bound backward trees.
type TimeCutoff struct{ Max float64 }

func (c TimeCutoff) Stop(_ int32, arrivalTime, _, _, departureTime float64) bool {
	return math.Abs(arrivalTime-departureTime) >= c.Max
}

// DistanceCutoff stops once the polled node lies Max meters or more away.
type DistanceCutoff struct{ Max float64 }

func (c DistanceCutoff) Stop(_ int32, _, _, distance, _ float64) bool {
	return distance >= c.Max
}

// CombinedCutoff stops when either bound is reached.
type CombinedCutoff struct {
	MaxTime     float64
	MaxDistance float64
}

func (c CombinedCutoff) Stop(_ int32, arrivalTime, _, distance, departureTime float64) bool {
	return math.Abs(arrivalTime-departureTime) >= c.MaxTime || distance >= c.MaxDistance
}

// NewStopCriterion picks the variant matching the cutoffs that are set.
// A cutoff is set when it is finite and positive.
func NewStopCriterion(maxTime, maxDistance float64) StopCriterion {
	t, d := isSet(maxTime), isSet(maxDistance)
	switch {
	case t && d:
		return CombinedCutoff{MaxTime: maxTime, MaxDistance: maxDistance}
	case t:
		return TimeCutoff{Max: maxTime}
	case d:
		return DistanceCutoff{Max: maxDistance}
	default:
		return NoStop{}
	}
}

// RequireCutoff is NewStopCriterion for jobs that must be bounded.
func RequireCutoff(maxTime, maxDistance float64) (StopCriterion, error) {
	if !isSet(maxTime) && !isSet(maxDistance) {
		return nil, ErrNoCutoff
	}
	return NewStopCriterion(maxTime, maxDistance), nil
}

func isSet(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
