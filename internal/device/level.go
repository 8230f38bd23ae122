package device

import (
	"fmt"
	"math"
	"strings"
)

// Level is one fixed bias value. Value is what the simulator reports; Label
// is how the workbook headers spell it. They differ for a few families
// ("-2.48" in the workbook, -2.475 from the simulator; "-0" versus 0).
type Level struct {
	Value float64
	Label string
}

// LevelTolerance is the slack used when matching a simulated bias value to a level.
const LevelTolerance = 1e-6

// Matches reports whether v is this level's value.
func (l Level) Matches(v float64) bool {
	return math.Abs(l.Value-v) <= LevelTolerance
}

// levels zips values and labels.
func levels(values []float64, labels ...string) []Level {
	if len(values) != len(labels) {
		panic(fmt.Sprintf("device: %d level values but %d labels", len(values), len(labels)))
	}
	out := make([]Level, len(values))
	for i := range values {
		out[i] = Level{Value: values[i], Label: labels[i]}
	}
	return out
}

// IndexOf returns the position of the level matching v, or -1.
func IndexOf(set []Level, v float64) int {
	for i, l := range set {
		if l.Matches(v) {
			return i
		}
	}
	return -1
}

// Range is a simulator sweep range "start stop step". The strings are kept
// verbatim because some ranges are spelled "-0 -3.3 -0.05".
type Range struct {
	Start, Stop, Step string
}

// ParseRange splits "start stop step".
func ParseRange(s string) (Range, error) {
	f := strings.Fields(s)
	if len(f) != 3 {
		return Range{}, fmt.Errorf("range %q: want three fields, got %d", s, len(f))
	}
	return Range{Start: f[0], Stop: f[1], Step: f[2]}, nil
}

func mustRange(s string) Range {
	r, err := ParseRange(s)
	if err != nil {
		panic(err)
	}
	return r
}

// IsZero reports whether the range is unset.
func (r Range) IsZero() bool { return r == Range{} }

func (r Range) String() string {
	if r.IsZero() {
		return ""
	}
	return r.Start + " " + r.Stop + " " + r.Step
}
