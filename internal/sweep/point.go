// Package sweep dispatches deck rendering and simulation for every geometry
// point of a device to a bounded worker pool.
package sweep

import (
	"fmt"

	"mosregress/internal/device"
	"mosregress/internal/sheet"
	"mosregress/internal/table"
)

// Point is one (width, length, temperature) configuration.
type Point struct {
	Width   float64
	Length  float64
	Temp    int
	Fingers int
}

// Key identifies a point independent of dispatch or completion order.
type Key struct {
	Width, Length float64
	Temp          int
}

// Key returns the point's identity.
func (p Point) Key() Key { return Key{Width: p.Width, Length: p.Length, Temp: p.Temp} }

func (p Point) String() string {
	return fmt.Sprintf("W=%s L=%s T=%d", table.FormatFloat(p.Width), table.FormatFloat(p.Length), p.Temp)
}

// AssignTemperatures buckets n rows by position: the first third runs at
// 25, the second at -40, the third at 125, and the remainder of an uneven
// split stays at 25.
func AssignTemperatures(n int) []int {
	temps := make([]int, n)
	third := n / 3
	for i := range temps {
		switch {
		case i >= third && i < 2*third:
			temps[i] = -40
		case i >= 2*third && i < 3*third:
			temps[i] = 125
		default:
			temps[i] = 25
		}
	}
	return temps
}

// Points turns geometry rows into the suite's points.
func Points(geom []sheet.Geometry, s device.Suite) []Point {
	var temps []int
	if s.BucketTemps {
		temps = AssignTemperatures(len(geom))
	}
	pts := make([]Point, len(geom))
	for i, g := range geom {
		p := Point{Width: g.Width, Length: g.Length, Temp: s.FixedTemp, Fingers: 1}
		if temps != nil {
			p.Temp = temps[i]
		}
		if s.Fingers && i == 0 {
			p.Fingers = 20
		}
		pts[i] = p
	}
	return pts
}

// NetlistName is the deck file name of p under naming n.
func NetlistName(n device.Naming, p Point) string {
	w, l := table.FormatFloat(p.Width), table.FormatFloat(p.Length)
	if n == device.NamingWL {
		return fmt.Sprintf("netlist_w%s_l%s.spice", w, l)
	}
	return fmt.Sprintf("netlist_w%s_l%s_t%d.spice", w, l, p.Temp)
}

// ResultName is the simulator result file name of p under naming n.
func ResultName(n device.Naming, p Point) string {
	w, l := table.FormatFloat(p.Width), table.FormatFloat(p.Length)
	switch n {
	case device.NamingTempLW:
		return fmt.Sprintf("T%d_simulated_L%s_W%s.csv", p.Temp, l, w)
	case device.NamingTempWL:
		return fmt.Sprintf("T%d_simulated_W%s_L%s.csv", p.Temp, w, l)
	default:
		return fmt.Sprintf("simulated_W%s_L%s.csv", w, l)
	}
}
