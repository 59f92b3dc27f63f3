package sweep

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Point is one (pH, potential) grid entry together with the scalar settings
// its solver run uses. Declaration order matters: coverage propagation walks
// points strictly in sequence.
type Point struct {
	PH        float64 `json:"pH"`
	Potential float64 `json:"potential"`
	Time      float64 `json:"time"`
	AbsTol    float64 `json:"abstol"`
	RelTol    float64 `json:"reltol"`
}

// Grid enumerates sweep points with pH as the outer axis and potential as
// the inner axis.
type Grid struct {
	PHs        []float64
	Potentials []float64
	Time       float64
	AbsTol     float64
	RelTol     float64

	// OrderByMagnitude sorts each pH row's potentials by |V| so a sweep
	// starts from the rest potential and walks outward, matching the
	// declared propagation order.
	OrderByMagnitude bool
}

// Points returns the full enumeration in deterministic order
func (g Grid) Points() []Point {
	potentials := make([]float64, len(g.Potentials))
	copy(potentials, g.Potentials)
	if g.OrderByMagnitude {
		sort.SliceStable(potentials, func(i, j int) bool {
			return math.Abs(potentials[i]) < math.Abs(potentials[j])
		})
	}

	points := make([]Point, 0, len(g.PHs)*len(potentials))
	for _, ph := range g.PHs {
		for _, v := range potentials {
			points = append(points, Point{
				PH:        ph,
				Potential: v,
				Time:      g.Time,
				AbsTol:    g.AbsTol,
				RelTol:    g.RelTol,
			})
		}
	}
	return points
}

// Size returns the number of grid points
func (g Grid) Size() int {
	return len(g.PHs) * len(g.Potentials)
}

// ContinuousSweep discretizes a potential range swept at rate (V/s) into
// steps of stepV volts. Each step's simulation time is the time the ramp
// spends inside it, so the discretized grid is equivalent to the continuous
// sweep from the controller's perspective.
func ContinuousSweep(vStart, vEnd, rate, stepV float64) (potentials []float64, stepTime float64) {
	if rate <= 0 || stepV <= 0 {
		return nil, 0
	}
	span := math.Abs(vEnd - vStart)
	if span == 0 {
		return []float64{vStart}, stepV / rate
	}

	n := int(math.Round(span/stepV)) + 1
	if n < 2 {
		n = 2
	}
	potentials = floats.Span(make([]float64, n), vStart, vEnd)
	stepTime = span / float64(n-1) / rate
	return potentials, stepTime
}
