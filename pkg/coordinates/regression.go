package coordinates

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Line is a least-squares fit y = Intercept + Slope*x.
type Line struct {
	Intercept float64
	Slope     float64
}

// At evaluates the line at x.
func (l Line) At(x float64) float64 {
	return l.Intercept + l.Slope*x
}

// FitLine fits a straight line through (xs[i], ys[i]).
// Returns false when fewer than two points are given or every x is equal.
func FitLine(xs, ys []float64) (Line, bool) {
	if len(xs) < 2 || len(xs) != len(ys) {
		return Line{}, false
	}
	if stat.Variance(xs, nil) == 0 {
		return Line{}, false
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(alpha) || math.IsNaN(beta) {
		return Line{}, false
	}
	return Line{Intercept: alpha, Slope: beta}, true
}

// Circle is a least-squares circle in a plane.
type Circle struct {
	CenterX float64
	CenterY float64
	Radius  float64
}

// Angle returns the polar angle of (x, y) around the circle center, radians.
func (c Circle) Angle(x, y float64) float64 {
	return math.Atan2(y-c.CenterY, x-c.CenterX)
}

// DistanceFromCenter returns |(x, y) - center|.
func (c Circle) DistanceFromCenter(x, y float64) float64 {
	return math.Hypot(x-c.CenterX, y-c.CenterY)
}

// PointAt returns the point at angle theta and distance r from the center.
func (c Circle) PointAt(theta, r float64) (x, y float64) {
	return c.CenterX + r*math.Cos(theta), c.CenterY + r*math.Sin(theta)
}

// degenerateDeterminant is the relative determinant below which the points
// are treated as collinear.
const degenerateDeterminant = 1e-10

// FitCircle fits a circle through the points with the centered algebraic
// (Kasa) method: after shifting to the centroid the center solves the 2x2
// normal equations
//
//	| Suu Suv | |uc|   1 | Suuu + Suvv |
//	| Suv Svv | |vc| = - | Svvv + Svuu |
//	                   2
//
// Returns false for fewer than three points or a near-singular system
// (collinear or coincident points).
func FitCircle(xs, ys []float64) (Circle, bool) {
	n := len(xs)
	if n < 3 || n != len(ys) {
		return Circle{}, false
	}

	xm := stat.Mean(xs, nil)
	ym := stat.Mean(ys, nil)

	var suu, svv, suv, suuu, svvv, suvv, svuu float64
	for i := range xs {
		u := xs[i] - xm
		v := ys[i] - ym
		suu += u * u
		svv += v * v
		suv += u * v
		suuu += u * u * u
		svvv += v * v * v
		suvv += u * v * v
		svuu += v * u * u
	}

	a := mat.NewDense(2, 2, []float64{suu, suv, suv, svv})
	det := mat.Det(a)
	if suu == 0 || svv == 0 || math.Abs(det) <= degenerateDeterminant*suu*svv {
		return Circle{}, false
	}

	b := mat.NewVecDense(2, []float64{0.5 * (suuu + suvv), 0.5 * (svvv + svuu)})
	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		return Circle{}, false
	}

	uc, vc := sol.AtVec(0), sol.AtVec(1)
	radius := math.Sqrt(uc*uc + vc*vc + (suu+svv)/float64(n))
	if math.IsNaN(radius) || math.IsInf(radius, 0) {
		return Circle{}, false
	}

	return Circle{CenterX: uc + xm, CenterY: vc + ym, Radius: radius}, true
}
