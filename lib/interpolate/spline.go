/*package interpolate builds 1D interpolants over tabulated data. The only
interpolant currently needed by the output and analysis code is a natural
cubic spline with constant extrapolation outside the tabulated domain, which
is what cross section and equation-of-state tables want.*/
package interpolate

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/interp"
)

// ErrorCode classifies the ways spline construction can fail.
type ErrorCode int

const (
	// InvalidInput means the x and y tables have different lengths.
	InvalidInput ErrorCode = iota
	// InsufficientData means fewer than three points were supplied.
	InsufficientData
	// DuplicateAbscissa means two x values are exactly equal.
	DuplicateAbscissa
)

// Error is a spline construction error. Code allows callers to distinguish
// the failure modes without parsing the message.
type Error struct {
	Code ErrorCode
	msg  string
}

func (e *Error) Error() string { return e.msg }

func newError(code ErrorCode, format string, a ...interface{}) *Error {
	return &Error{ code, fmt.Sprintf(format, a...) }
}

// Spline interpolates a table of (x, y) values with a natural cubic spline.
// Evaluating below the smallest x returns the y at the smallest x, and
// symmetrically above the largest x. A Spline never changes after
// construction, so concurrent calls to Evaluate are safe.
type Spline struct {
	cubic interp.NaturalCubic

	firstX, lastX float64
	firstY, lastY float64

	xs, ys []float64
}

// NewSpline creates a Spline from a table of x and y values. The table does
// not need to be sorted: the pairs are sorted together by x first. x and y
// must have the same length, at least three points are required, and every
// x value must be unique. The input slices are not retained or modified.
func NewSpline(x, y []float64) (*Spline, error) {
	if len(x) != len(y) {
		return nil, newError(InvalidInput,
			"The x table given to NewSpline() has length %d, but the y " +
				"table has length %d. Interpolation needs two tables of " +
				"equal length.", len(x), len(y),
		)
	}
	if len(x) < 3 {
		return nil, newError(InsufficientData,
			"The table given to NewSpline() has %d points, but cubic " +
				"spline interpolation needs at least 3.", len(x),
		)
	}

	// Sort the pairs together through a permutation so y values stay
	// attached to their x values.
	p := make([]int, len(x))
	for i := range p { p[i] = i }
	sort.SliceStable(p, func(i, j int) bool { return x[p[i]] < x[p[j]] })

	sortedX, sortedY := make([]float64, len(x)), make([]float64, len(y))
	for i := range p {
		sortedX[i] = x[p[i]]
		sortedY[i] = y[p[i]]
	}

	for i := 0; i < len(sortedX)-1; i++ {
		if sortedX[i] == sortedX[i+1] {
			return nil, newError(DuplicateAbscissa,
				"Each x value given to NewSpline() must be unique, but " +
					"%g was found twice.", sortedX[i],
			)
		}
	}

	sp := &Spline{
		firstX: sortedX[0], lastX: sortedX[len(sortedX)-1],
		firstY: sortedY[0], lastY: sortedY[len(sortedY)-1],
		xs: sortedX, ys: sortedY,
	}

	if err := sp.cubic.Fit(sortedX, sortedY); err != nil {
		// The checks above rule out everything Fit can object to.
		panic(fmt.Sprintf("Internal error: NaturalCubic.Fit() failed on " +
			"validated input: %v", err))
	}

	return sp, nil
}

// Evaluate returns the interpolated value at xi. Outside the tabulated
// domain the boundary y value is returned unchanged.
func (sp *Spline) Evaluate(xi float64) float64 {
	// constant extrapolation
	if xi < sp.firstX {
		return sp.firstY
	}
	if xi > sp.lastX {
		return sp.lastY
	}
	return sp.cubic.Predict(xi)
}
