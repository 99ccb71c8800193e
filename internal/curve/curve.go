// Package curve builds the cutoff curve: for every integer cutoff 0..100, the
// delivered and returned counts among orders that remain after the
// lowest-scoring cutoff% are excluded.
package curve

import (
	"fmt"
	"math"

	"github.com/500lbbicepcurl/Scalysis-public/internal/domain"
)

// Points is the number of points in a curve, one per cutoff 0..100.
const Points = 101

// Curve is the ordered sequence of curve points; index equals cutoff.
type Curve []domain.CurvePoint

// RemoveCount returns how many of n orders are excluded at cutoff.
func RemoveCount(cutoff, n int) int {
	return int(math.Floor(float64(cutoff) / 100 * float64(n)))
}

// Build computes the curve for orders, which must already be sorted
// ascending by risk score. Orders are never re-sorted, so equal scores keep
// the caller's order.
func Build(orders []domain.OrderRecord) Curve {
	n := len(orders)

	// Suffix counts: delivered[i] is the number of delivered orders in
	// orders[i:]. Index n is the empty suffix.
	delivered := make([]int, n+1)
	returned := make([]int, n+1)
	for i := n - 1; i >= 0; i-- {
		delivered[i] = delivered[i+1]
		returned[i] = returned[i+1]
		if orders[i].IsDelivered() {
			delivered[i]++
		}
		if orders[i].IsReturned() {
			returned[i]++
		}
	}

	c := make(Curve, Points)
	for cutoff := 0; cutoff < Points; cutoff++ {
		remove := RemoveCount(cutoff, n)
		c[cutoff] = domain.CurvePoint{
			CutoffPercent: cutoff,
			Delivered:     delivered[remove],
			Returned:      returned[remove],
		}
	}
	return c
}

// At returns the point for cutoff. It panics if cutoff is outside 0..100 or
// the curve is not fully built.
func (c Curve) At(cutoff int) domain.CurvePoint {
	if cutoff < 0 || cutoff >= Points || cutoff >= len(c) {
		panic(fmt.Sprintf("curve: cutoff %d out of range (len %d)", cutoff, len(c)))
	}
	return c[cutoff]
}

// Baseline returns the zero-cutoff point.
func (c Curve) Baseline() domain.CurvePoint {
	return c.At(0)
}

// Valid reports whether c has exactly one point per cutoff in order.
func (c Curve) Valid() bool {
	if len(c) != Points {
		return false
	}
	for i, p := range c {
		if p.CutoffPercent != i {
			return false
		}
	}
	return true
}
