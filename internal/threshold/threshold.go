// Package threshold evaluates a cutoff curve against unit economics.
// It projects profit at every cutoff, derives the metrics shown for the
// selected cutoff and searches for the most aggressive cutoff that keeps
// profit within tolerance of baseline.
package threshold

import (
	"math"

	"github.com/500lbbicepcurl/Scalysis-public/internal/curve"
	"github.com/500lbbicepcurl/Scalysis-public/internal/domain"
)

// SearchLimit is the largest cutoff considered by FindPreservingCutoff.
const SearchLimit = 50

// Projection holds the quantities derived from one curve point.
type Projection struct {
	CutoffPercent int `json:"cutoffPercent"`
	Delivered     int `json:"delivered"`
	Returned      int `json:"returned"`

	OrdersToShip       int     `json:"ordersToShip"`
	DeliveryRate       float64 `json:"deliveryRate"`
	RTORatio           float64 `json:"rtoRatio"`
	ProjectedDelivered int     `json:"projectedDelivered"`
	ProjectedReturned  int     `json:"projectedReturned"`

	// ProfitImpact includes acquisition cost over every original order.
	ProfitImpact float64 `json:"profitImpact"`

	// ProfitExclAcquisition is ProfitImpact with acquisition cost added back.
	ProfitExclAcquisition float64 `json:"profitExclAcquisition"`
	ProfitPerShippedOrder float64 `json:"profitPerShippedOrder"`
}

// Project derives the per-cutoff quantities for p.
func Project(p domain.CurvePoint, totalOrders int, econ domain.UnitEconomics) Projection {
	total := float64(totalOrders)
	pr := Projection{
		CutoffPercent: p.CutoffPercent,
		Delivered:     p.Delivered,
		Returned:      p.Returned,
		OrdersToShip:  int(math.Round(total * float64(100-p.CutoffPercent) / 100)),
	}

	if outcomes := p.Delivered + p.Returned; outcomes > 0 {
		pr.DeliveryRate = float64(p.Delivered) / float64(outcomes)
		pr.RTORatio = float64(p.Returned) / float64(outcomes)
	}

	pr.ProjectedDelivered = int(math.Round(float64(pr.OrdersToShip) * pr.DeliveryRate))
	pr.ProjectedReturned = pr.OrdersToShip - pr.ProjectedDelivered

	acquisition := total * econ.CostPerAcquisition
	pr.ProfitImpact = float64(pr.ProjectedDelivered)*econ.ProfitPerDelivery -
		float64(pr.ProjectedReturned)*econ.LossPerReturn -
		acquisition
	pr.ProfitExclAcquisition = pr.ProfitImpact + acquisition

	if pr.OrdersToShip > 0 {
		pr.ProfitPerShippedOrder = pr.ProfitExclAcquisition / float64(pr.OrdersToShip)
	}
	return pr
}

// Recommendation is the cutoff found by the profit-preservation search.
type Recommendation struct {
	Projection

	ProfitImpactPercentChange   float64 `json:"profitImpactPercentChange"`
	ProfitPerOrderPercentChange float64 `json:"profitPerOrderPercentChange"`

	// InventoryFreed is the number of orders not shipped at this cutoff.
	InventoryFreed int     `json:"inventoryFreed"`
	CapitalFreed   float64 `json:"capitalFreed"`
}

// Selection is the result of evaluating a curve at a selected cutoff.
type Selection struct {
	TotalOrders int                  `json:"totalOrders"`
	Economics   domain.UnitEconomics `json:"economics"`

	Baseline Projection `json:"baseline"`
	Selected Projection `json:"selected"`

	ProfitImpactPercentChange   float64 `json:"profitImpactPercentChange"`
	ProfitPerOrderPercentChange float64 `json:"profitPerOrderPercentChange"`

	// ModelAccuracy is the share of excluded orders that were true returns.
	ModelAccuracy     float64 `json:"modelAccuracy"`
	BreakevenAccuracy int     `json:"breakevenAccuracy"`

	BaselineRTORatio float64 `json:"baselineRtoRatio"`
	SelectedRTORatio float64 `json:"selectedRtoRatio"`
	RTODropPercent   Ratio   `json:"rtoDropPercent"`

	FlaggedCount    int     `json:"flaggedCount"`
	ShippingSavings float64 `json:"shippingSavings"`

	VolumeRetentionPercent int     `json:"volumeRetentionPercent"`
	RunningDeliveryPercent float64 `json:"runningDeliveryPercent"`

	// Recommended is nil when no cutoff keeps profit within tolerance.
	Recommended *Recommendation `json:"recommended"`
}

// Evaluate computes the selection for selectedCutoff. It panics if
// selectedCutoff is outside 0..100.
func Evaluate(c curve.Curve, totalOrders int, econ domain.UnitEconomics, selectedCutoff int) Selection {
	base := Project(c.Baseline(), totalOrders, econ)
	sel := Project(c.At(selectedCutoff), totalOrders, econ)

	s := Selection{
		TotalOrders:                 totalOrders,
		Economics:                   econ,
		Baseline:                    base,
		Selected:                    sel,
		ProfitImpactPercentChange:   PercentChange(sel.ProfitImpact, base.ProfitImpact),
		ProfitPerOrderPercentChange: PercentChange(sel.ProfitPerShippedOrder, base.ProfitPerShippedOrder),
		ModelAccuracy:               ModelAccuracy(c.Baseline(), c.At(selectedCutoff)),
		BreakevenAccuracy:           BreakevenAccuracy(econ),
		BaselineRTORatio:            base.RTORatio,
		SelectedRTORatio:            sel.RTORatio,
		RTODropPercent:              rtoDrop(base.RTORatio, sel.RTORatio),
		FlaggedCount:                FlaggedCount(totalOrders, selectedCutoff),
		VolumeRetentionPercent:      100 - selectedCutoff,
		RunningDeliveryPercent:      (1 - base.RTORatio) * 100,
	}
	s.ShippingSavings = float64(s.FlaggedCount) * econ.ShippingCostPerOrder

	if rec, ok := FindPreservingCutoff(c, totalOrders, econ); ok {
		s.Recommended = &rec
	}
	return s
}

// FindPreservingCutoff returns the largest cutoff in 0..SearchLimit whose
// profit excluding acquisition cost stays within the tolerance band of
// baseline. ok is false when no cutoff qualifies.
func FindPreservingCutoff(c curve.Curve, totalOrders int, econ domain.UnitEconomics) (Recommendation, bool) {
	return Search(c, totalOrders, econ, SearchLimit)
}

// Search is FindPreservingCutoff with an explicit upper cutoff.
func Search(c curve.Curve, totalOrders int, econ domain.UnitEconomics, limit int) (Recommendation, bool) {
	qualifying := QualifyingCutoffs(c, totalOrders, econ, limit)
	if len(qualifying) == 0 {
		return Recommendation{}, false
	}

	found := qualifying[len(qualifying)-1]
	base := Project(c.Baseline(), totalOrders, econ)
	best := Project(c.At(found), totalOrders, econ)
	inventory := InventoryFreed(totalOrders, found)
	return Recommendation{
		Projection:                  best,
		ProfitImpactPercentChange:   PercentChange(best.ProfitImpact, base.ProfitImpact),
		ProfitPerOrderPercentChange: PercentChange(best.ProfitPerShippedOrder, base.ProfitPerShippedOrder),
		InventoryFreed:              inventory,
		CapitalFreed:                float64(inventory) * econ.ShippingCostPerOrder,
	}, true
}

// QualifyingCutoffs returns, in increasing order, every cutoff in 0..limit
// whose |profit excluding acquisition| lies within the tolerance band around
// |baseline|. Profit is not monotonic in cutoff, so every candidate is
// checked.
func QualifyingCutoffs(c curve.Curve, totalOrders int, econ domain.UnitEconomics, limit int) []int {
	if limit > curve.Points-1 {
		limit = curve.Points - 1
	}

	base := Project(c.Baseline(), totalOrders, econ)
	ref := math.Abs(base.ProfitExclAcquisition)
	lower := ref * (1 - econ.TolerancePercent/100)
	upper := ref * (1 + econ.TolerancePercent/100)

	var out []int
	for cutoff := 0; cutoff <= limit; cutoff++ {
		pr := Project(c.At(cutoff), totalOrders, econ)
		if v := math.Abs(pr.ProfitExclAcquisition); v >= lower && v <= upper {
			out = append(out, cutoff)
		}
	}
	return out
}

// PercentChange returns (x-base)/|base|*100, or 0 when base is 0.
func PercentChange(x, base float64) float64 {
	if base == 0 {
		return 0
	}
	return (x - base) / math.Abs(base) * 100
}

// ModelAccuracy returns the percentage of orders removed between base and
// sel that were returns, or 0 when nothing was removed.
func ModelAccuracy(base, sel domain.CurvePoint) float64 {
	deliveredRemoved := base.Delivered - sel.Delivered
	returnedRemoved := base.Returned - sel.Returned
	removed := deliveredRemoved + returnedRemoved
	if removed == 0 {
		return 0
	}
	return 100 * float64(returnedRemoved) / float64(removed)
}

// BreakevenAccuracy is the minimum model accuracy at which flagging does not
// lose money.
func BreakevenAccuracy(econ domain.UnitEconomics) int {
	sum := econ.ProfitPerDelivery + econ.LossPerReturn
	if sum <= 0 {
		return 0
	}
	return int(math.Round(econ.ProfitPerDelivery / sum * 100))
}

// FlaggedCount is the number of orders excluded at cutoff.
func FlaggedCount(totalOrders, cutoff int) int {
	return totalOrders * cutoff / 100
}

// InventoryFreed is the number of orders held back at cutoff.
func InventoryFreed(totalOrders, cutoff int) int {
	return int(math.Floor(float64(totalOrders) * (float64(cutoff) / 100)))
}

func rtoDrop(base, sel float64) Ratio {
	if base == 0 {
		return Undefined()
	}
	return Value((base - sel) / base * 100)
}
