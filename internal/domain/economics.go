package domain

// UnitEconomics are the merchant-supplied parameters of a simulation.
// Every value is a plain non-negative number.
type UnitEconomics struct {
	ProfitPerDelivery float64 `json:"profitPerDelivery" yaml:"profit_per_delivery" validate:"gte=0"`
	LossPerReturn     float64 `json:"lossPerReturn" yaml:"loss_per_return" validate:"gte=0"`

	// CostPerAcquisition applies to every order in the original set,
	// not only the shipped ones.
	CostPerAcquisition   float64 `json:"costPerAcquisition" yaml:"cost_per_acquisition" validate:"gte=0"`
	ShippingCostPerOrder float64 `json:"shippingCostPerOrder" yaml:"shipping_cost_per_order" validate:"gte=0"`

	// TolerancePercent is the profit-preservation band around baseline.
	TolerancePercent float64 `json:"tolerancePercent" yaml:"tolerance_percent" validate:"gte=0"`
}

// DefaultUnitEconomics returns the economics shown to a new merchant.
func DefaultUnitEconomics() UnitEconomics {
	return UnitEconomics{
		ProfitPerDelivery:    440,
		LossPerReturn:        100,
		CostPerAcquisition:   300,
		ShippingCostPerOrder: 80,
		TolerancePercent:     5,
	}
}

// DefaultCutoffPercent is the cutoff selected when the caller gives none.
const DefaultCutoffPercent = 4

// CurvePoint is the outcome of excluding the lowest-scoring CutoffPercent%
// of orders: how many of the retained orders were delivered or returned.
type CurvePoint struct {
	CutoffPercent int `json:"cutoffPercent"`
	Delivered     int `json:"delivered"`
	Returned      int `json:"returned"`
}
