package threshold

import (
	"math"
	"strconv"

	"github.com/500lbbicepcurl/Scalysis-public/internal/curve"
	"github.com/500lbbicepcurl/Scalysis-public/internal/domain"
)

// AuditRow describes what the ranking removed at one cutoff.
type AuditRow struct {
	CutoffPercent int     `json:"cutoffPercent"`
	Delivered     int     `json:"delivered"`
	Returned      int     `json:"returned"`
	DeliveryRate  float64 `json:"deliveryRatePercent"`

	DeliveredRemoved int `json:"deliveredRemoved"`
	ReturnedRemoved  int `json:"returnedRemoved"`

	// RemovalRatio is delivered:returned among removed orders, e.g. "1:2.5".
	RemovalRatio string  `json:"removalRatio"`
	Accuracy     float64 `json:"accuracyPercent"`
}

// Audit returns one row per curve point.
func Audit(c curve.Curve) []AuditRow {
	base := c.Baseline()
	rows := make([]AuditRow, 0, len(c))
	for _, p := range c {
		row := AuditRow{
			CutoffPercent:    p.CutoffPercent,
			Delivered:        p.Delivered,
			Returned:         p.Returned,
			DeliveredRemoved: base.Delivered - p.Delivered,
			ReturnedRemoved:  base.Returned - p.Returned,
			Accuracy:         ModelAccuracy(base, p),
		}
		if outcomes := p.Delivered + p.Returned; outcomes > 0 {
			row.DeliveryRate = 100 * float64(p.Delivered) / float64(outcomes)
		}
		row.RemovalRatio = removalRatio(row.DeliveredRemoved, row.ReturnedRemoved)
		rows = append(rows, row)
	}
	return rows
}

func removalRatio(deliveredRemoved, returnedRemoved int) string {
	switch {
	case deliveredRemoved == 0 && returnedRemoved == 0:
		return "0:0"
	case deliveredRemoved == 0:
		return "0:" + strconv.Itoa(returnedRemoved)
	}
	rhs := math.Round(float64(returnedRemoved)/float64(deliveredRemoved)*10) / 10
	return "1:" + strconv.FormatFloat(rhs, 'f', -1, 64)
}

// SeriesPoint is one point of the profit chart.
type SeriesPoint struct {
	CutoffPercent         int     `json:"cutoffPercent"`
	ProfitImpact          float64 `json:"profitImpact"`
	ProfitExclAcquisition float64 `json:"profitExclAcquisition"`

	// ProfitPercent is profit excluding acquisition relative to baseline,
	// baseline being 100. Zero when baseline is zero.
	ProfitPercent float64 `json:"profitPercent"`
}

// ProfitSeries projects every curve point for charting.
func ProfitSeries(c curve.Curve, totalOrders int, econ domain.UnitEconomics) []SeriesPoint {
	base := Project(c.Baseline(), totalOrders, econ)
	out := make([]SeriesPoint, 0, len(c))
	for _, p := range c {
		pr := Project(p, totalOrders, econ)
		sp := SeriesPoint{
			CutoffPercent:         pr.CutoffPercent,
			ProfitImpact:          pr.ProfitImpact,
			ProfitExclAcquisition: pr.ProfitExclAcquisition,
		}
		if base.ProfitExclAcquisition != 0 {
			sp.ProfitPercent = pr.ProfitExclAcquisition / base.ProfitExclAcquisition * 100
		}
		out = append(out, sp)
	}
	return out
}

// FlagCandidates returns the ids of the first flaggedCount displayed orders.
// displayed must be sorted ascending by risk score.
func FlagCandidates(displayed []domain.OrderRecord, flaggedCount int) []string {
	if flaggedCount <= 0 {
		return []string{}
	}
	if flaggedCount > len(displayed) {
		flaggedCount = len(displayed)
	}
	ids := make([]string, flaggedCount)
	for i := 0; i < flaggedCount; i++ {
		ids[i] = displayed[i].OrderID
	}
	return ids
}
