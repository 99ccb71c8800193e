package threshold

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/500lbbicepcurl/Scalysis-public/internal/curve"
)

func TestAudit(t *testing.T) {
	rows := Audit(curve.Build(tenOrders()))
	require.Len(t, rows, curve.Points)

	tests := []struct {
		cutoff   int
		ratio    string
		accuracy float64
		rate     float64
	}{
		{0, "0:0", 0, 60},
		{10, "0:1", 100, 100 * 6.0 / 9},
		{50, "1:4", 80, 100},
		{100, "1:0.7", 40, 0},
	}

	for _, tt := range tests {
		row := rows[tt.cutoff]
		assert.Equal(t, tt.cutoff, row.CutoffPercent)
		assert.Equal(t, tt.ratio, row.RemovalRatio, "cutoff %d", tt.cutoff)
		assert.InDelta(t, tt.accuracy, row.Accuracy, 1e-9, "cutoff %d", tt.cutoff)
		assert.InDelta(t, tt.rate, row.DeliveryRate, 1e-9, "cutoff %d", tt.cutoff)
	}

	assert.Equal(t, 1, rows[50].DeliveredRemoved)
	assert.Equal(t, 4, rows[50].ReturnedRemoved)
}

func TestRemovalRatio(t *testing.T) {
	assert.Equal(t, "0:0", removalRatio(0, 0))
	assert.Equal(t, "0:3", removalRatio(0, 3))
	assert.Equal(t, "1:0", removalRatio(2, 0))
	assert.Equal(t, "1:2.5", removalRatio(2, 5))
	assert.Equal(t, "1:0.3", removalRatio(3, 1))
}

func TestProfitSeries(t *testing.T) {
	series := ProfitSeries(curve.Build(tenOrders()), 10, exampleEconomics(5))
	require.Len(t, series, curve.Points)

	assert.InDelta(t, 100, series[0].ProfitPercent, 1e-9)
	assert.InDelta(t, 42, series[40].ProfitExclAcquisition, 1e-9)
	assert.InDelta(t, 42.0/38*100, series[40].ProfitPercent, 1e-9)
	assert.Equal(t, 0.0, series[100].ProfitExclAcquisition)

	empty := ProfitSeries(curve.Build(nil), 0, exampleEconomics(5))
	for _, p := range empty {
		assert.Equal(t, 0.0, p.ProfitPercent)
	}
}

func TestFlagCandidates(t *testing.T) {
	displayed := tenOrders()

	t.Run("LowestScoresFirst", func(t *testing.T) {
		ids := FlagCandidates(displayed, 3)
		assert.Equal(t, []string{"order-0", "order-1", "order-2"}, ids)
	})

	t.Run("ClampedToDisplayed", func(t *testing.T) {
		assert.Len(t, FlagCandidates(displayed, 50), len(displayed))
	})

	t.Run("None", func(t *testing.T) {
		assert.Empty(t, FlagCandidates(displayed, 0))
		assert.NotNil(t, FlagCandidates(nil, 5))
	})
}
