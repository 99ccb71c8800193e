package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/500lbbicepcurl/Scalysis-public/internal/domain"
	"github.com/500lbbicepcurl/Scalysis-public/internal/simulation"
)

// exampleCSV holds ten shipped orders, the four lowest-scored returned, and
// ten unshipped orders dated 2025-03-01..10.
func exampleCSV() string {
	var b strings.Builder
	b.WriteString("Order_ID,amount,risk_score,delivery_status,awb,order_date,training_data\n")
	for i := 0; i < 10; i++ {
		status := "Delivered"
		if i < 4 {
			status = "RTO"
		}
		fmt.Fprintf(&b, "s%d,999,%.2f,%s,AWB%d,,false\n", i, float64(i)/10, status, i)
	}
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "u%d,500,%.2f,,,2025-03-%02d,false\n", i, float64(i)/10+0.05, i+1)
	}
	// Training rows never reach the curve.
	b.WriteString("t0,100,0.01,RTO,AWBT,,true\n")
	return b.String()
}

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestReadOrders(t *testing.T) {
	orders, err := readOrders(strings.NewReader(exampleCSV()))
	require.NoError(t, err)
	require.Len(t, orders, 21)

	first := orders[0]
	assert.Equal(t, "s0", first.OrderID)
	assert.Equal(t, "999", first.Amount.String())
	require.NotNil(t, first.RiskScore)
	assert.InDelta(t, 0, *first.RiskScore, 1e-9)
	assert.True(t, first.IsReturned())
	assert.True(t, first.IsShipped())
	assert.Nil(t, first.OrderDate)

	unshipped := orders[10]
	require.NotNil(t, unshipped.OrderDate)
	assert.Equal(t, "2025-02-28T18:30:00Z", unshipped.OrderDate.Format("2006-01-02T15:04:05Z07:00"))
	assert.False(t, unshipped.IsShipped())

	assert.True(t, orders[20].TrainingData)
}

func TestReadOrdersErrors(t *testing.T) {
	cases := map[string]string{
		"no order_id column": "id,amount\n1,10\n",
		"blank order_id":     "order_id,amount\n,10\n",
		"bad amount":         "order_id,amount\n1,ten\n",
		"bad score":          "order_id,risk_score\n1,high\n",
		"bad date":           "order_id,order_date\n1,03/01/2025\n",
		"bad training flag":  "order_id,training_data\n1,maybe\n",
		"empty":              "",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := readOrders(strings.NewReader(body))
			assert.Error(t, err)
		})
	}
}

func TestSessionSimulate(t *testing.T) {
	orders, err := readOrders(strings.NewReader(exampleCSV()))
	require.NoError(t, err)

	ctx := context.Background()
	s, err := openSession(ctx, orders, domain.SimulationConfig{})
	require.NoError(t, err)
	defer s.Close()

	cutoff := 40
	econ := domain.UnitEconomics{ProfitPerDelivery: 7, LossPerReturn: 1, ShippingCostPerOrder: 80, TolerancePercent: 5}
	res, err := s.sim.Simulate(ctx, csvStoreID, simulation.Params{Cutoff: &cutoff, Economics: &econ})
	require.NoError(t, err)

	assert.Equal(t, 10, res.CurveOrders)
	assert.Equal(t, 10, res.DisplayedOrders)
	assert.Equal(t, 4, res.Selection.FlaggedCount)
	require.NotNil(t, res.Selection.Recommended)
	assert.Equal(t, 15, res.Selection.Recommended.CutoffPercent)
	assert.Equal(t, []string{"u0", "u1", "u2", "u3"}, res.Flaggable)

	var buf bytes.Buffer
	require.NoError(t, printSimulation(&buf, res))
	assert.Contains(t, buf.String(), "Recommended cutoff")
	assert.Contains(t, buf.String(), "15%")
}

func TestCommands(t *testing.T) {
	path := writeCSV(t, exampleCSV())

	t.Run("SimulateJSON", func(t *testing.T) {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs([]string{
			"simulate", "--csv", path, "--format", "json", "--cutoff", "40",
			"--profit-per-delivery", "7", "--loss-per-return", "1",
			"--cost-per-acquisition", "0", "--shipping-cost", "80", "--tolerance", "5",
		})
		require.NoError(t, rootCmd.Execute())

		var res simulation.Result
		require.NoError(t, json.Unmarshal(out.Bytes(), &res))
		assert.Equal(t, 4, res.Selection.FlaggedCount)
		require.NotNil(t, res.Selection.Recommended)
		assert.Equal(t, 15, res.Selection.Recommended.CutoffPercent)
	})

	t.Run("AuditText", func(t *testing.T) {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs([]string{"audit", "--csv", path, "--format", "text", "--step", "50"})
		require.NoError(t, rootCmd.Execute())

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		// Header plus cutoffs 0, 50 and 100.
		assert.Len(t, lines, 4)
		assert.Contains(t, lines[2], "1:4")
	})

	t.Run("MissingFile", func(t *testing.T) {
		rootCmd.SetArgs([]string{"audit", "--csv", filepath.Join(t.TempDir(), "none.csv")})
		assert.Error(t, rootCmd.Execute())
	})
}
