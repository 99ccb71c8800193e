package simulation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/500lbbicepcurl/Scalysis-public/internal/cache"
	"github.com/500lbbicepcurl/Scalysis-public/internal/daterange"
	"github.com/500lbbicepcurl/Scalysis-public/internal/domain"
	"github.com/500lbbicepcurl/Scalysis-public/internal/repository"
	"github.com/500lbbicepcurl/Scalysis-public/internal/segment"
)

const storeID = "acme.myshopify.com"

func exampleEconomics(tolerance float64) *domain.UnitEconomics {
	return &domain.UnitEconomics{
		ProfitPerDelivery:    7,
		LossPerReturn:        1,
		ShippingCostPerOrder: 80,
		TolerancePercent:     tolerance,
	}
}

type fixture struct {
	svc   *Service
	repo  domain.Repository
	cache *cache.LRUCache
}

// newFixture seeds ten shipped orders (the four lowest-scored returned) and
// ten unshipped orders dated 2025-03-01..10 IST with alternating amounts.
func newFixture(t *testing.T, status string, cfg domain.SimulationConfig) *fixture {
	t.Helper()
	ctx := context.Background()

	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	require.NoError(t, repo.SaveStore(ctx, &domain.Store{ID: storeID, ModelStatus: status}))

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		score := float64(i) / 10
		status := "Delivered"
		if i < 4 {
			status = "RTO"
		}
		require.NoError(t, repo.SaveOrder(ctx, storeID, &domain.OrderRecord{
			OrderID:        fmt.Sprintf("s%d", i),
			Amount:         decimal.NewFromInt(999),
			RiskScore:      &score,
			DeliveryStatus: status,
			AWB:            fmt.Sprintf("AWB%d", i),
			CreatedAt:      created,
		}))
	}
	for i := 0; i < 10; i++ {
		score := float64(i)/10 + 0.05
		amount := int64(500)
		if i%2 == 1 {
			amount = 1500
		}
		date := time.Date(2025, 3, 1+i, 12, 0, 0, 0, daterange.IST)
		require.NoError(t, repo.SaveOrder(ctx, storeID, &domain.OrderRecord{
			OrderID:   fmt.Sprintf("u%d", i),
			Amount:    decimal.NewFromInt(amount),
			RiskScore: &score,
			OrderDate: &date,
			CreatedAt: created,
		}))
	}

	lru := cache.NewLRUCache(100)
	segments, err := segment.NewEngine(4)
	require.NoError(t, err)

	return &fixture{
		svc:   NewService(repo, lru, segments, cfg, time.Minute),
		repo:  repo,
		cache: lru,
	}
}

func intPtr(v int) *int { return &v }

func TestSimulate(t *testing.T) {
	f := newFixture(t, domain.ModelStatusReady, domain.SimulationConfig{})
	ctx := context.Background()

	res, err := f.svc.Simulate(ctx, storeID, Params{
		Cutoff:    intPtr(40),
		Economics: exampleEconomics(5),
	})
	require.NoError(t, err)

	assert.Equal(t, 10, res.CurveOrders)
	assert.Equal(t, 10, res.DisplayedOrders)

	sel := res.Selection
	assert.Equal(t, 10, sel.TotalOrders)
	assert.InDelta(t, 38, sel.Baseline.ProfitImpact, 1e-9)
	assert.InDelta(t, 42, sel.Selected.ProfitImpact, 1e-9)
	assert.Equal(t, 4, sel.FlaggedCount)

	require.NotNil(t, sel.Recommended)
	assert.Equal(t, 15, sel.Recommended.CutoffPercent)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 10, 11, 12, 13, 14, 15}, res.QualifyingCutoffs)

	assert.Equal(t, []string{"u0", "u1", "u2", "u3"}, res.Flaggable)
	assert.Len(t, res.Series, 101)
	assert.False(t, res.CurveBuiltAt.IsZero())
}

func TestSimulateDefaults(t *testing.T) {
	f := newFixture(t, domain.ModelStatusReady, domain.SimulationConfig{DefaultCutoff: 10})
	ctx := context.Background()

	res, err := f.svc.Simulate(ctx, storeID, Params{})
	require.NoError(t, err)
	assert.Equal(t, 10, res.Selection.Selected.CutoffPercent)
	assert.Equal(t, domain.DefaultUnitEconomics(), res.Selection.Economics)

	saved := exampleEconomics(0)
	require.NoError(t, f.repo.SaveStore(ctx, &domain.Store{ID: storeID, ModelStatus: domain.ModelStatusReady, Economics: saved}))

	res, err = f.svc.Simulate(ctx, storeID, Params{})
	require.NoError(t, err)
	assert.Equal(t, *saved, res.Selection.Economics)
}

func TestSimulateSearchLimit(t *testing.T) {
	f := newFixture(t, domain.ModelStatusReady, domain.SimulationConfig{SearchLimit: 10})

	res, err := f.svc.Simulate(context.Background(), storeID, Params{Cutoff: intPtr(0), Economics: exampleEconomics(5)})
	require.NoError(t, err)
	require.NotNil(t, res.Selection.Recommended)
	assert.Equal(t, 10, res.Selection.Recommended.CutoffPercent)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 10}, res.QualifyingCutoffs)
}

func TestSimulateNotReady(t *testing.T) {
	f := newFixture(t, domain.ModelStatusTraining, domain.SimulationConfig{})

	_, err := f.svc.Simulate(context.Background(), storeID, Params{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelNotReady))

	var notReady *NotReadyError
	require.ErrorAs(t, err, &notReady)
	assert.Equal(t, domain.ModelStatusTraining, notReady.Status)

	_, err = f.svc.Audit(context.Background(), storeID)
	assert.ErrorIs(t, err, ErrModelNotReady)
}

func TestSimulateUnknownStore(t *testing.T) {
	f := newFixture(t, domain.ModelStatusReady, domain.SimulationConfig{})

	_, err := f.svc.Simulate(context.Background(), "missing.myshopify.com", Params{})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSimulateInvalidCutoff(t *testing.T) {
	f := newFixture(t, domain.ModelStatusReady, domain.SimulationConfig{})

	_, err := f.svc.Simulate(context.Background(), storeID, Params{Cutoff: intPtr(101)})
	assert.ErrorIs(t, err, ErrInvalidCutoff)

	_, err = f.svc.Simulate(context.Background(), storeID, Params{Cutoff: intPtr(-1)})
	assert.ErrorIs(t, err, ErrInvalidCutoff)
}

func TestSimulateDateRange(t *testing.T) {
	f := newFixture(t, domain.ModelStatusReady, domain.SimulationConfig{})
	ctx := context.Background()

	res, err := f.svc.Simulate(ctx, storeID, Params{
		Cutoff: intPtr(40),
		From:   "2025-03-01",
		To:     "2025-03-05",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, res.DisplayedOrders)
	assert.Equal(t, 10, res.CurveOrders)
	assert.Equal(t, []string{"u0", "u1"}, res.Flaggable)

	_, err = f.svc.Simulate(ctx, storeID, Params{Preset: "fortnight"})
	assert.ErrorIs(t, err, daterange.ErrUnknownPreset)
}

func TestSimulatePresetUsesClock(t *testing.T) {
	f := newFixture(t, domain.ModelStatusReady, domain.SimulationConfig{})
	f.svc.now = func() time.Time { return time.Date(2025, 3, 4, 9, 0, 0, 0, daterange.IST) }

	res, err := f.svc.Simulate(context.Background(), storeID, Params{Preset: "today"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.DisplayedOrders)
}

func TestSimulateSegment(t *testing.T) {
	f := newFixture(t, domain.ModelStatusReady, domain.SimulationConfig{})
	ctx := context.Background()

	res, err := f.svc.Simulate(ctx, storeID, Params{Cutoff: intPtr(20), Segment: "amount > 1000.0"})
	require.NoError(t, err)
	assert.Equal(t, 5, res.DisplayedOrders)
	assert.Equal(t, []string{"u1"}, res.Flaggable)

	_, err = f.svc.Simulate(ctx, storeID, Params{Segment: "amount +"})
	assert.ErrorIs(t, err, segment.ErrInvalidExpression)
}

func TestCurveCaching(t *testing.T) {
	f := newFixture(t, domain.ModelStatusReady, domain.SimulationConfig{})
	ctx := context.Background()

	first, err := f.svc.Curve(ctx, storeID)
	require.NoError(t, err)
	assert.Len(t, first.Points, 101)

	cached, err := f.cache.GetCurve(ctx, storeID)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, 10, cached.OrderCount)

	// A new outcome is not visible until the cached curve is invalidated.
	score := 0.99
	require.NoError(t, f.repo.SaveOrder(ctx, storeID, &domain.OrderRecord{
		OrderID: "late", RiskScore: &score, DeliveryStatus: "Delivered", AWB: "AWB",
		CreatedAt: time.Now().UTC(),
	}))

	again, err := f.svc.Curve(ctx, storeID)
	require.NoError(t, err)
	assert.Equal(t, 10, again.OrderCount)

	require.NoError(t, f.svc.InvalidateCurve(ctx, storeID))
	rebuilt, err := f.svc.Curve(ctx, storeID)
	require.NoError(t, err)
	assert.Equal(t, 11, rebuilt.OrderCount)
}

func TestAudit(t *testing.T) {
	f := newFixture(t, domain.ModelStatusReady, domain.SimulationConfig{})

	rows, err := f.svc.Audit(context.Background(), storeID)
	require.NoError(t, err)
	require.Len(t, rows, 101)
	assert.Equal(t, "0:0", rows[0].RemovalRatio)
	assert.Equal(t, "1:4", rows[50].RemovalRatio)
}

func TestServiceWithoutCache(t *testing.T) {
	f := newFixture(t, domain.ModelStatusReady, domain.SimulationConfig{})
	svc := NewService(f.repo, nil, nil, domain.SimulationConfig{}, 0)
	ctx := context.Background()

	res, err := svc.Simulate(ctx, storeID, Params{Cutoff: intPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, 10, res.CurveOrders)
	assert.NoError(t, svc.InvalidateCurve(ctx, storeID))

	_, err = svc.Simulate(ctx, storeID, Params{Segment: "amount > 1.0"})
	assert.ErrorIs(t, err, segment.ErrInvalidExpression)
}

func TestEconomics(t *testing.T) {
	f := newFixture(t, domain.ModelStatusTraining, domain.SimulationConfig{})
	ctx := context.Background()

	econ, err := f.svc.Economics(ctx, storeID)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultUnitEconomics(), econ)

	econ, err = f.svc.Economics(ctx, "new.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultUnitEconomics(), econ)

	saved := exampleEconomics(2)
	require.NoError(t, f.repo.SaveStore(ctx, &domain.Store{ID: storeID, Economics: saved}))
	econ, err = f.svc.Economics(ctx, storeID)
	require.NoError(t, err)
	assert.Equal(t, *saved, econ)
}
