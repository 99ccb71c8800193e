// Package simulation assembles curve, order supply and economics into a
// cutoff simulation for one store.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/500lbbicepcurl/Scalysis-public/internal/curve"
	"github.com/500lbbicepcurl/Scalysis-public/internal/daterange"
	"github.com/500lbbicepcurl/Scalysis-public/internal/domain"
	"github.com/500lbbicepcurl/Scalysis-public/internal/metrics"
	"github.com/500lbbicepcurl/Scalysis-public/internal/repository"
	"github.com/500lbbicepcurl/Scalysis-public/internal/segment"
	"github.com/500lbbicepcurl/Scalysis-public/internal/threshold"
)

var tracer = otel.Tracer("scalysis-simulation")

var (
	// ErrModelNotReady is returned while the store's risk model is not ready.
	ErrModelNotReady = errors.New("simulation: model not ready")

	// ErrInvalidCutoff is returned for a cutoff outside 0..100.
	ErrInvalidCutoff = errors.New("simulation: cutoff must be between 0 and 100")
)

// NotReadyError carries the model status that blocked a simulation.
// errors.Is(err, ErrModelNotReady) reports true for it.
type NotReadyError struct {
	Status string
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("simulation: model not ready (status %s)", e.Status)
}

func (e *NotReadyError) Is(target error) bool {
	return target == ErrModelNotReady
}

// Params selects what to simulate. Zero values fall back to the store's
// saved economics and the configured defaults.
type Params struct {
	Cutoff    *int
	Economics *domain.UnitEconomics

	// Preset, From and To narrow the displayed orders by IST order date.
	Preset string
	From   string
	To     string

	// Segment is an optional CEL filter over the displayed orders.
	Segment string
}

// Result is a full simulation for one store.
type Result struct {
	StoreID string `json:"storeId"`

	Selection threshold.Selection     `json:"selection"`
	Series    []threshold.SeriesPoint `json:"series"`

	// QualifyingCutoffs lists every searched cutoff within tolerance.
	QualifyingCutoffs []int `json:"qualifyingCutoffs"`

	// Flaggable holds the lowest-scored displayed orders at the selected
	// cutoff.
	Flaggable []string `json:"flaggable"`

	CurveOrders     int       `json:"curveOrders"`
	DisplayedOrders int       `json:"displayedOrders"`
	CurveBuiltAt    time.Time `json:"curveBuiltAt"`
}

// Service runs simulations. cache may be nil.
type Service struct {
	repo     domain.Repository
	cache    domain.Cache
	segments *segment.Engine
	cfg      domain.SimulationConfig
	curveTTL time.Duration
	now      func() time.Time
}

// NewService creates a simulation service.
func NewService(repo domain.Repository, cache domain.Cache, segments *segment.Engine, cfg domain.SimulationConfig, curveTTL time.Duration) *Service {
	if cfg.SearchLimit <= 0 || cfg.SearchLimit > curve.Points-1 {
		cfg.SearchLimit = threshold.SearchLimit
	}
	if cfg.Economics == (domain.UnitEconomics{}) {
		cfg.Economics = domain.DefaultUnitEconomics()
	}
	return &Service{
		repo:     repo,
		cache:    cache,
		segments: segments,
		cfg:      cfg,
		curveTTL: curveTTL,
		now:      time.Now,
	}
}

// Simulate evaluates the store's curve at the requested cutoff against the
// displayed, unshipped orders.
func (s *Service) Simulate(ctx context.Context, storeID string, p Params) (*Result, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "simulation.Simulate")
	defer span.End()
	span.SetAttributes(attribute.String("store.id", storeID))

	res, err := s.simulate(ctx, storeID, p)
	metrics.SimulationDuration.Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
		metrics.Simulations.WithLabelValues("ok").Inc()
		span.SetAttributes(
			attribute.Int("orders.displayed", res.DisplayedOrders),
			attribute.Int("cutoff", res.Selection.Selected.CutoffPercent),
		)
	case errors.Is(err, ErrModelNotReady):
		metrics.Simulations.WithLabelValues("waiting").Inc()
	default:
		metrics.Simulations.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (s *Service) simulate(ctx context.Context, storeID string, p Params) (*Result, error) {
	cutoff := s.cfg.DefaultCutoff
	if p.Cutoff != nil {
		cutoff = *p.Cutoff
	}
	if cutoff < 0 || cutoff > 100 {
		return nil, ErrInvalidCutoff
	}

	store, err := s.readyStore(ctx, storeID)
	if err != nil {
		return nil, err
	}

	econ := s.economics(store, p.Economics)

	cached, err := s.curve(ctx, storeID)
	if err != nil {
		return nil, err
	}
	c := curve.Curve(cached.Points)

	displayed, err := s.displayed(ctx, storeID, p)
	if err != nil {
		return nil, err
	}
	total := len(displayed)

	sel := threshold.Evaluate(c, total, econ, cutoff)
	if s.cfg.SearchLimit != threshold.SearchLimit {
		sel.Recommended = nil
		if rec, ok := threshold.Search(c, total, econ, s.cfg.SearchLimit); ok {
			sel.Recommended = &rec
		}
	}

	qualifying := threshold.QualifyingCutoffs(c, total, econ, s.cfg.SearchLimit)
	if qualifying == nil {
		qualifying = []int{}
	}

	return &Result{
		StoreID:           storeID,
		Selection:         sel,
		Series:            threshold.ProfitSeries(c, total, econ),
		QualifyingCutoffs: qualifying,
		Flaggable:         threshold.FlagCandidates(displayed, sel.FlaggedCount),
		CurveOrders:       cached.OrderCount,
		DisplayedOrders:   total,
		CurveBuiltAt:      cached.BuiltAt,
	}, nil
}

// Curve returns the store's cutoff curve, building it on a cache miss.
func (s *Service) Curve(ctx context.Context, storeID string) (*domain.CachedCurve, error) {
	if _, err := s.readyStore(ctx, storeID); err != nil {
		return nil, err
	}
	return s.curve(ctx, storeID)
}

// Audit returns the per-cutoff audit table of the store's curve.
func (s *Service) Audit(ctx context.Context, storeID string) ([]threshold.AuditRow, error) {
	cached, err := s.Curve(ctx, storeID)
	if err != nil {
		return nil, err
	}
	return threshold.Audit(curve.Curve(cached.Points)), nil
}

// InvalidateCurve drops the cached curve so the next read rebuilds it.
func (s *Service) InvalidateCurve(ctx context.Context, storeID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.InvalidateCurve(ctx, storeID)
}

func (s *Service) readyStore(ctx context.Context, storeID string) (*domain.Store, error) {
	store, err := s.repo.GetStore(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load store %s: %w", storeID, err)
	}
	if !store.IsReady() {
		return nil, &NotReadyError{Status: store.ModelStatus}
	}
	return store, nil
}

// Economics returns the store's saved unit economics, or the configured
// defaults when none are saved. The model need not be ready.
func (s *Service) Economics(ctx context.Context, storeID string) (domain.UnitEconomics, error) {
	store, err := s.repo.GetStore(ctx, storeID)
	if errors.Is(err, repository.ErrNotFound) {
		return s.cfg.Economics, nil
	}
	if err != nil {
		return domain.UnitEconomics{}, fmt.Errorf("failed to load store %s: %w", storeID, err)
	}
	return s.economics(store, nil), nil
}

// economics picks request overrides, then the store's saved values, then
// the configured defaults.
func (s *Service) economics(store *domain.Store, override *domain.UnitEconomics) domain.UnitEconomics {
	if override != nil {
		return *override
	}
	if store.Economics != nil {
		return *store.Economics
	}
	return s.cfg.Economics
}

func (s *Service) curve(ctx context.Context, storeID string) (*domain.CachedCurve, error) {
	if s.cache != nil {
		cached, err := s.cache.GetCurve(ctx, storeID)
		if err != nil {
			slog.Warn("curve cache read failed",
				"store_id", storeID,
				"error", err,
			)
		}
		if cached != nil && curve.Curve(cached.Points).Valid() {
			metrics.CurveCache.WithLabelValues("hit").Inc()
			return cached, nil
		}
		metrics.CurveCache.WithLabelValues("miss").Inc()
	}

	orders, err := s.repo.ListScoredOrders(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scored orders: %w", err)
	}
	outcomes := domain.OutcomeOrders(orders)

	built := &domain.CachedCurve{
		OrderCount: len(outcomes),
		Points:     curve.Build(outcomes),
		BuiltAt:    s.now().UTC(),
	}

	if s.cache != nil {
		if err := s.cache.SetCurve(ctx, storeID, built, s.curveTTL); err != nil {
			slog.Warn("curve cache write failed",
				"store_id", storeID,
				"error", err,
			)
		}
	}

	slog.Debug("curve built",
		"store_id", storeID,
		"orders", built.OrderCount,
	)
	return built, nil
}

// Displayed returns the unshipped orders in view, ascending by risk score.
func (s *Service) Displayed(ctx context.Context, storeID string, p Params) ([]domain.OrderRecord, error) {
	if _, err := s.readyStore(ctx, storeID); err != nil {
		return nil, err
	}
	return s.displayed(ctx, storeID, p)
}

func (s *Service) displayed(ctx context.Context, storeID string, p Params) ([]domain.OrderRecord, error) {
	rng, err := daterange.Resolve(p.Preset, p.From, p.To, s.now())
	if err != nil {
		return nil, err
	}

	orders, err := s.repo.ListUnshippedOrders(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unshipped orders: %w", err)
	}
	orders = rng.Filter(orders)

	if p.Segment != "" {
		if s.segments == nil {
			return nil, fmt.Errorf("%w: segments are not enabled", segment.ErrInvalidExpression)
		}
		orders, err = s.segments.Filter(orders, p.Segment)
		if err != nil {
			return nil, err
		}
	}
	return orders, nil
}
