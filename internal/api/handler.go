package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/500lbbicepcurl/Scalysis-public/internal/daterange"
	"github.com/500lbbicepcurl/Scalysis-public/internal/domain"
	"github.com/500lbbicepcurl/Scalysis-public/internal/flagging"
	"github.com/500lbbicepcurl/Scalysis-public/internal/repository"
	"github.com/500lbbicepcurl/Scalysis-public/internal/segment"
	"github.com/500lbbicepcurl/Scalysis-public/internal/simulation"
)

// maxOrdersPerRequest bounds a single POST /orders batch.
const maxOrdersPerRequest = 1000

// Handler holds dependencies for API handlers.
type Handler struct {
	repo       domain.Repository
	cache      domain.Cache
	bus        domain.EventBus
	simulation *simulation.Service
	flagging   *flagging.Service
	validate   *validator.Validate
	shopify    domain.ShopifyConfig
	version    string

	// asyncFlagging routes flag requests through the worker when the
	// caller asks for it.
	asyncFlagging bool
}

// NewHandler creates a new API handler.
func NewHandler(deps Dependencies, shop domain.ShopifyConfig) *Handler {
	return &Handler{
		repo:          deps.Repo,
		cache:         deps.Cache,
		bus:           deps.Bus,
		simulation:    deps.Simulation,
		flagging:      deps.Flagging,
		validate:      validator.New(),
		shopify:       shop,
		version:       deps.Version,
		asyncFlagging: deps.AsyncFlagging,
	}
}

// IngestRequest is the request body for POST /orders.
type IngestRequest struct {
	Orders []domain.OrderRequest `json:"orders" validate:"required,min=1,dive"`
}

// Simulation handles GET /simulation.
func (h *Handler) Simulation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	storeID := GetStoreID(ctx)

	params, err := h.simulationParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.simulation.Simulate(ctx, storeID, params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Curve handles GET /curve.
func (h *Handler) Curve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := h.simulation.Curve(ctx, GetStoreID(ctx))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Audit handles GET /audit.
func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rows, err := h.simulation.Audit(ctx, GetStoreID(ctx))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rows":  rows,
		"count": len(rows),
	})
}

// Flaggable handles GET /orders/flaggable. It accepts the same query as
// /simulation and returns the orders that cutoff would exclude.
func (h *Handler) Flaggable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	storeID := GetStoreID(ctx)

	params, err := h.simulationParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.simulation.Simulate(ctx, storeID, params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cutoffPercent": res.Selection.Selected.CutoffPercent,
		"flaggedCount":  res.Selection.FlaggedCount,
		"totalOrders":   res.DisplayedOrders,
		"orderIds":      res.Flaggable,
	})
}

// IngestOrders handles POST /orders. Orders are upserted by id and the
// store's cached curve is dropped.
func (h *Handler) IngestOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	storeID := GetStoreID(ctx)

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON: " + err.Error(),
		})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "validation failed: " + err.Error(),
		})
		return
	}
	if len(req.Orders) > maxOrdersPerRequest {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
			"error": "too many orders in one request",
		})
		return
	}

	for i := range req.Orders {
		if err := h.repo.SaveOrder(ctx, storeID, req.Orders[i].ToOrder(storeID)); err != nil {
			slog.Error("failed to save order",
				"store_id", storeID,
				"order_id", req.Orders[i].OrderID,
				"error", err,
			)
			h.writeError(w, r, err)
			return
		}
	}

	h.invalidate(r, storeID)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"saved": len(req.Orders),
	})
}

// FlagOrders handles POST /orders/flag.
func (h *Handler) FlagOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	storeID := GetStoreID(ctx)

	var body domain.FlagAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON: " + err.Error(),
		})
		return
	}
	if err := h.validate.Struct(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "validation failed: " + err.Error(),
		})
		return
	}
	ids := body.IDs()
	if len(ids) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "orderIds or orderId is required",
		})
		return
	}

	req := h.flagging.NewRequest(storeID, ids)

	if body.Async && h.asyncFlagging {
		if err := h.flagging.Enqueue(ctx, req); err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"requestId": req.ID,
			"status":    "queued",
			"orders":    len(ids),
		})
		return
	}

	result, err := h.flagging.Flag(ctx, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetStore handles GET /store.
func (h *Handler) GetStore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store, err := h.repo.GetStore(ctx, GetStoreID(ctx))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, store)
}

// UpdateStore handles PUT /store. Unknown stores are created, which is how
// an installation first registers.
func (h *Handler) UpdateStore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	storeID := GetStoreID(ctx)

	var update domain.StoreUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON: " + err.Error(),
		})
		return
	}
	if err := h.validate.Struct(&update); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "validation failed: " + err.Error(),
		})
		return
	}

	store, err := h.repo.GetStore(ctx, storeID)
	if errors.Is(err, repository.ErrNotFound) {
		store = &domain.Store{ID: storeID, ModelStatus: domain.ModelStatusPending}
		err = nil
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	previous := store.ModelStatus
	if update.ModelStatus != nil {
		store.ModelStatus = *update.ModelStatus
	}
	if update.Email != nil {
		store.Email = *update.Email
	}
	if update.AccessToken != nil {
		store.AccessToken = *update.AccessToken
	}

	if err := h.repo.SaveStore(ctx, store); err != nil {
		h.writeError(w, r, err)
		return
	}

	if store.ModelStatus != previous {
		// New scores arrive with a status change.
		h.invalidate(r, storeID)
		h.publish(r, storeID, domain.TopicModelStatus, map[string]string{
			"storeId":     storeID,
			"modelStatus": store.ModelStatus,
			"previous":    previous,
		})
		slog.Info("model status changed",
			"store_id", storeID,
			"from", previous,
			"to", store.ModelStatus,
		)
	}

	writeJSON(w, http.StatusOK, store)
}

// GetEconomics handles GET /economics.
func (h *Handler) GetEconomics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	econ, err := h.simulation.Economics(ctx, GetStoreID(ctx))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, econ)
}

// UpdateEconomics handles PUT /economics.
func (h *Handler) UpdateEconomics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	storeID := GetStoreID(ctx)

	var econ domain.UnitEconomics
	if err := json.NewDecoder(r.Body).Decode(&econ); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON: " + err.Error(),
		})
		return
	}
	if err := h.validate.Struct(&econ); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "validation failed: " + err.Error(),
		})
		return
	}

	store, err := h.repo.GetStore(ctx, storeID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	store.Economics = &econ
	if err := h.repo.SaveStore(ctx, store); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, econ)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"ready": "false",
				"error": err.Error(),
			})
			return
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"ready": "false",
				"error": err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ErrInvalidParam is returned for a malformed query parameter.
var ErrInvalidParam = errors.New("invalid parameter")

// simulationParams reads cutoff, economics overrides, date range and
// segment from the query string. Economics fields left out of the query
// keep the store's saved values.
func (h *Handler) simulationParams(r *http.Request) (simulation.Params, error) {
	q := r.URL.Query()
	p := simulation.Params{
		Preset:  q.Get("preset"),
		From:    q.Get("from"),
		To:      q.Get("to"),
		Segment: q.Get("segment"),
	}

	if v := q.Get("cutoff"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("%w: cutoff must be an integer", ErrInvalidParam)
		}
		p.Cutoff = &n
	}

	if !hasEconomics(q) {
		return p, nil
	}

	econ, err := h.simulation.Economics(r.Context(), GetStoreID(r.Context()))
	if err != nil {
		return p, err
	}
	fields := []struct {
		name string
		dst  *float64
	}{
		{"profitPerDelivery", &econ.ProfitPerDelivery},
		{"lossPerReturn", &econ.LossPerReturn},
		{"costPerAcquisition", &econ.CostPerAcquisition},
		{"shippingCostPerOrder", &econ.ShippingCostPerOrder},
		{"tolerancePercent", &econ.TolerancePercent},
	}
	for _, f := range fields {
		v := q.Get(f.name)
		if v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return p, fmt.Errorf("%w: %s must be a number", ErrInvalidParam, f.name)
		}
		if math.IsInf(n, 0) || math.IsNaN(n) {
			return p, fmt.Errorf("%w: %s must be a finite number", ErrInvalidParam, f.name)
		}
		*f.dst = n
	}
	if err := h.validate.Struct(&econ); err != nil {
		return p, fmt.Errorf("%w: validation failed: %v", ErrInvalidParam, err)
	}
	p.Economics = &econ
	return p, nil
}

func hasEconomics(q url.Values) bool {
	for _, k := range []string{"profitPerDelivery", "lossPerReturn", "costPerAcquisition", "shippingCostPerOrder", "tolerancePercent"} {
		if q.Get(k) != "" {
			return true
		}
	}
	return false
}

// writeError maps service errors to HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var notReady *simulation.NotReadyError
	switch {
	case errors.As(err, &notReady):
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":      "waiting",
			"modelStatus": notReady.Status,
		})
	case errors.Is(err, ErrInvalidParam),
		errors.Is(err, simulation.ErrInvalidCutoff),
		errors.Is(err, daterange.ErrInvalidDate),
		errors.Is(err, daterange.ErrUnknownPreset),
		errors.Is(err, daterange.ErrInverted),
		errors.Is(err, segment.ErrInvalidExpression),
		errors.Is(err, flagging.ErrNoOrders),
		errors.Is(err, repository.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	case errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "store not found",
		})
	default:
		slog.Error("request failed",
			"path", r.URL.Path,
			"store_id", GetStoreID(r.Context()),
			"trace_id", GetTraceID(r.Context()),
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}
}

func (h *Handler) invalidate(r *http.Request, storeID string) {
	if err := h.simulation.InvalidateCurve(r.Context(), storeID); err != nil {
		slog.Warn("failed to invalidate curve",
			"store_id", storeID,
			"error", err,
		)
	}
}

func (h *Handler) publish(r *http.Request, storeID, topic string, event interface{}) {
	if h.bus == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := h.bus.Publish(r.Context(), storeID, topic, payload); err != nil {
		slog.Warn("failed to publish event",
			"store_id", storeID,
			"topic", topic,
			"error", err,
		)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		slog.Error("failed to encode response",
			"status", status,
			"error", err,
		)
		status = http.StatusInternalServerError
		body = []byte(`{"error":"internal server error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

