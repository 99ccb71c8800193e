// Package flagging tags orders chosen for exclusion on the commerce platform.
package flagging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/500lbbicepcurl/Scalysis-public/internal/domain"
	"github.com/500lbbicepcurl/Scalysis-public/internal/metrics"
	"github.com/500lbbicepcurl/Scalysis-public/internal/repository"
)

const orderGIDPrefix = "gid://shopify/Order/"

var (
	// ErrNoOrders is returned when a request names no order ids.
	ErrNoOrders = errors.New("flagging: no order ids")

	// ErrStoreRequired is returned when a request has no store.
	ErrStoreRequired = errors.New("flagging: storeID is required")
)

// OrderGID returns the platform global id for an order. Ids already in
// gid:// form are returned unchanged.
func OrderGID(id string) string {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, "gid://") {
		return id
	}
	return orderGIDPrefix + id
}

// LocalOrderID strips the order gid prefix, giving the id orders are
// stored under.
func LocalOrderID(id string) string {
	return strings.TrimPrefix(strings.TrimSpace(id), orderGIDPrefix)
}

// OrderEvent is published for every order flagged or failed.
type OrderEvent struct {
	RequestID string `json:"requestId"`
	OrderID   string `json:"orderId"`
	GID       string `json:"gid"`
	Tag       string `json:"tag"`
	Error     string `json:"error,omitempty"`
}

// Service applies the flag tag to batches of orders.
type Service struct {
	repo        domain.Repository
	flagger     domain.Flagger
	bus         domain.EventBus
	tag         string
	concurrency int
}

// NewService creates a flagging service. bus may be nil.
func NewService(repo domain.Repository, flagger domain.Flagger, bus domain.EventBus, cfg domain.ShopifyConfig) *Service {
	tag := cfg.FlagTag
	if tag == "" {
		tag = domain.DefaultFlagTag
	}
	concurrency := cfg.FlagConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Service{
		repo:        repo,
		flagger:     flagger,
		bus:         bus,
		tag:         tag,
		concurrency: concurrency,
	}
}

// NewRequest builds a flag request for storeID.
func (s *Service) NewRequest(storeID string, orderIDs []string) *domain.FlagRequest {
	return &domain.FlagRequest{
		ID:       uuid.New().String(),
		StoreID:  storeID,
		OrderIDs: orderIDs,
		Tag:      s.tag,
		Created:  time.Now().UTC(),
	}
}

// Enqueue hands the request to the async worker.
func (s *Service) Enqueue(ctx context.Context, req *domain.FlagRequest) error {
	if s.bus == nil {
		return errors.New("flagging: no event bus configured")
	}
	if err := validate(req); err != nil {
		return err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal flag request: %w", err)
	}
	return s.bus.Publish(ctx, domain.GlobalStoreID, domain.TopicFlagRequested, payload)
}

// Flag tags every order in req and reports a per-id outcome. Individual
// failures do not fail the call; an error is returned only when the request
// itself is unusable or the context ends.
func (s *Service) Flag(ctx context.Context, req *domain.FlagRequest) (*domain.FlagResult, error) {
	start := time.Now()

	if err := validate(req); err != nil {
		return nil, err
	}
	tag := req.Tag
	if tag == "" {
		tag = s.tag
	}

	store, err := s.repo.GetStore(ctx, req.StoreID)
	if err != nil {
		return nil, fmt.Errorf("failed to load store %s: %w", req.StoreID, err)
	}

	ids := dedupe(req.OrderIDs)
	outcomes := make([]domain.FlagOutcome, len(ids))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			outcomes[i] = s.flagOne(gCtx, store, req.ID, id, tag)
			return gCtx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &domain.FlagResult{
		RequestID: req.ID,
		StoreID:   req.StoreID,
		Tag:       tag,
		Outcomes:  outcomes,
		ProcessMs: time.Since(start).Milliseconds(),
	}
	for _, o := range outcomes {
		if o.Success {
			result.Flagged++
		} else {
			result.Failed++
		}
	}

	slog.Info("flag request processed",
		"request_id", req.ID,
		"store_id", req.StoreID,
		"flagged", result.Flagged,
		"failed", result.Failed,
		"process_ms", result.ProcessMs,
	)

	return result, nil
}

func (s *Service) flagOne(ctx context.Context, store *domain.Store, requestID, id, tag string) domain.FlagOutcome {
	out := domain.FlagOutcome{
		OrderID: LocalOrderID(id),
		GID:     OrderGID(id),
	}
	event := OrderEvent{RequestID: requestID, OrderID: out.OrderID, GID: out.GID, Tag: tag}

	if err := s.flagger.AddTags(ctx, store, out.GID, []string{tag}); err != nil {
		out.Error = err.Error()
		event.Error = out.Error
		metrics.FlagOutcomes.WithLabelValues("failure").Inc()
		slog.Warn("failed to flag order",
			"store_id", store.ID,
			"order_gid", out.GID,
			"error", err,
		)
		s.publish(ctx, store.ID, domain.TopicFlagFailed, event)
		return out
	}

	out.Success = true
	metrics.FlagOutcomes.WithLabelValues("success").Inc()

	// Orders tagged on the platform but never ingested have no local row.
	err := s.repo.MarkOrderFlagged(ctx, store.ID, out.OrderID, time.Now().UTC())
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		slog.Error("failed to record flagged order",
			"store_id", store.ID,
			"order_id", out.OrderID,
			"error", err,
		)
	}

	s.publish(ctx, store.ID, domain.TopicOrderFlagged, event)
	return out
}

func (s *Service) publish(ctx context.Context, storeID, topic string, event OrderEvent) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, storeID, topic, payload); err != nil {
		slog.Warn("failed to publish flag event",
			"store_id", storeID,
			"topic", topic,
			"error", err,
		)
	}
}

func validate(req *domain.FlagRequest) error {
	if req == nil || req.StoreID == "" {
		return ErrStoreRequired
	}
	if len(dedupe(req.OrderIDs)) == 0 {
		return ErrNoOrders
	}
	return nil
}

// dedupe drops blank ids and repeats of the same order, keeping first-seen
// order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		gid := OrderGID(id)
		if _, ok := seen[gid]; ok {
			continue
		}
		seen[gid] = struct{}{}
		out = append(out, id)
	}
	return out
}
