// Package worker processes flag requests asynchronously from the event bus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/500lbbicepcurl/Scalysis-public/internal/domain"
)

// FlagProcessor executes a flag request. Implemented by flagging.Service.
type FlagProcessor interface {
	Flag(ctx context.Context, req *domain.FlagRequest) (*domain.FlagResult, error)
}

// Worker consumes flag requests published under the global store ID and
// runs them on a fixed pool of goroutines.
type Worker struct {
	bus       domain.EventBus
	processor FlagProcessor

	subscriptions []domain.Subscription
	jobs          chan *domain.Message
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc

	processed atomic.Int64
	failed    atomic.Int64
}

// Config holds worker configuration.
type Config struct {
	// WorkerCount is the number of flag requests processed concurrently.
	WorkerCount int
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, processor FlagProcessor) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       bus,
		processor: processor,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start subscribes to flag requests and launches the pool.
func (w *Worker) Start(cfg Config) error {
	count := cfg.WorkerCount
	if count <= 0 {
		count = 1
	}
	w.jobs = make(chan *domain.Message, count)

	sub, err := w.bus.Subscribe(w.ctx, domain.GlobalStoreID, domain.TopicFlagRequested, w.enqueue)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	for i := 0; i < count; i++ {
		w.wg.Add(1)
		go w.run()
	}

	slog.Info("flag workers started",
		"worker_count", count,
		"topic", domain.TopicFlagRequested,
	)
	return nil
}

// enqueue hands a message to the pool, blocking while all workers are busy
// so the bus applies its own backpressure.
func (w *Worker) enqueue(ctx context.Context, msg *domain.Message) error {
	select {
	case w.jobs <- msg:
		return nil
	case <-w.ctx.Done():
		return w.ctx.Err()
	}
}

func (w *Worker) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case msg := <-w.jobs:
			_ = w.process(w.ctx, msg)
		}
	}
}

// process runs one flag request and answers it if it was sent with Request.
func (w *Worker) process(ctx context.Context, msg *domain.Message) error {
	var req domain.FlagRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		w.failed.Add(1)
		slog.Error("failed to parse flag request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	slog.Debug("processing flag request",
		"request_id", req.ID,
		"store_id", req.StoreID,
		"orders", len(req.OrderIDs),
	)

	result, err := w.processor.Flag(ctx, &req)
	if err != nil {
		w.failed.Add(1)
		slog.Error("flag request failed",
			"request_id", req.ID,
			"store_id", req.StoreID,
			"error", err,
		)
		return err
	}
	w.processed.Add(1)

	if msg.Metadata[domain.MetaReplyTo] != "" {
		payload, _ := json.Marshal(result)
		if err := w.bus.Reply(ctx, msg, payload); err != nil {
			slog.Error("failed to reply to flag request",
				"request_id", req.ID,
				"error", err,
			)
		}
	}

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	Processed         int64    `json:"processed"`
	Failed            int64    `json:"failed"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		Processed:         w.processed.Load(),
		Failed:            w.failed.Load(),
	}
}
