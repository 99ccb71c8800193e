package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/500lbbicepcurl/Scalysis-public/internal/bus"
	"github.com/500lbbicepcurl/Scalysis-public/internal/domain"
)

type stubProcessor struct {
	mu   sync.Mutex
	seen []string
	err  error
}

func (p *stubProcessor) Flag(ctx context.Context, req *domain.FlagRequest) (*domain.FlagResult, error) {
	p.mu.Lock()
	p.seen = append(p.seen, req.ID)
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return &domain.FlagResult{
		RequestID: req.ID,
		StoreID:   req.StoreID,
		Flagged:   len(req.OrderIDs),
	}, nil
}

func (p *stubProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}

func publishRequest(t *testing.T, b domain.EventBus, req domain.FlagRequest) {
	t.Helper()
	payload, _ := json.Marshal(req)
	if err := b.Publish(context.Background(), domain.GlobalStoreID, domain.TopicFlagRequested, payload); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestWorker(t *testing.T) {
	t.Run("StartAndStop", func(t *testing.T) {
		eventBus := bus.NewChannelBus(100)
		defer eventBus.Close()

		worker := NewWorker(eventBus, &stubProcessor{})
		if err := worker.Start(Config{WorkerCount: 2}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		stats := worker.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
		}
		if stats.Topics[0] != domain.TopicFlagRequested {
			t.Errorf("expected topic %s, got %s", domain.TopicFlagRequested, stats.Topics[0])
		}

		if err := worker.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}

		stats = worker.GetStats()
		if stats.SubscriptionCount != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("ProcessFlagRequests", func(t *testing.T) {
		eventBus := bus.NewChannelBus(100)
		defer eventBus.Close()

		processor := &stubProcessor{}
		worker := NewWorker(eventBus, processor)
		if err := worker.Start(Config{WorkerCount: 3}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer worker.Stop()

		for _, id := range []string{"req-1", "req-2", "req-3", "req-4"} {
			publishRequest(t, eventBus, domain.FlagRequest{
				ID:       id,
				StoreID:  "acme.myshopify.com",
				OrderIDs: []string{"1001"},
			})
		}

		waitFor(t, func() bool { return worker.GetStats().Processed == 4 })
		if processor.count() != 4 {
			t.Errorf("expected 4 requests processed, got %d", processor.count())
		}
	})

	t.Run("FailuresCounted", func(t *testing.T) {
		eventBus := bus.NewChannelBus(100)
		defer eventBus.Close()

		worker := NewWorker(eventBus, &stubProcessor{err: errors.New("store not found")})
		if err := worker.Start(Config{WorkerCount: 1}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer worker.Stop()

		publishRequest(t, eventBus, domain.FlagRequest{ID: "req-1", StoreID: "gone.myshopify.com", OrderIDs: []string{"1"}})
		_ = eventBus.Publish(context.Background(), domain.GlobalStoreID, domain.TopicFlagRequested, []byte("not json"))

		waitFor(t, func() bool { return worker.GetStats().Failed == 2 })
		if worker.GetStats().Processed != 0 {
			t.Errorf("expected 0 processed, got %d", worker.GetStats().Processed)
		}
	})

	t.Run("RepliesToRequests", func(t *testing.T) {
		eventBus := bus.NewChannelBus(100)
		defer eventBus.Close()

		worker := NewWorker(eventBus, &stubProcessor{})
		if err := worker.Start(Config{WorkerCount: 1}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer worker.Stop()

		payload, _ := json.Marshal(domain.FlagRequest{ID: "req-sync", StoreID: "acme.myshopify.com", OrderIDs: []string{"1", "2"}})

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		reply, err := eventBus.Request(ctx, domain.GlobalStoreID, domain.TopicFlagRequested, payload)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}

		var result domain.FlagResult
		if err := json.Unmarshal(reply, &result); err != nil {
			t.Fatalf("failed to parse reply: %v", err)
		}
		if result.RequestID != "req-sync" || result.Flagged != 2 {
			t.Errorf("unexpected result: %+v", result)
		}
	})
}
