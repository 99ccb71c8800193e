package bus

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/500lbbicepcurl/Scalysis-public/internal/domain"
)

func TestChannelBus(t *testing.T) {
	bus := NewChannelBus(100)
	defer bus.Close()

	ctx := context.Background()
	storeID := "acme.myshopify.com"

	t.Run("PublishAndSubscribe", func(t *testing.T) {
		var received atomic.Bool
		var receivedMsg *domain.Message

		var wg sync.WaitGroup
		wg.Add(1)

		_, err := bus.Subscribe(ctx, storeID, "test.topic", func(ctx context.Context, msg *domain.Message) error {
			receivedMsg = msg
			received.Store(true)
			wg.Done()
			return nil
		})
		if err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}

		// Allow subscription to be active
		time.Sleep(10 * time.Millisecond)

		err = bus.Publish(ctx, storeID, "test.topic", []byte("hello"))
		if err != nil {
			t.Fatalf("publish failed: %v", err)
		}

		// Wait for message
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			// Success
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for message")
		}

		if !received.Load() {
			t.Error("message not received")
		}

		if string(receivedMsg.Payload) != "hello" {
			t.Errorf("expected payload 'hello', got '%s'", string(receivedMsg.Payload))
		}
		if receivedMsg.StoreID != storeID {
			t.Errorf("expected storeID '%s', got '%s'", storeID, receivedMsg.StoreID)
		}
	})

	t.Run("StoreIsolation", func(t *testing.T) {
		store1 := "one.myshopify.com"
		store2 := "two.myshopify.com"

		var received1 atomic.Int32
		var received2 atomic.Int32

		bus.Subscribe(ctx, store1, "isolation.topic", func(ctx context.Context, msg *domain.Message) error {
			received1.Add(1)
			return nil
		})

		bus.Subscribe(ctx, store2, "isolation.topic", func(ctx context.Context, msg *domain.Message) error {
			received2.Add(1)
			return nil
		})

		time.Sleep(10 * time.Millisecond)

		// Publish to store1
		bus.Publish(ctx, store1, "isolation.topic", []byte("msg1"))
		time.Sleep(50 * time.Millisecond)

		if received1.Load() != 1 {
			t.Errorf("store1 should receive 1 message, got %d", received1.Load())
		}
		if received2.Load() != 0 {
			t.Errorf("store2 should receive 0 messages, got %d", received2.Load())
		}
	})

	t.Run("RequiresStoreID", func(t *testing.T) {
		err := bus.Publish(ctx, "", "topic", []byte("data"))
		if !errors.Is(err, ErrStoreRequired) {
			t.Errorf("expected ErrStoreRequired, got %v", err)
		}

		_, err = bus.Subscribe(ctx, "", "topic", func(ctx context.Context, msg *domain.Message) error {
			return nil
		})
		if !errors.Is(err, ErrStoreRequired) {
			t.Errorf("expected ErrStoreRequired, got %v", err)
		}
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		var count atomic.Int32

		sub, _ := bus.Subscribe(ctx, storeID, "unsub.topic", func(ctx context.Context, msg *domain.Message) error {
			count.Add(1)
			return nil
		})

		time.Sleep(10 * time.Millisecond)

		bus.Publish(ctx, storeID, "unsub.topic", []byte("msg1"))
		time.Sleep(50 * time.Millisecond)

		if count.Load() != 1 {
			t.Errorf("expected 1 message before unsubscribe, got %d", count.Load())
		}

		sub.Unsubscribe()
		time.Sleep(10 * time.Millisecond)

		bus.Publish(ctx, storeID, "unsub.topic", []byte("msg2"))
		time.Sleep(50 * time.Millisecond)

		// Should still be 1 after unsubscribe
		if count.Load() != 1 {
			t.Errorf("expected 1 message after unsubscribe, got %d", count.Load())
		}
	})

	t.Run("MultipleSubscribers", func(t *testing.T) {
		var count1, count2 atomic.Int32

		bus.Subscribe(ctx, storeID, "multi.topic", func(ctx context.Context, msg *domain.Message) error {
			count1.Add(1)
			return nil
		})

		bus.Subscribe(ctx, storeID, "multi.topic", func(ctx context.Context, msg *domain.Message) error {
			count2.Add(1)
			return nil
		})

		time.Sleep(10 * time.Millisecond)

		bus.Publish(ctx, storeID, "multi.topic", []byte("broadcast"))
		time.Sleep(50 * time.Millisecond)

		if count1.Load() != 1 || count2.Load() != 1 {
			t.Errorf("expected both subscribers to receive, got %d and %d", count1.Load(), count2.Load())
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := bus.Ping(ctx); err != nil {
			t.Errorf("ping failed: %v", err)
		}
	})

	t.Run("RequestReply", func(t *testing.T) {
		_, err := bus.Subscribe(ctx, storeID, "echo.topic", func(ctx context.Context, msg *domain.Message) error {
			return bus.Reply(ctx, msg, append([]byte("re:"), msg.Payload...))
		})
		if err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}

		reqCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()

		reply, err := bus.Request(reqCtx, storeID, "echo.topic", []byte("ping"))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if string(reply) != "re:ping" {
			t.Errorf("expected reply 're:ping', got '%s'", string(reply))
		}
	})

	t.Run("RequestTimeout", func(t *testing.T) {
		reqCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err := bus.Request(reqCtx, storeID, "nobody.listens", []byte("ping"))
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})

	t.Run("ReplyWithoutRequestIsNoop", func(t *testing.T) {
		msg := &domain.Message{StoreID: storeID, Topic: "x", Metadata: map[string]string{}}
		if err := bus.Reply(ctx, msg, []byte("ignored")); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	t.Run("SubscriptionTopic", func(t *testing.T) {
		sub, _ := bus.Subscribe(ctx, storeID, "my.topic", func(ctx context.Context, msg *domain.Message) error {
			return nil
		})

		if sub.Topic() != "my.topic" {
			t.Errorf("expected topic 'my.topic', got '%s'", sub.Topic())
		}
	})
}

func TestChannelBusClose(t *testing.T) {
	bus := NewChannelBus(100)

	ctx := context.Background()
	storeID := "acme.myshopify.com"

	bus.Subscribe(ctx, storeID, "close.topic", func(ctx context.Context, msg *domain.Message) error {
		return nil
	})

	if err := bus.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}

	// Operations should fail after close
	if err := bus.Publish(ctx, storeID, "close.topic", []byte("data")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	if err := bus.Close(); err != nil {
		t.Errorf("second close failed: %v", err)
	}

	if err := bus.Ping(ctx); err == nil {
		t.Error("expected ping error after close")
	}
}

func TestNewBus(t *testing.T) {
	t.Run("ChannelType", func(t *testing.T) {
		cfg := domain.EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 50,
		}

		bus, err := New(cfg)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer bus.Close()

		_, ok := bus.(*ChannelBus)
		if !ok {
			t.Error("expected ChannelBus for channel type")
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		cfg := domain.EventBusConfig{
			Type: "kafka",
		}

		_, err := New(cfg)
		if err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}

func TestChannelBusHighLoad(t *testing.T) {
	bus := NewChannelBus(1000)
	defer bus.Close()

	ctx := context.Background()
	storeID := "load.myshopify.com"

	var received atomic.Int32
	const messageCount = 100

	var wg sync.WaitGroup
	wg.Add(messageCount)

	bus.Subscribe(ctx, storeID, "load.topic", func(ctx context.Context, msg *domain.Message) error {
		received.Add(1)
		wg.Done()
		return nil
	})

	time.Sleep(10 * time.Millisecond)

	// Publish many messages
	for i := 0; i < messageCount; i++ {
		bus.Publish(ctx, storeID, "load.topic", []byte("msg"))
	}

	// Wait for all messages
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if received.Load() != messageCount {
			t.Errorf("expected %d messages, got %d", messageCount, received.Load())
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout: received %d/%d messages", received.Load(), messageCount)
	}
}

func TestChannelBusDropsWhenFull(t *testing.T) {
	bus := NewChannelBus(1)
	defer bus.Close()

	ctx := context.Background()
	storeID := "slow.myshopify.com"

	release := make(chan struct{})
	var handled atomic.Int32
	bus.Subscribe(ctx, storeID, "slow.topic", func(ctx context.Context, msg *domain.Message) error {
		<-release
		handled.Add(1)
		return nil
	})

	// First message is taken by the handler, second fills the buffer.
	bus.Publish(ctx, storeID, "slow.topic", []byte("1"))
	time.Sleep(20 * time.Millisecond)
	bus.Publish(ctx, storeID, "slow.topic", []byte("2"))
	bus.Publish(ctx, storeID, "slow.topic", []byte("3"))

	if bus.Dropped() != 1 {
		t.Errorf("expected 1 dropped message, got %d", bus.Dropped())
	}

	close(release)
	time.Sleep(20 * time.Millisecond)
	if handled.Load() != 2 {
		t.Errorf("expected 2 handled messages, got %d", handled.Load())
	}
}

func TestMakeSubject(t *testing.T) {
	got := makeSubject("acme.myshopify.com", domain.TopicFlagRequested)
	want := "scalysis.acme.myshopify.com.scalysis.flag.requested"
	if got != want {
		t.Errorf("makeSubject = %q, want %q", got, want)
	}
}

// TestNATSBus needs a running server; set SCALYSIS_TEST_NATS=nats://host:port.
func TestNATSBus(t *testing.T) {
	url := os.Getenv("SCALYSIS_TEST_NATS")
	if url == "" {
		t.Skip("SCALYSIS_TEST_NATS not set")
	}

	bus, err := NewNATSBus(domain.EventBusConfig{
		NATSUrl:           url,
		NATSMaxReconnects: 1,
		NATSReconnectWait: 1,
		NATSQueueGroup:    "scalysis-test",
	})
	if err != nil {
		t.Fatalf("NewNATSBus failed: %v", err)
	}
	defer bus.Close()

	ctx := context.Background()
	storeID := "nats.myshopify.com"

	if err := bus.Ping(ctx); err != nil {
		t.Fatalf("ping failed: %v", err)
	}

	_, err = bus.Subscribe(ctx, storeID, "echo.topic", func(ctx context.Context, msg *domain.Message) error {
		if msg.StoreID != storeID {
			t.Errorf("expected storeID %s, got %s", storeID, msg.StoreID)
		}
		return bus.Reply(ctx, msg, msg.Payload)
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	reply, err := bus.Request(reqCtx, storeID, "echo.topic", []byte("hello"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if string(reply) != "hello" {
		t.Errorf("expected 'hello', got '%s'", string(reply))
	}
}
