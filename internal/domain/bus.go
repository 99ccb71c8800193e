package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels (Community) or NATS (Pro).
// All methods require storeID for strict per-store isolation.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, storeID string, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, storeID string, topic string, handler MessageHandler) (Subscription, error)

	// Request sends a message and waits for a response (request-reply pattern).
	Request(ctx context.Context, storeID string, topic string, payload []byte) ([]byte, error)

	// Reply answers a message received through Request. Messages without
	// a MetaReplyTo entry are ignored.
	Reply(ctx context.Context, msg *Message, payload []byte) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	StoreID   string            `json:"storeId"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string `yaml:"type"`

	// Channel settings (Community tier)
	ChannelBufferSize int `yaml:"channel_buffer_size"`

	// NATS settings (Pro tier)
	NATSUrl           string `yaml:"nats_url"`
	NATSToken         string `yaml:"nats_token"`
	NATSMaxReconnects int    `yaml:"nats_max_reconnects"`
	NATSReconnectWait int    `yaml:"nats_reconnect_wait"` // seconds

	// NATSQueueGroup load-balances subscriptions across instances so each
	// flag request is handled by exactly one worker.
	NATSQueueGroup string `yaml:"nats_queue_group"`
}

// MetaReplyTo is the metadata key carrying the reply address of a request.
const MetaReplyTo = "reply_to"

// GlobalStoreID addresses messages consumed on behalf of every store.
const GlobalStoreID = "_global"

// Standard topic names for the flagging pipeline.
const (
	TopicFlagRequested = "scalysis.flag.requested"
	TopicOrderFlagged  = "scalysis.order.flagged"
	TopicFlagFailed    = "scalysis.flag.failed"
	TopicModelStatus   = "scalysis.model.status"
	TopicStoreRedacted = "scalysis.store.redacted"
)
