// Package bus carries flagging events between the API and background workers.
package bus

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/500lbbicepcurl/Scalysis-public/internal/domain"
)

var (
	// ErrStoreRequired is returned when a call omits the store ID.
	ErrStoreRequired = errors.New("bus: storeID is required")

	// ErrClosed is returned by operations on a closed bus.
	ErrClosed = errors.New("bus: closed")
)

// defaultRequestTimeout bounds Request when the context has no deadline.
const defaultRequestTimeout = 30 * time.Second

// New creates a new event bus based on configuration.
// For Community tier: returns ChannelBus.
// For Pro tier: returns NATSBus.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}

func newMessage(storeID, topic string, payload []byte) *domain.Message {
	return &domain.Message{
		ID:        uuid.New().String(),
		StoreID:   storeID,
		Topic:     topic,
		Payload:   payload,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UnixNano(),
	}
}
