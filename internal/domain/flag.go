package domain

import (
	"context"
	"time"
)

// DefaultFlagTag is the label applied to orders flagged for exclusion.
const DefaultFlagTag = "Flagged by Scalysis"

// Flagger applies tags to orders on the commerce platform.
// Reapplying a tag the order already carries is a no-op.
type Flagger interface {
	AddTags(ctx context.Context, store *Store, orderGID string, tags []string) error
}

// FlagRequest asks for a set of orders to be tagged.
type FlagRequest struct {
	ID       string    `json:"id"`
	StoreID  string    `json:"storeId"`
	OrderIDs []string  `json:"orderIds"`
	Tag      string    `json:"tag"`
	Created  time.Time `json:"created"`
}

// FlagOutcome is the result of tagging a single order.
type FlagOutcome struct {
	OrderID string `json:"orderId"`
	GID     string `json:"gid"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// FlagResult is the per-id outcome of a FlagRequest.
type FlagResult struct {
	RequestID string        `json:"requestId"`
	StoreID   string        `json:"storeId"`
	Tag       string        `json:"tag"`
	Outcomes  []FlagOutcome `json:"outcomes"`
	Flagged   int           `json:"flagged"`
	Failed    int           `json:"failed"`
	ProcessMs int64         `json:"processMs"`
}

// FlagAPIRequest is the API request payload for POST /orders/flag.
// Either OrderIDs (bulk) or OrderID (single) must be set.
type FlagAPIRequest struct {
	OrderIDs []string `json:"orderIds,omitempty" validate:"omitempty,dive,required"`
	OrderID  string   `json:"orderId,omitempty"`
	Async    bool     `json:"async,omitempty"`
}

// IDs returns the requested order ids, bulk first.
func (r *FlagAPIRequest) IDs() []string {
	if len(r.OrderIDs) > 0 {
		return r.OrderIDs
	}
	if r.OrderID != "" {
		return []string{r.OrderID}
	}
	return nil
}
