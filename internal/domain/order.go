package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderRecord represents a cash-on-delivery order known for a store.
type OrderRecord struct {
	// Core identifiers
	StoreID string `json:"storeId"`
	OrderID string `json:"orderId"`
	Name    string `json:"name"`

	// Financial details
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`

	// Shipping address
	Address1 string `json:"address1,omitempty"`
	Address2 string `json:"address2,omitempty"`
	City     string `json:"city,omitempty"`
	Province string `json:"province,omitempty"`
	Country  string `json:"country,omitempty"`
	Zip      string `json:"zip,omitempty"`

	// Temporal
	OrderDate *time.Time `json:"orderDate,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`

	// RiskScore is assigned by the external predictor. Nil means the order
	// has not been scored yet. Lower scores are riskier.
	RiskScore *float64 `json:"riskScore,omitempty"`

	// DeliveryStatus is the free-text outcome reported by the courier.
	DeliveryStatus string `json:"deliveryStatus,omitempty"`

	// AWB is the tracking number. Empty means the order is not shipped yet.
	AWB string `json:"awb,omitempty"`

	// TrainingData marks synthetic rows used to train the predictor.
	TrainingData bool `json:"trainingData"`

	FlaggedAt *time.Time `json:"flaggedAt,omitempty"`
}

// IsDelivered reports whether the delivery status mentions "delivered".
func (o *OrderRecord) IsDelivered() bool {
	return strings.Contains(strings.ToLower(o.DeliveryStatus), "delivered")
}

// IsReturned reports whether the delivery status mentions "rto".
// The check is independent of IsDelivered: a status may match both.
func (o *OrderRecord) IsReturned() bool {
	return strings.Contains(strings.ToLower(o.DeliveryStatus), "rto")
}

// HasOutcome reports whether the order counts as delivered or returned.
func (o *OrderRecord) HasOutcome() bool {
	return o.IsDelivered() || o.IsReturned()
}

// IsShipped reports whether a tracking number has been assigned.
func (o *OrderRecord) IsShipped() bool {
	return strings.TrimSpace(o.AWB) != ""
}

// OutcomeOrders returns the orders with a known delivery outcome,
// preserving their order.
func OutcomeOrders(orders []OrderRecord) []OrderRecord {
	out := make([]OrderRecord, 0, len(orders))
	for i := range orders {
		if orders[i].HasOutcome() {
			out = append(out, orders[i])
		}
	}
	return out
}

// OrderRequest is the API request payload for ingesting an order.
type OrderRequest struct {
	OrderID        string   `json:"orderId" validate:"required"`
	Name           string   `json:"name"`
	Amount         string   `json:"amount" validate:"omitempty,numeric"`
	Currency       string   `json:"currency" validate:"omitempty,len=3"`
	Address1       string   `json:"address1,omitempty"`
	Address2       string   `json:"address2,omitempty"`
	City           string   `json:"city,omitempty"`
	Province       string   `json:"province,omitempty"`
	Country        string   `json:"country,omitempty"`
	Zip            string   `json:"zip,omitempty"`
	OrderDate      string   `json:"orderDate,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	RiskScore      *float64 `json:"riskScore,omitempty"`
	DeliveryStatus string   `json:"deliveryStatus,omitempty"`
	AWB            string   `json:"awb,omitempty"`
	TrainingData   bool     `json:"trainingData"`
}

// ToOrder converts a request to an OrderRecord for the given store.
// The request is expected to be validated already.
func (r *OrderRequest) ToOrder(storeID string) *OrderRecord {
	order := &OrderRecord{
		StoreID:        storeID,
		OrderID:        r.OrderID,
		Name:           r.Name,
		Currency:       r.Currency,
		Address1:       r.Address1,
		Address2:       r.Address2,
		City:           r.City,
		Province:       r.Province,
		Country:        r.Country,
		Zip:            r.Zip,
		RiskScore:      r.RiskScore,
		DeliveryStatus: r.DeliveryStatus,
		AWB:            r.AWB,
		TrainingData:   r.TrainingData,
		CreatedAt:      time.Now().UTC(),
	}

	if amt, err := decimal.NewFromString(r.Amount); err == nil {
		order.Amount = amt
	}
	if t, err := time.Parse(time.RFC3339, r.OrderDate); err == nil {
		utc := t.UTC()
		order.OrderDate = &utc
	}

	return order
}
