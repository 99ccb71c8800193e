package domain

import "time"

// Store is a merchant installation. It carries the platform session and the
// readiness of the store's risk model.
type Store struct {
	// ID is the shop domain, e.g. "acme.myshopify.com".
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`

	// AccessToken authenticates calls to the commerce platform on behalf of
	// the store. Never serialized.
	AccessToken string `json:"-"`

	// ModelStatus gates the simulation pipeline; only ModelStatusReady
	// allows it to run.
	ModelStatus string `json:"modelStatus"`

	// Economics holds the last unit economics saved by the merchant.
	Economics *UnitEconomics `json:"economics,omitempty"`

	// Audit timestamps
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Model status values reported by the scoring pipeline.
const (
	ModelStatusPending  = "pending"
	ModelStatusFetching = "fetching"
	ModelStatusTraining = "training"
	ModelStatusReady    = "ready"
)

// IsReady reports whether the store's risk scores can be simulated.
func (s *Store) IsReady() bool {
	return s != nil && s.ModelStatus == ModelStatusReady
}

// StoreUpdate is the API request payload for updating store state.
type StoreUpdate struct {
	ModelStatus *string `json:"modelStatus,omitempty" validate:"omitempty,oneof=pending fetching training ready"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	AccessToken *string `json:"accessToken,omitempty"`
}
