package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU (Community) + Redis (Pro).
// All methods require storeID for strict per-store isolation.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, storeID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, storeID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, storeID string, key string) error

	// GetCurve retrieves the store's cached curve.
	// Returns nil, nil if no curve is cached.
	GetCurve(ctx context.Context, storeID string) (*CachedCurve, error)

	// SetCurve caches the store's curve until orders change.
	SetCurve(ctx context.Context, storeID string, curve *CachedCurve, ttl time.Duration) error

	// InvalidateCurve drops the store's cached curve.
	InvalidateCurve(ctx context.Context, storeID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CachedCurve is a built curve together with the size of the order set it
// was built from.
type CachedCurve struct {
	OrderCount int          `json:"orderCount"`
	Points     []CurvePoint `json:"points"`
	BuiltAt    time.Time    `json:"builtAt"`
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string `yaml:"type"`

	// Local LRU cache settings (Community tier)
	LocalMaxSize int           `yaml:"local_max_size"`
	LocalTTL     time.Duration `yaml:"local_ttl"`

	// Redis settings (Pro tier)
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// Two-phase settings
	EnableTwoPhase bool `yaml:"enable_two_phase"` // If true, check local first, then Redis

	// CurveTTL bounds how long a built curve is reused.
	CurveTTL time.Duration `yaml:"curve_ttl"`
}
