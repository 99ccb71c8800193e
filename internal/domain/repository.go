// Package domain defines the core interfaces and types for Scalysis.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All order methods require storeID for strict per-store isolation.
type Repository interface {
	// Order operations
	SaveOrder(ctx context.Context, storeID string, order *OrderRecord) error
	GetOrder(ctx context.Context, storeID string, orderID string) (*OrderRecord, error)

	// ListScoredOrders returns the store's non-training orders that carry a
	// risk score, sorted ascending by score with stable tie-breaking.
	ListScoredOrders(ctx context.Context, storeID string) ([]OrderRecord, error)

	// ListUnshippedOrders is ListScoredOrders restricted to orders without
	// a tracking number.
	ListUnshippedOrders(ctx context.Context, storeID string) ([]OrderRecord, error)

	// MarkOrderFlagged records that a tag was applied on the platform.
	MarkOrderFlagged(ctx context.Context, storeID string, orderID string, at time.Time) error

	// Store operations
	SaveStore(ctx context.Context, store *Store) error
	GetStore(ctx context.Context, storeID string) (*Store, error)

	// Privacy operations. DeleteStore removes the store and all its orders.
	// RedactCustomer removes the store's orders whose address mentions email
	// and returns how many were removed.
	DeleteStore(ctx context.Context, storeID string) error
	RedactCustomer(ctx context.Context, storeID string, email string) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `yaml:"driver"`

	// SQLite specific
	SQLitePath string `yaml:"sqlite_path"`

	// PostgreSQL specific
	PostgresHost     string `yaml:"postgres_host"`
	PostgresPort     int    `yaml:"postgres_port"`
	PostgresUser     string `yaml:"postgres_user"`
	PostgresPassword string `yaml:"postgres_password"`
	PostgresDB       string `yaml:"postgres_db"`
	PostgresSSLMode  string `yaml:"postgres_sslmode"`

	// Connection pool settings
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}
