// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/500lbbicepcurl/Scalysis-public/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := newSQLRepository(db, cfg.Driver)

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func newSQLRepository(db *sql.DB, driver string) *SQLRepository {
	return &SQLRepository{
		db:     db,
		driver: driver,
	}
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

const orderColumns = `
	store_id, order_id, name, amount, currency,
	address1, address2, city, province, country, zip,
	order_date, risk_score, delivery_status, awb, training_data,
	flagged_at, created_at`

// SaveOrder inserts or updates an order. An existing order keeps its
// creation time and flag timestamp.
func (r *SQLRepository) SaveOrder(ctx context.Context, storeID string, order *domain.OrderRecord) error {
	if storeID == "" {
		return fmt.Errorf("%w: storeID is required", ErrInvalidInput)
	}
	if order == nil || order.OrderID == "" {
		return fmt.Errorf("%w: orderID is required", ErrInvalidInput)
	}

	createdAt := order.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	training := 0
	if order.TrainingData {
		training = 1
	}

	query := `
		INSERT INTO orders (` + orderColumns + `
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(store_id, order_id) DO UPDATE SET
			name = excluded.name,
			amount = excluded.amount,
			currency = excluded.currency,
			address1 = excluded.address1,
			address2 = excluded.address2,
			city = excluded.city,
			province = excluded.province,
			country = excluded.country,
			zip = excluded.zip,
			order_date = excluded.order_date,
			risk_score = excluded.risk_score,
			delivery_status = excluded.delivery_status,
			awb = excluded.awb,
			training_data = excluded.training_data
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		storeID, order.OrderID, order.Name, order.Amount.String(), order.Currency,
		order.Address1, order.Address2, order.City, order.Province, order.Country, order.Zip,
		nullTime(order.OrderDate), nullFloat(order.RiskScore), order.DeliveryStatus, order.AWB, training,
		nullTime(order.FlaggedAt), createdAt,
	)
	return err
}

// GetOrder retrieves an order by ID with store isolation.
func (r *SQLRepository) GetOrder(ctx context.Context, storeID string, orderID string) (*domain.OrderRecord, error) {
	if storeID == "" {
		return nil, fmt.Errorf("%w: storeID is required", ErrInvalidInput)
	}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE store_id = ? AND order_id = ?`

	order, err := scanOrder(r.db.QueryRowContext(ctx, r.rebind(query), storeID, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ListScoredOrders returns the store's scored, non-training orders sorted
// ascending by risk score. Ties fall back to creation time, then order id.
func (r *SQLRepository) ListScoredOrders(ctx context.Context, storeID string) ([]domain.OrderRecord, error) {
	return r.listOrders(ctx, storeID, false)
}

// ListUnshippedOrders is ListScoredOrders restricted to orders with no
// tracking number.
func (r *SQLRepository) ListUnshippedOrders(ctx context.Context, storeID string) ([]domain.OrderRecord, error) {
	return r.listOrders(ctx, storeID, true)
}

func (r *SQLRepository) listOrders(ctx context.Context, storeID string, unshippedOnly bool) ([]domain.OrderRecord, error) {
	if storeID == "" {
		return nil, fmt.Errorf("%w: storeID is required", ErrInvalidInput)
	}

	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE store_id = ?
		  AND training_data = 0
		  AND risk_score IS NOT NULL`
	if unshippedOnly {
		query += `
		  AND awb = ''`
	}
	query += `
		ORDER BY risk_score ASC, created_at ASC, order_id ASC`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.OrderRecord, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}

	return orders, rows.Err()
}

// MarkOrderFlagged records the time a flag tag was applied.
func (r *SQLRepository) MarkOrderFlagged(ctx context.Context, storeID string, orderID string, at time.Time) error {
	if storeID == "" {
		return fmt.Errorf("%w: storeID is required", ErrInvalidInput)
	}

	query := `UPDATE orders SET flagged_at = ? WHERE store_id = ? AND order_id = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), at.UTC(), storeID, orderID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// SaveStore inserts or updates a store.
func (r *SQLRepository) SaveStore(ctx context.Context, store *domain.Store) error {
	if store == nil || store.ID == "" {
		return fmt.Errorf("%w: store id is required", ErrInvalidInput)
	}

	var economics sql.NullString
	if store.Economics != nil {
		data, err := json.Marshal(store.Economics)
		if err != nil {
			return fmt.Errorf("failed to encode economics: %w", err)
		}
		economics = sql.NullString{String: string(data), Valid: true}
	}

	status := store.ModelStatus
	if status == "" {
		status = domain.ModelStatusPending
	}

	now := time.Now().UTC()
	createdAt := store.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := `
		INSERT INTO stores (
			id, email, access_token, model_status, economics, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			access_token = excluded.access_token,
			model_status = excluded.model_status,
			economics = excluded.economics,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		store.ID, store.Email, store.AccessToken, status, economics, createdAt, now,
	)
	return err
}

// GetStore retrieves a store by ID.
func (r *SQLRepository) GetStore(ctx context.Context, storeID string) (*domain.Store, error) {
	if storeID == "" {
		return nil, fmt.Errorf("%w: storeID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, email, access_token, model_status, economics, created_at, updated_at
		FROM stores
		WHERE id = ?
	`

	var s domain.Store
	var economics sql.NullString

	err := r.db.QueryRowContext(ctx, r.rebind(query), storeID).Scan(
		&s.ID, &s.Email, &s.AccessToken, &s.ModelStatus, &economics,
		&s.CreatedAt, &s.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if economics.Valid && economics.String != "" {
		var econ domain.UnitEconomics
		if err := json.Unmarshal([]byte(economics.String), &econ); err != nil {
			return nil, fmt.Errorf("failed to parse store economics: %w", err)
		}
		s.Economics = &econ
	}

	return &s, nil
}

// DeleteStore removes a store and every order it owns.
func (r *SQLRepository) DeleteStore(ctx context.Context, storeID string) error {
	if storeID == "" {
		return fmt.Errorf("%w: storeID is required", ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM orders WHERE store_id = ?`), storeID); err != nil {
		return fmt.Errorf("failed to delete orders: %w", err)
	}
	if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM stores WHERE id = ?`), storeID); err != nil {
		return fmt.Errorf("failed to delete store: %w", err)
	}

	return tx.Commit()
}

// RedactCustomer deletes the store's orders whose address mentions email.
func (r *SQLRepository) RedactCustomer(ctx context.Context, storeID string, email string) (int64, error) {
	if storeID == "" || email == "" {
		return 0, fmt.Errorf("%w: storeID and email are required", ErrInvalidInput)
	}

	query := `DELETE FROM orders WHERE store_id = ? AND address1 LIKE ? ESCAPE '\'`

	result, err := r.db.ExecContext(ctx, r.rebind(query), storeID, "%"+escapeLike(email)+"%")
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.OrderRecord, error) {
	var o domain.OrderRecord
	var orderDate, flaggedAt sql.NullTime
	var score sql.NullFloat64
	var training int

	if err := row.Scan(
		&o.StoreID, &o.OrderID, &o.Name, &o.Amount, &o.Currency,
		&o.Address1, &o.Address2, &o.City, &o.Province, &o.Country, &o.Zip,
		&orderDate, &score, &o.DeliveryStatus, &o.AWB, &training,
		&flaggedAt, &o.CreatedAt,
	); err != nil {
		return nil, err
	}

	if orderDate.Valid {
		t := orderDate.Time.UTC()
		o.OrderDate = &t
	}
	if flaggedAt.Valid {
		t := flaggedAt.Time.UTC()
		o.FlaggedAt = &t
	}
	if score.Valid {
		v := score.Float64
		o.RiskScore = &v
	}
	o.TrainingData = training == 1

	return &o, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
