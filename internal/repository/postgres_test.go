package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/500lbbicepcurl/Scalysis-public/internal/domain"
)

func newMockRepo(t *testing.T) (*SQLRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newSQLRepository(db, "postgres"), mock
}

var orderRowColumns = []string{
	"store_id", "order_id", "name", "amount", "currency",
	"address1", "address2", "city", "province", "country", "zip",
	"order_date", "risk_score", "delivery_status", "awb", "training_data",
	"flagged_at", "created_at",
}

func TestPostgresListScoredOrders(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(orderRowColumns).
		AddRow("acme", "1", "#1", "100.00", "INR", "", "", "", "", "", "", nil, 0.1, "RTO", "", 0, nil, created).
		AddRow("acme", "2", "#2", "250.50", "INR", "", "", "", "", "", "", created, 0.7, "Delivered", "AWB", 0, created, created)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE store_id = $1")).
		WithArgs("acme").
		WillReturnRows(rows)

	orders, err := repo.ListScoredOrders(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, orders, 2)

	assert.Equal(t, "1", orders[0].OrderID)
	assert.Nil(t, orders[0].OrderDate)
	require.NotNil(t, orders[0].RiskScore)
	assert.Equal(t, 0.1, *orders[0].RiskScore)
	assert.True(t, orders[0].IsReturned())

	assert.Equal(t, "250.5", orders[1].Amount.String())
	assert.NotNil(t, orders[1].FlaggedAt)
	assert.True(t, orders[1].IsShipped())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUnshippedQuery(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("AND awb = ''")).
		WithArgs("acme").
		WillReturnRows(sqlmock.NewRows(orderRowColumns))

	orders, err := repo.ListUnshippedOrders(context.Background(), "acme")
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMarkOrderFlagged(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET flagged_at = $1 WHERE store_id = $2 AND order_id = $3")).
		WithArgs(at, "acme", "1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET flagged_at")).
		WithArgs(at, "acme", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkOrderFlagged(context.Background(), "acme", "1", at))
	assert.ErrorIs(t, repo.MarkOrderFlagged(context.Background(), "acme", "missing", at), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRedactCustomerEscapesPattern(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM orders WHERE store_id = $1 AND address1 LIKE $2 ESCAPE '\'`)).
		WithArgs("acme", `%a\_b@x.com%`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.RedactCustomer(context.Background(), "acme", "a_b@x.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteStoreRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM orders WHERE store_id = $1")).
		WithArgs("acme").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM stores WHERE id = $1")).
		WithArgs("acme").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.DeleteStore(context.Background(), "acme")
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetStoreNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM stores")).
		WithArgs("acme").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "access_token", "model_status", "economics", "created_at", "updated_at"}))

	_, err := repo.GetStore(context.Background(), "acme")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDSN(t *testing.T) {
	dsn := postgresDSN(domain.RepositoryConfig{})
	assert.Equal(t, "host=localhost port=5432 dbname=scalysis sslmode=disable", dsn)

	dsn = postgresDSN(domain.RepositoryConfig{
		PostgresHost:     "db",
		PostgresPort:     6543,
		PostgresDB:       "shop",
		PostgresUser:     "app",
		PostgresPassword: "secret",
		PostgresSSLMode:  "require",
	})
	assert.Equal(t, "host=db port=6543 dbname=shop sslmode=require user=app password=secret", dsn)
}
