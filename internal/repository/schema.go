package repository

// Schema definitions for the Scalysis database.
// Compatible with both SQLite and PostgreSQL.

const schemaStores = `
CREATE TABLE IF NOT EXISTS stores (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL DEFAULT '',
    access_token TEXT NOT NULL DEFAULT '',
    model_status TEXT NOT NULL DEFAULT 'pending',
    economics TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

// schemaOrders defines the orders table. risk_score is NULL until the
// predictor scores the order; awb is empty until the order ships.
const schemaOrders = `
CREATE TABLE IF NOT EXISTS orders (
    store_id TEXT NOT NULL,
    order_id TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    amount TEXT NOT NULL DEFAULT '0',
    currency TEXT NOT NULL DEFAULT '',
    address1 TEXT NOT NULL DEFAULT '',
    address2 TEXT NOT NULL DEFAULT '',
    city TEXT NOT NULL DEFAULT '',
    province TEXT NOT NULL DEFAULT '',
    country TEXT NOT NULL DEFAULT '',
    zip TEXT NOT NULL DEFAULT '',
    order_date TIMESTAMP,
    risk_score REAL,
    delivery_status TEXT NOT NULL DEFAULT '',
    awb TEXT NOT NULL DEFAULT '',
    training_data INTEGER NOT NULL DEFAULT 0,
    flagged_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (store_id, order_id)
);

CREATE INDEX IF NOT EXISTS idx_orders_score ON orders(store_id, training_data, risk_score);
CREATE INDEX IF NOT EXISTS idx_orders_awb ON orders(store_id, awb);
CREATE INDEX IF NOT EXISTS idx_orders_date ON orders(store_id, order_date);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaStores,
		schemaOrders,
	}
}
