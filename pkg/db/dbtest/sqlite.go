// Package dbtest opens throwaway sqlite databases carrying the fulfillment schema.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var seq atomic.Int64

const schema = `
CREATE TABLE IF NOT EXISTS customers (
  id TEXT PRIMARY KEY,
  full_name TEXT,
  email TEXT,
  phone TEXT
);
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT,
  weight_grams INTEGER
);
CREATE TABLE IF NOT EXISTS product_variants (
  id TEXT PRIMARY KEY,
  product_id TEXT,
  name TEXT,
  weight_grams INTEGER
);
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL,
  customer_id TEXT,
  email TEXT,
  billing_name TEXT,
  billing_address TEXT,
  order_status TEXT NOT NULL DEFAULT 'pending',
  shipping_status TEXT NOT NULL DEFAULT 'pending',
  payment_status TEXT NOT NULL DEFAULT 'pending',
  stripe_payment_intent_id TEXT,
  subtotal_cents INTEGER NOT NULL DEFAULT 0,
  shipping_cents INTEGER NOT NULL DEFAULT 0,
  total_cents INTEGER NOT NULL DEFAULT 0,
  currency TEXT NOT NULL DEFAULT 'USD',
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT,
  variant_id TEXT,
  name TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price_cents INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME
);
CREATE TABLE IF NOT EXISTS shipping_details (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  name TEXT,
  address TEXT,
  phone TEXT,
  email TEXT
);
CREATE TABLE IF NOT EXISTS store_settings (
  id INTEGER PRIMARY KEY,
  store_name TEXT,
  shipping_origin TEXT,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS packages (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  length_cm REAL NOT NULL,
  width_cm REAL NOT NULL,
  height_cm REAL NOT NULL,
  weight_grams INTEGER NOT NULL DEFAULT 0,
  is_default INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS packages_single_default_idx ON packages (is_default) WHERE is_default = 1;
CREATE TABLE IF NOT EXISTS shipments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'purchased',
  provider TEXT NOT NULL,
  carrier TEXT,
  service TEXT,
  tracking_number TEXT,
  tracking_url TEXT,
  label_url TEXT,
  rate_object_id TEXT,
  label_object_id TEXT,
  price_amount_cents INTEGER NOT NULL DEFAULT 0,
  price_currency TEXT NOT NULL DEFAULT 'USD',
  to_address TEXT,
  from_address TEXT,
  parcel TEXT,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS shipment_events (
  id TEXT PRIMARY KEY,
  shipment_id TEXT NOT NULL,
  event_code TEXT NOT NULL,
  description TEXT,
  raw_payload TEXT,
  occurred_at DATETIME NOT NULL,
  created_at DATETIME
);
CREATE TABLE IF NOT EXISTS webhook_events (
  id TEXT PRIMARY KEY,
  source TEXT NOT NULL,
  external_event_id TEXT NOT NULL,
  event_type TEXT,
  raw_payload TEXT,
  received_at DATETIME NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS webhook_events_source_external_id_key ON webhook_events (source, external_event_id);
CREATE TABLE IF NOT EXISTS invoices (
  id TEXT PRIMARY KEY,
  invoice_number TEXT NOT NULL,
  customer_id TEXT,
  email TEXT,
  billing_name TEXT,
  billing_address TEXT,
  shipping_address TEXT,
  lines TEXT,
  shipping_cents INTEGER NOT NULL DEFAULT 0,
  currency TEXT NOT NULL DEFAULT 'USD',
  status TEXT NOT NULL DEFAULT 'sent',
  stripe_payment_intent_id TEXT,
  order_id TEXT,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
`

// Open returns an isolated in-memory sqlite database with the schema applied.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := fmt.Sprintf("file:dbtest_%d?mode=memory&cache=shared", seq.Add(1))
	conn, err := gorm.Open(sqlite.Open(name), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v\n%s", err, stmt)
		}
	}
	return conn
}
