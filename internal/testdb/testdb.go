// Package testdb opens an in-memory sqlite database with the settlement
// schema for service and repository tests.
package testdb

import (
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var schema = []string{
	`CREATE TABLE territories (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL,
		currency TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE checkouts (
		id INTEGER PRIMARY KEY,
		territory_id INTEGER NOT NULL,
		buyer_id INTEGER NOT NULL,
		currency TEXT NOT NULL,
		total_amount INTEGER NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE checkout_items (
		id INTEGER PRIMARY KEY,
		checkout_id INTEGER NOT NULL,
		store_id INTEGER NOT NULL,
		item_id INTEGER NOT NULL,
		item_type TEXT NOT NULL,
		title TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price INTEGER NOT NULL,
		subtotal INTEGER NOT NULL,
		fee_amount INTEGER NOT NULL DEFAULT 0,
		total_amount INTEGER NOT NULL,
		currency TEXT NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE platform_fee_configs (
		id INTEGER PRIMARY KEY,
		territory_id INTEGER NOT NULL,
		item_type TEXT NOT NULL,
		fee_mode TEXT NOT NULL,
		fee_value INTEGER NOT NULL,
		currency TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT 0,
		valid_from DATETIME,
		valid_until DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_platform_fee_configs_active
		ON platform_fee_configs (territory_id, item_type) WHERE active`,
	`CREATE TABLE seller_transactions (
		id INTEGER PRIMARY KEY,
		territory_id INTEGER NOT NULL,
		store_id INTEGER NOT NULL,
		checkout_id INTEGER NOT NULL,
		gross_amount INTEGER NOT NULL,
		fee_amount INTEGER NOT NULL,
		net_amount INTEGER NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		payout_id INTEGER,
		settled_at DATETIME NOT NULL,
		ready_at DATETIME,
		paid_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_seller_transactions_checkout_store
		ON seller_transactions (checkout_id, store_id)`,
	`CREATE TABLE financial_transactions (
		id INTEGER PRIMARY KEY,
		territory_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		amount INTEGER NOT NULL,
		currency TEXT NOT NULL,
		related_entity_type TEXT NOT NULL,
		related_entity_id INTEGER NOT NULL,
		related_transaction_ids TEXT,
		metadata TEXT,
		occurred_at DATETIME NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_financial_transactions_source
		ON financial_transactions (type, related_entity_type, related_entity_id)`,
	`CREATE TABLE financial_transaction_status_history (
		id INTEGER PRIMARY KEY,
		transaction_id INTEGER NOT NULL,
		from_status TEXT NOT NULL,
		to_status TEXT NOT NULL,
		reason TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE platform_revenue_transactions (
		id INTEGER PRIMARY KEY,
		territory_id INTEGER NOT NULL,
		checkout_id INTEGER NOT NULL,
		transaction_id INTEGER NOT NULL,
		amount INTEGER NOT NULL,
		currency TEXT NOT NULL,
		created_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_platform_revenue_transactions_checkout
		ON platform_revenue_transactions (checkout_id)`,
	`CREATE TABLE platform_expense_transactions (
		id INTEGER PRIMARY KEY,
		territory_id INTEGER NOT NULL,
		payout_id INTEGER NOT NULL,
		transaction_id INTEGER NOT NULL,
		amount INTEGER NOT NULL,
		currency TEXT NOT NULL,
		created_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_platform_expense_transactions_payout
		ON platform_expense_transactions (payout_id)`,
	`CREATE TABLE platform_financial_balances (
		territory_id INTEGER PRIMARY KEY,
		total_revenue INTEGER NOT NULL DEFAULT 0,
		total_expenses INTEGER NOT NULL DEFAULT 0,
		net_balance INTEGER NOT NULL DEFAULT 0,
		currency TEXT NOT NULL,
		updated_at DATETIME
	)`,
	`CREATE TABLE territory_payout_configs (
		id INTEGER PRIMARY KEY,
		territory_id INTEGER NOT NULL,
		retention_days INTEGER NOT NULL,
		minimum_payout_amount INTEGER NOT NULL,
		maximum_payout_amount INTEGER NOT NULL DEFAULT 0,
		frequency TEXT NOT NULL,
		auto_payout_enabled BOOLEAN NOT NULL DEFAULT 0,
		requires_approval BOOLEAN NOT NULL DEFAULT 0,
		gateway TEXT NOT NULL,
		currency TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_territory_payout_configs_active
		ON territory_payout_configs (territory_id) WHERE active`,
	`CREATE TABLE payouts (
		id INTEGER PRIMARY KEY,
		reference TEXT NOT NULL,
		territory_id INTEGER NOT NULL,
		store_id INTEGER NOT NULL,
		amount INTEGER NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		gateway TEXT NOT NULL,
		provider_ref TEXT,
		initiated_by TEXT NOT NULL,
		failure_reason TEXT,
		requested_at DATETIME NOT NULL,
		paid_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_payouts_reference ON payouts (reference)`,
}

// Open returns a fresh in-memory database with the full schema. Each
// test gets its own database, named after the test so shared-cache
// connections within a test still see the same data.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, t.Name())

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}
