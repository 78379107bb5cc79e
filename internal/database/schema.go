/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"fmt"
)

const schema = `
	-- Purses (Current State - Hot Data)
	CREATE TABLE IF NOT EXISTS purses (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL CHECK (kind IN ('PLATFORM', 'USER')),
		owner_id TEXT,
		currency TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		available NUMERIC NOT NULL DEFAULT 0,
		pending NUMERIC NOT NULL DEFAULT 0,
		commission NUMERIC NOT NULL DEFAULT 0,
		total_revenue NUMERIC NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CHECK ((kind = 'PLATFORM' AND owner_id IS NULL) OR (kind = 'USER' AND owner_id IS NOT NULL))
	);

	-- Exactly one platform purse, one purse per user
	CREATE UNIQUE INDEX IF NOT EXISTS idx_purses_platform_singleton ON purses(kind) WHERE kind = 'PLATFORM';
	CREATE UNIQUE INDEX IF NOT EXISTS idx_purses_owner ON purses(owner_id) WHERE owner_id IS NOT NULL;

	-- Purse Transactions (Audit Trail - Cold Data)
	CREATE TABLE IF NOT EXISTS purse_transactions (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		amount NUMERIC NOT NULL CHECK (amount > 0),
		from_purse_id TEXT REFERENCES purses(id),
		to_purse_id TEXT REFERENCES purses(id),
		order_id TEXT,
		payment_id TEXT,
		description TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '{}',
		actor_id TEXT,
		from_balance_before NUMERIC,
		from_balance_after NUMERIC,
		to_balance_before NUMERIC,
		to_balance_after NUMERIC,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CHECK (from_purse_id IS NOT NULL OR to_purse_id IS NOT NULL)
	);

	CREATE INDEX IF NOT EXISTS idx_purse_transactions_from ON purse_transactions(from_purse_id);
	CREATE INDEX IF NOT EXISTS idx_purse_transactions_to ON purse_transactions(to_purse_id);
	CREATE INDEX IF NOT EXISTS idx_purse_transactions_order ON purse_transactions(order_id);
	CREATE INDEX IF NOT EXISTS idx_purse_transactions_created_at ON purse_transactions(created_at);

	-- Movements that happen at most once per order
	CREATE UNIQUE INDEX IF NOT EXISTS idx_purse_transactions_once_per_order ON purse_transactions(type, order_id)
		WHERE order_id IS NOT NULL AND type IN ('PAYMENT_RECEIVED', 'PAYOUT', 'REFUND_ESCROW');

	-- Platform Settings (externally administered)
	CREATE TABLE IF NOT EXISTS platform_settings (
		setting_key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Orders (projection owned by order management)
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		fixer_id TEXT NOT NULL,
		total_amount NUMERIC NOT NULL,
		platform_fee NUMERIC NOT NULL,
		fixer_amount NUMERIC NOT NULL,
		status TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_orders_client ON orders(client_id);
	CREATE INDEX IF NOT EXISTS idx_orders_fixer ON orders(fixer_id);
	`

// InitSchema creates every table and index if missing. Safe to run repeatedly.
func (s *Service) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("unable to apply schema: %w", err)
	}
	return nil
}
