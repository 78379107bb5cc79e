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

const (
	purseColumns = `id, kind, owner_id, currency, active, available, pending, commission, total_revenue, version, created_at, updated_at`

	transactionColumns = `id, type, amount, from_purse_id, to_purse_id, order_id, payment_id, description, metadata, actor_id,
		from_balance_before, from_balance_after, to_balance_before, to_balance_after, created_at`

	// Purse queries
	queryInsertPurse = `
		INSERT INTO purses (id, kind, owner_id, currency, active, available, pending, commission, total_revenue, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, TRUE, 0, 0, 0, 0, 1, ?, ?)
		ON CONFLICT DO NOTHING`

	queryGetPlatformPurse = `
		SELECT ` + purseColumns + `
		FROM purses
		WHERE kind = 'PLATFORM'`

	queryGetUserPurse = `
		SELECT ` + purseColumns + `
		FROM purses
		WHERE kind = 'USER' AND owner_id = ?`

	queryGetPurseById = `
		SELECT ` + purseColumns + `
		FROM purses
		WHERE id = ?`

	queryListPurses = `
		SELECT ` + purseColumns + `
		FROM purses
		ORDER BY kind, created_at`

	queryUpdatePurseBalances = `
		UPDATE purses
		SET available = ?, pending = ?, commission = ?, total_revenue = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	// Transaction queries
	queryInsertPurseTransaction = `
		INSERT INTO purse_transactions (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, NULL, ?)`

	queryBackfillFromBalanceAfter = `
		UPDATE purse_transactions
		SET from_balance_after = ?
		WHERE id = ? AND from_purse_id IS NOT NULL AND from_balance_after IS NULL`

	queryBackfillToBalanceAfter = `
		UPDATE purse_transactions
		SET to_balance_after = ?
		WHERE id = ? AND to_purse_id IS NOT NULL AND to_balance_after IS NULL`

	queryGetPurseTransactions = `
		SELECT ` + transactionColumns + `
		FROM purse_transactions
		WHERE from_purse_id = ? OR to_purse_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`

	queryCountOrderTransactions = `
		SELECT COUNT(*)
		FROM purse_transactions
		WHERE order_id = ? AND type IN (%s)`

	// Integrity queries
	querySumPurseMovements = `
		SELECT
			COALESCE((SELECT SUM(amount) FROM purse_transactions WHERE to_purse_id = ?), 0),
			COALESCE((SELECT SUM(amount) FROM purse_transactions WHERE from_purse_id = ?), 0)`

	// Setting queries
	queryGetSetting = `
		SELECT setting_key, value, description, updated_at
		FROM platform_settings
		WHERE setting_key = ?`

	queryUpsertSetting = `
		INSERT INTO platform_settings (setting_key, value, description, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (setting_key) DO UPDATE
		SET value = excluded.value, description = excluded.description, updated_at = excluded.updated_at`

	// Order queries
	queryGetOrder = `
		SELECT id, client_id, fixer_id, total_amount, platform_fee, fixer_amount, status, created_at, updated_at
		FROM orders
		WHERE id = ?`

	queryUpsertOrder = `
		INSERT INTO orders (id, client_id, fixer_id, total_amount, platform_fee, fixer_amount, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET client_id = excluded.client_id, fixer_id = excluded.fixer_id, total_amount = excluded.total_amount,
		    platform_fee = excluded.platform_fee, fixer_amount = excluded.fixer_amount,
		    status = excluded.status, updated_at = excluded.updated_at`
)
