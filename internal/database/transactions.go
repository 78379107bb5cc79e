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
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fixer-purse-ledger/internal/models"
	"fixer-purse-ledger/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// createPurseTransaction records one transfer intent with before-balance
// snapshots. The caller mutates the purses and backfills the after-balances.
func createPurseTransaction(ctx context.Context, q querier, d dialect, params store.CreatePurseTransactionParams) (*models.PurseTransaction, error) {
	if !params.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", store.ErrInvalidTransaction, params.Type)
	}
	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s %s", store.ErrInvalidAmount, params.Type, params.Amount.String())
	}
	if params.FromPurseId == "" && params.ToPurseId == "" {
		return nil, fmt.Errorf("%w: %s has neither source nor destination purse", store.ErrInvalidTransaction, params.Type)
	}

	transaction := &models.PurseTransaction{
		Id:          uuid.New().String(),
		Type:        params.Type,
		Amount:      params.Amount,
		FromPurseId: params.FromPurseId,
		ToPurseId:   params.ToPurseId,
		OrderId:     params.OrderId,
		PaymentId:   params.PaymentId,
		Description: params.Description,
		Metadata:    params.Metadata,
		ActorId:     params.ActorId,
		CreatedAt:   time.Now().UTC(),
	}

	// Snapshot the current totals of each side
	if params.FromPurseId != "" {
		from, err := getPurse(ctx, q, d, params.FromPurseId, true)
		if err != nil {
			return nil, err
		}
		transaction.FromBalanceBefore = decimal.NewNullDecimal(from.Total())
	}
	if params.ToPurseId != "" {
		to, err := getPurse(ctx, q, d, params.ToPurseId, true)
		if err != nil {
			return nil, err
		}
		transaction.ToBalanceBefore = decimal.NewNullDecimal(to.Total())
	}

	metadata, err := encodeMetadata(params.Metadata)
	if err != nil {
		return nil, err
	}

	_, err = q.ExecContext(ctx, d.rebind(queryInsertPurseTransaction),
		transaction.Id, string(transaction.Type), transaction.Amount.String(),
		nullString(transaction.FromPurseId), nullString(transaction.ToPurseId),
		nullString(transaction.OrderId), nullString(transaction.PaymentId),
		transaction.Description, metadata, nullString(transaction.ActorId),
		nullDecimal(transaction.FromBalanceBefore), nullDecimal(transaction.ToBalanceBefore),
		transaction.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			zap.L().Warn("Duplicate purse transaction rejected",
				zap.String("type", string(params.Type)),
				zap.String("order_id", params.OrderId),
				zap.String("payment_id", params.PaymentId))
			return nil, fmt.Errorf("%w: %s for order %s already recorded", store.ErrDuplicateTransaction, params.Type, params.OrderId)
		}
		return nil, fmt.Errorf("failed to insert purse transaction: %w", err)
	}

	zap.L().Info("Purse transaction recorded",
		zap.String("transaction_id", transaction.Id),
		zap.String("type", string(transaction.Type)),
		zap.String("amount", transaction.Amount.String()),
		zap.String("from_purse_id", transaction.FromPurseId),
		zap.String("to_purse_id", transaction.ToPurseId),
		zap.String("order_id", transaction.OrderId))

	return transaction, nil
}

// setBalanceAfter backfills one after-balance snapshot. A snapshot that is
// already set, or a side the transaction does not have, is immutable.
func setBalanceAfter(ctx context.Context, q querier, d dialect, transactionId string, side models.TransactionSide, balance decimal.Decimal) error {
	var query string
	switch side {
	case models.SideFrom:
		query = queryBackfillFromBalanceAfter
	case models.SideTo:
		query = queryBackfillToBalanceAfter
	default:
		return fmt.Errorf("%w: unknown side %q", store.ErrInvalidTransaction, side)
	}

	result, err := q.ExecContext(ctx, d.rebind(query), balance.String(), transactionId)
	if err != nil {
		return fmt.Errorf("failed to backfill %s balance: %w", side, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s balance of %s", store.ErrTransactionImmutable, side, transactionId)
	}
	return nil
}

func hasOrderTransaction(ctx context.Context, q querier, d dialect, orderId string, types []models.TransactionType) (bool, error) {
	if orderId == "" || len(types) == 0 {
		return false, nil
	}

	args := make([]any, 0, len(types)+1)
	args = append(args, orderId)
	for _, t := range types {
		args = append(args, string(t))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(types)), ", ")

	var count int
	query := fmt.Sprintf(queryCountOrderTransactions, placeholders)
	if err := q.QueryRowContext(ctx, d.rebind(query), args...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count order transactions: %w", err)
	}
	return count > 0, nil
}

// GetPurseTransactions returns paginated history touching a purse, newest first
func (s *Service) GetPurseTransactions(ctx context.Context, purseId string, limit, offset int) ([]models.PurseTransaction, error) {
	zap.L().Debug("Getting purse transactions",
		zap.String("purse_id", purseId),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(queryGetPurseTransactions), purseId, purseId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get purse transactions: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var transactions []models.PurseTransaction
	for rows.Next() {
		tx, err := scanPurseTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purse transaction: %w", err)
		}
		transactions = append(transactions, *tx)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during transaction row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}

	return transactions, nil
}

func scanPurseTransaction(row rowScanner) (*models.PurseTransaction, error) {
	var tx models.PurseTransaction
	var txType, metadata string
	var fromId, toId, orderId, paymentId, actorId sql.NullString
	err := row.Scan(&tx.Id, &txType, &tx.Amount, &fromId, &toId, &orderId, &paymentId,
		&tx.Description, &metadata, &actorId,
		&tx.FromBalanceBefore, &tx.FromBalanceAfter, &tx.ToBalanceBefore, &tx.ToBalanceAfter,
		&tx.CreatedAt)
	if err != nil {
		return nil, err
	}

	tx.Type = models.TransactionType(txType)
	tx.FromPurseId = fromId.String
	tx.ToPurseId = toId.String
	tx.OrderId = orderId.String
	tx.PaymentId = paymentId.String
	tx.ActorId = actorId.String

	if metadata != "" && metadata != "{}" {
		if err := json.Unmarshal([]byte(metadata), &tx.Metadata); err != nil {
			return nil, fmt.Errorf("failed to parse metadata of %s: %w", tx.Id, err)
		}
	}
	return &tx, nil
}

func encodeMetadata(metadata map[string]any) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(raw), nil
}

func nullDecimal(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}
