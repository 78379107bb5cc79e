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
	"errors"
	"fmt"
	"time"

	"fixer-purse-ledger/internal/models"
	"fixer-purse-ledger/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errEmptyUserId = fmt.Errorf("%w: user id cannot be empty", store.ErrInvalidTransaction)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPurse(row rowScanner) (*models.Purse, error) {
	var purse models.Purse
	var kind string
	var ownerId sql.NullString
	err := row.Scan(&purse.Id, &kind, &ownerId, &purse.Currency, &purse.Active,
		&purse.Available, &purse.Pending, &purse.Commission, &purse.TotalRevenue,
		&purse.Version, &purse.CreatedAt, &purse.UpdatedAt)
	if err != nil {
		return nil, err
	}
	purse.Owner = models.PurseOwner{Kind: models.PurseKind(kind), UserId: ownerId.String}
	return &purse, nil
}

// getOrCreatePurse inserts the purse if absent and reads it back. The unique
// indexes turn a concurrent duplicate create into a no-op, so racing callers
// converge on the same row.
func getOrCreatePurse(ctx context.Context, q querier, d dialect, owner models.PurseOwner, currency string) (*models.Purse, error) {
	purse, err := findPurseByOwner(ctx, q, d, owner)
	if err == nil {
		return purse, nil
	}
	if !errors.Is(err, store.ErrPurseNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	result, err := q.ExecContext(ctx, d.rebind(queryInsertPurse),
		uuid.New().String(), string(owner.Kind), nullString(owner.UserId), currency, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create purse: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows > 0 {
		zap.L().Info("Purse created",
			zap.String("kind", string(owner.Kind)),
			zap.String("owner_id", owner.UserId),
			zap.String("currency", currency))
	}

	return findPurseByOwner(ctx, q, d, owner)
}

func findPurseByOwner(ctx context.Context, q querier, d dialect, owner models.PurseOwner) (*models.Purse, error) {
	var row *sql.Row
	if owner.IsPlatform() {
		row = q.QueryRowContext(ctx, d.rebind(queryGetPlatformPurse))
	} else {
		row = q.QueryRowContext(ctx, d.rebind(queryGetUserPurse), owner.UserId)
	}

	purse, err := scanPurse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrPurseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get purse: %w", err)
	}
	return purse, nil
}

// getPurse reads one purse by id; lock adds the row lock where the backend has one
func getPurse(ctx context.Context, q querier, d dialect, purseId string, lock bool) (*models.Purse, error) {
	query := queryGetPurseById
	if lock {
		query += d.forUpdate()
	}

	purse, err := scanPurse(q.QueryRowContext(ctx, d.rebind(query), purseId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrPurseNotFound, purseId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get purse %s: %w", purseId, err)
	}
	return purse, nil
}

// applyPurseDelta mutates the balance fields of one purse with optimistic locking
func applyPurseDelta(ctx context.Context, q querier, d dialect, purseId string, delta models.BalanceDelta) (*models.Purse, error) {
	current, err := getPurse(ctx, q, d, purseId, true)
	if err != nil {
		return nil, err
	}

	updated := delta.Apply(*current)
	if updated.Available.IsNegative() || updated.Pending.IsNegative() ||
		updated.Commission.IsNegative() || updated.TotalRevenue.IsNegative() {
		return nil, fmt.Errorf("%w: purse %s available=%s pending=%s commission=%s",
			store.ErrInsufficientBalance, purseId,
			updated.Available.String(), updated.Pending.String(), updated.Commission.String())
	}

	updated.UpdatedAt = time.Now().UTC()
	result, err := q.ExecContext(ctx, d.rebind(queryUpdatePurseBalances),
		updated.Available.String(), updated.Pending.String(), updated.Commission.String(), updated.TotalRevenue.String(),
		updated.UpdatedAt, purseId, current.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to update purse balances: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("purse %s balance update failed - %w", purseId, store.ErrConcurrentModification)
	}
	updated.Version = current.Version + 1

	zap.L().Debug("Purse balances updated",
		zap.String("purse_id", purseId),
		zap.String("old_total", current.Total().String()),
		zap.String("new_total", updated.Total().String()),
		zap.Int64("version", updated.Version))

	return &updated, nil
}

func (s *Service) ListPurses(ctx context.Context) ([]models.Purse, error) {
	zap.L().Debug("Listing purses")

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(queryListPurses))
	if err != nil {
		return nil, fmt.Errorf("failed to list purses: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var purses []models.Purse
	for rows.Next() {
		purse, err := scanPurse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purse: %w", err)
		}
		purses = append(purses, *purse)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during purse row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating purse rows: %w", err)
	}

	return purses, nil
}
