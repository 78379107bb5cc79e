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

package api

import (
	"context"
	"fmt"

	"fixer-purse-ledger/internal/models"

	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// GetPlatformPurse returns the platform purse, creating it on first use
func (s *LedgerService) GetPlatformPurse(ctx context.Context) (*models.Purse, error) {
	purse, err := s.store.GetPlatformPurse(ctx)
	if err != nil {
		zap.L().Error("Failed to get platform purse", zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve platform purse: %w", err)
	}
	return purse, nil
}

// GetOrCreateUserPurse returns the purse owned by userId, creating it on first use
func (s *LedgerService) GetOrCreateUserPurse(ctx context.Context, userId string) (*models.Purse, error) {
	if userId == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}

	purse, err := s.store.GetOrCreateUserPurse(ctx, userId)
	if err != nil {
		zap.L().Error("Failed to get user purse", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve purse for user %s: %w", userId, err)
	}
	return purse, nil
}

// GetPurseBalance returns the balance components and total of a purse
func (s *LedgerService) GetPurseBalance(ctx context.Context, purseId string) (*models.PurseBalance, error) {
	if purseId == "" {
		return nil, fmt.Errorf("%w: purse_id is required", ErrInvalidRequest)
	}

	balance, err := s.store.GetPurseBalance(ctx, purseId)
	if err != nil {
		zap.L().Error("Failed to get purse balance", zap.String("purse_id", purseId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve balance: %w", err)
	}
	return balance, nil
}

// VerifyPurseIntegrity reconciles a purse against its transaction history.
// Intended for ops tooling, not the request path.
func (s *LedgerService) VerifyPurseIntegrity(ctx context.Context, purseId string) (*models.IntegrityReport, error) {
	if purseId == "" {
		return nil, fmt.Errorf("%w: purse_id is required", ErrInvalidRequest)
	}

	report, err := s.store.VerifyPurseIntegrity(ctx, purseId)
	if err != nil {
		return nil, fmt.Errorf("failed to verify purse integrity: %w", err)
	}
	return report, nil
}

// GetPurseTransactions returns paginated purse history, newest first
func (s *LedgerService) GetPurseTransactions(ctx context.Context, req models.PurseHistoryRequest) ([]models.PurseTransaction, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	if req.Limit <= 0 {
		req.Limit = defaultHistoryLimit
	}
	if req.Limit > maxHistoryLimit {
		req.Limit = maxHistoryLimit
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	transactions, err := s.store.GetPurseTransactions(ctx, req.PurseId, req.Limit, req.Offset)
	if err != nil {
		zap.L().Error("Failed to get purse transactions", zap.String("purse_id", req.PurseId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve transaction history: %w", err)
	}
	return transactions, nil
}
