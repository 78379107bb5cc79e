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
package common

import (
	"context"
	"fmt"

	"fixer-purse-ledger/internal/models"
	"fixer-purse-ledger/internal/store"

	"go.uber.org/zap"
)

// PurseInfo represents simplified purse information for command-line utilities
type PurseInfo struct {
	Id    string
	Label string
	Purse models.Purse
}

// PurseLabel names a purse by its owner
func PurseLabel(owner models.PurseOwner) string {
	if owner.IsPlatform() {
		return "platform"
	}
	return "user:" + owner.UserId
}

// SelectPurses retrieves purses based on an optional user filter.
// If userFilter is provided, returns only the purse of that user.
// If userFilter is empty, returns all purses, the platform purse first.
func SelectPurses(ctx context.Context, ledger store.LedgerStore, userFilter string, logger *zap.Logger) ([]PurseInfo, error) {
	purses, err := ledger.ListPurses(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list purses: %w", err)
	}

	var selected []PurseInfo
	for _, purse := range purses {
		if userFilter != "" && (purse.Owner.IsPlatform() || purse.Owner.UserId != userFilter) {
			continue
		}
		info := PurseInfo{Id: purse.Id, Label: PurseLabel(purse.Owner), Purse: purse}
		if purse.Owner.IsPlatform() {
			selected = append([]PurseInfo{info}, selected...)
			continue
		}
		selected = append(selected, info)
	}

	if userFilter != "" && len(selected) == 0 {
		return nil, fmt.Errorf("%w: user %s", store.ErrPurseNotFound, userFilter)
	}

	logger.Info("Retrieved purses", zap.Int("count", len(selected)))
	return selected, nil
}
