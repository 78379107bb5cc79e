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
	"errors"
	"fmt"
	"sort"
	"strings"

	"fixer-purse-ledger/internal/escrow"
	"fixer-purse-ledger/internal/store"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRequest reports a request that failed field validation
var ErrInvalidRequest = errors.New("invalid request")

// LedgerService is the in-process surface that order management, payment
// webhooks and admin tooling call into
type LedgerService struct {
	store     store.LedgerStore
	escrow    *escrow.Service
	validator *validator.Validate
}

func NewLedgerService(ledger store.LedgerStore, escrowService *escrow.Service) *LedgerService {
	return &LedgerService{
		store:     ledger,
		escrow:    escrowService,
		validator: validator.New(),
	}
}

func (s *LedgerService) HealthCheck(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// validate returns ErrInvalidRequest naming every failed field and tag
func (s *LedgerService) validate(req any) error {
	err := s.validator.Struct(req)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	details := make([]string, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		details = append(details, fmt.Sprintf("%s failed on '%s'", fieldErr.Field(), fieldErr.Tag()))
	}
	sort.Strings(details)
	return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(details, ", "))
}
