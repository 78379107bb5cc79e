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
	"fmt"

	"fixer-purse-ledger/internal/models"
	"fixer-purse-ledger/internal/store"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.LedgerStore.
var _ store.LedgerStore = (*Service)(nil)

type Service struct {
	db       *sql.DB
	dialect  dialect
	currency string
}

func NewService(ctx context.Context, cfg models.DatabaseConfig, currency string) (*Service, error) {
	// Validate configuration
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}
	if currency == "" {
		return nil, fmt.Errorf("currency cannot be empty")
	}

	d, err := newDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dsn, err := d.dsn(cfg.Path, cfg.URL)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Opening database", zap.String("driver", cfg.Driver), zap.String("file", cfg.Path))
	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	if d.driver == driverSQLite && cfg.Path == ":memory:" {
		// Every connection to :memory: is a separate database, so pin exactly one forever
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after ping failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := newServiceWithDB(db, d, currency)
	if err := service.InitSchema(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after schema failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully", zap.String("currency", currency))
	return service, nil
}

func newServiceWithDB(db *sql.DB, d dialect, currency string) *Service {
	return &Service{db: db, dialect: d, currency: currency}
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RunInTx runs fn inside one database transaction. Any error from fn rolls back
// every insert and update made through the scope.
func (s *Service) RunInTx(ctx context.Context, fn func(tx store.LedgerTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&ledgerTx{tx: tx, dialect: s.dialect, currency: s.currency}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Purse convenience methods

func (s *Service) GetPlatformPurse(ctx context.Context) (*models.Purse, error) {
	return getOrCreatePurse(ctx, s.db, s.dialect, models.PlatformOwner(), s.currency)
}

func (s *Service) GetOrCreateUserPurse(ctx context.Context, userId string) (*models.Purse, error) {
	if userId == "" {
		return nil, errEmptyUserId
	}
	return getOrCreatePurse(ctx, s.db, s.dialect, models.UserOwner(userId), s.currency)
}

func (s *Service) GetPurse(ctx context.Context, purseId string) (*models.Purse, error) {
	return getPurse(ctx, s.db, s.dialect, purseId, false)
}

func (s *Service) GetSetting(ctx context.Context, key string) (*models.PlatformSetting, error) {
	return getSetting(ctx, s.db, s.dialect, key)
}

func (s *Service) GetOrder(ctx context.Context, orderId string) (*models.Order, error) {
	return getOrder(ctx, s.db, s.dialect, orderId, false)
}
