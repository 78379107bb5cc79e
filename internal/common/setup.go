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
	"log"
	"strings"

	"fixer-purse-ledger/internal/api"
	"fixer-purse-ledger/internal/database"
	"fixer-purse-ledger/internal/escrow"
	"fixer-purse-ledger/internal/formance"
	"fixer-purse-ledger/internal/idempotency"
	"fixer-purse-ledger/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService     *database.Service
	EscrowService *escrow.Service
	LedgerService *api.LedgerService
	Mirror        *formance.Service
	redisClient   *redis.Client
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices wires the store, the optional idempotency guard and
// Formance mirror, the escrow workflows and the ledger facade.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		return nil, err
	}
	services := &Services{DbService: dbService}

	escrowCfg := escrow.ServiceConfig{
		Store: dbService,
		Scale: cfg.Ledger.CurrencyScale,
	}

	if cfg.Redis.Addr != "" {
		zap.L().Info("Connecting idempotency guard", zap.String("addr", cfg.Redis.Addr))
		client, err := idempotency.Connect(ctx, cfg.Redis)
		if err != nil {
			services.Close()
			return nil, err
		}
		services.redisClient = client
		escrowCfg.Guard = idempotency.NewRedisGuard(client, cfg.Redis.IdempotencyTTL)
	} else {
		zap.L().Info("Idempotency guard disabled (REDIS_ADDR not set)")
	}

	if cfg.Formance.Enabled() {
		mirror, err := formance.NewService(ctx, cfg.Formance, cfg.Ledger.Currency, cfg.Ledger.CurrencyScale)
		if err != nil {
			services.Close()
			return nil, err
		}
		services.Mirror = mirror
		escrowCfg.Publisher = mirror
	} else {
		zap.L().Info("Formance mirror disabled (credentials not set)")
	}

	escrowService, err := escrow.NewService(escrowCfg)
	if err != nil {
		services.Close()
		return nil, err
	}
	services.EscrowService = escrowService
	services.LedgerService = api.NewLedgerService(dbService, escrowService)

	zap.L().Info("Services initialized",
		zap.String("currency", cfg.Ledger.Currency),
		zap.Int32("scale", cfg.Ledger.CurrencyScale),
		zap.Bool("guard", escrowCfg.Guard != nil),
		zap.Bool("mirror", services.Mirror != nil))
	return services, nil
}

// InitializeDatabaseOnly initializes just the purse store.
// Useful for read-only operations like balance reports and integrity sweeps.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database, cfg.Ledger.Currency)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbService, nil
}

func (cs *Services) Close() {
	if cs.redisClient != nil {
		if err := cs.redisClient.Close(); err != nil {
			zap.L().Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
