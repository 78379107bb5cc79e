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
package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"fixer-purse-ledger/internal/common"
	"fixer-purse-ledger/internal/config"
	"fixer-purse-ledger/internal/database"

	"go.uber.org/zap"
)

func seedSettings(ctx context.Context, dbService *database.Service, settingsFile string) {
	if _, err := os.Stat(settingsFile); errors.Is(err, os.ErrNotExist) {
		zap.L().Warn("Settings file not found, workflows will use default percentages",
			zap.String("file", settingsFile))
		return
	}

	zap.L().Info("Loading settings seed", zap.String("file", settingsFile))
	seeds, err := common.LoadSettingsSeed(settingsFile)
	if err != nil {
		zap.L().Fatal("Failed to load settings seed", zap.Error(err))
	}

	if err := common.ApplySettingsSeed(ctx, dbService, seeds); err != nil {
		zap.L().Fatal("Failed to seed settings", zap.Error(err))
	}
	zap.L().Info("Settings seeded", zap.Int("count", len(seeds)))
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	settingsFlag := flag.String("settings", "", "Settings seed file (defaults to SETTINGS_FILE)")
	skipSeedFlag := flag.Bool("skip-seed", false, "Only apply the schema and create the platform purse")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	// Opening the store applies the schema
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	if !*skipSeedFlag {
		settingsFile := cfg.Ledger.SettingsFile
		if *settingsFlag != "" {
			settingsFile = *settingsFlag
		}
		seedSettings(ctx, dbService, settingsFile)
	}

	platform, err := dbService.GetPlatformPurse(ctx)
	if err != nil {
		zap.L().Fatal("Failed to ensure platform purse", zap.Error(err))
	}

	zap.L().Info("Setup complete",
		zap.String("platform_purse_id", platform.Id),
		zap.String("currency", platform.Currency))
}
