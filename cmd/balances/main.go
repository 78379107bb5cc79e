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
	"flag"
	"fmt"

	"fixer-purse-ledger/internal/common"
	"fixer-purse-ledger/internal/config"

	"go.uber.org/zap"
)

type balanceStats struct {
	totalPurses     int
	fundedPurses    int
	platformRevenue string
}

type balanceRow struct {
	name  string
	value string
}

func formatVersion(version int64) string {
	if version == 0 {
		return "new"
	}
	return fmt.Sprintf("v%d", version)
}

func printPurse(info common.PurseInfo, scale int32) {
	purse := info.Purse
	fmt.Printf("\n┌─ Purse: %s (%s)\n", info.Label, purse.Currency)
	fmt.Printf("│  ID: %s  %s  updated: %s\n", purse.Id, formatVersion(purse.Version), purse.UpdatedAt.Format("2006-01-02 15:04:05"))
	common.PrintBoxSeparator(78)

	rows := []balanceRow{
		{"available", common.FormatAmount(purse.Available, scale, purse.Currency)},
		{"pending", common.FormatAmount(purse.Pending, scale, purse.Currency)},
		{"commission", common.FormatAmount(purse.Commission, scale, purse.Currency)},
	}
	if purse.Owner.IsPlatform() {
		rows = append(rows, balanceRow{"total revenue", common.FormatAmount(purse.TotalRevenue, scale, purse.Currency)})
	}
	rows = append(rows, balanceRow{"total", common.FormatAmount(purse.Total(), scale, purse.Currency)})

	for i, row := range rows {
		fmt.Printf("%s %-15s: %20s\n", common.BoxPrefix(i == len(rows)-1), row.name, row.value)
	}
}

func generateReport(purses []common.PurseInfo, scale int32) balanceStats {
	stats := balanceStats{platformRevenue: "none"}
	for _, info := range purses {
		stats.totalPurses++
		if !info.Purse.Total().IsZero() {
			stats.fundedPurses++
		}
		if info.Purse.Owner.IsPlatform() {
			stats.platformRevenue = common.FormatAmount(info.Purse.TotalRevenue, scale, info.Purse.Currency)
		}
		printPurse(info, scale)
	}
	return stats
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	userFlag := flag.String("user", "", "Filter by specific user id (optional)")
	flag.Parse()

	logger.Info("Starting balance query")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	purses, err := common.SelectPurses(ctx, dbService, *userFlag, logger)
	if err != nil {
		logger.Fatal("Failed to select purses", zap.Error(err))
	}

	common.PrintHeader("PURSE BALANCE REPORT", common.DefaultWidth)
	stats := generateReport(purses, cfg.Ledger.CurrencyScale)

	summary := fmt.Sprintf("SUMMARY: %d purses (%d with a non-zero balance), platform revenue %s",
		stats.totalPurses, stats.fundedPurses, stats.platformRevenue)
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Balance query completed",
		zap.Int("purses_queried", stats.totalPurses),
		zap.Int("funded_purses", stats.fundedPurses))
}
