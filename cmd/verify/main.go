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
	"os"

	"fixer-purse-ledger/internal/common"
	"fixer-purse-ledger/internal/config"
	"fixer-purse-ledger/internal/formance"
	"fixer-purse-ledger/internal/models"
	"fixer-purse-ledger/internal/store"

	"go.uber.org/zap"
)

type sweepStats struct {
	checked    int
	drifted    int
	mirrorDiff int
}

// compareMirror reports whether the Formance mirror agrees with the stored total
func compareMirror(ctx context.Context, mirror *formance.Service, info common.PurseInfo) bool {
	mirrored, err := mirror.PurseTotal(ctx, info.Id)
	if err != nil {
		zap.L().Warn("Failed to read mirrored purse total", zap.String("purse_id", info.Id), zap.Error(err))
		return false
	}
	stored := info.Purse.Total()
	if !mirrored.Equal(stored) {
		zap.L().Warn("Formance mirror disagrees with purse store",
			zap.String("purse_id", info.Id),
			zap.String("stored", stored.String()),
			zap.String("mirrored", mirrored.String()))
		return false
	}
	return true
}

func printReport(info common.PurseInfo, report *models.IntegrityReport, isLast bool) {
	status := "OK"
	if !report.IsValid {
		status = "DRIFT"
	}
	fmt.Printf("%s %-5s %-40s stored=%s calculated=%s difference=%s\n",
		common.BoxPrefix(isLast), status, info.Label,
		report.PurseBalance.String(), report.CalculatedBalance.String(), report.Difference.String())
}

func sweep(ctx context.Context, services *common.Services, purses []common.PurseInfo, withMirror bool) sweepStats {
	var stats sweepStats
	for i, info := range purses {
		report, err := services.LedgerService.VerifyPurseIntegrity(ctx, info.Id)
		if err != nil {
			zap.L().Fatal("Failed to verify purse", zap.String("purse_id", info.Id), zap.Error(err))
		}
		stats.checked++
		printReport(info, report, i == len(purses)-1)

		if mismatch := store.IntegrityError(report); mismatch != nil {
			stats.drifted++
			zap.L().Error("Purse drift detected", zap.Error(mismatch))
		}
		if withMirror && !compareMirror(ctx, services.Mirror, info) {
			stats.mirrorDiff++
		}
	}
	return stats
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	userFlag := flag.String("user", "", "Verify only the purse of this user id (optional)")
	mirrorFlag := flag.Bool("mirror", false, "Also compare purse totals with the Formance mirror")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	withMirror := *mirrorFlag
	if withMirror && services.Mirror == nil {
		logger.Warn("Mirror comparison requested but Formance is not configured")
		withMirror = false
	}

	purses, err := common.SelectPurses(ctx, services.DbService, *userFlag, logger)
	if err != nil {
		logger.Fatal("Failed to select purses", zap.Error(err))
	}

	common.PrintHeader("PURSE INTEGRITY SWEEP", common.WideWidth)
	stats := sweep(ctx, services, purses, withMirror)

	summary := fmt.Sprintf("SUMMARY: %d purses checked, %d drifted", stats.checked, stats.drifted)
	if withMirror {
		summary += fmt.Sprintf(", %d disagree with the mirror", stats.mirrorDiff)
	}
	common.PrintFooter(summary, common.WideWidth)

	if stats.drifted > 0 || stats.mirrorDiff > 0 {
		services.Close()
		loggerCleanup()
		os.Exit(1)
	}
}
