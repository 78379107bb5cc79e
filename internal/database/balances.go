package database

import (
	"context"
	"fmt"

	"fixer-purse-ledger/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// integrityTolerance absorbs rounding drift from backends that store NUMERIC as floating point
var integrityTolerance = decimal.New(1, -2)

// GetPurseBalance returns the balance components and total for a purse (O(1) lookup)
func (s *Service) GetPurseBalance(ctx context.Context, purseId string) (*models.PurseBalance, error) {
	zap.L().Debug("Getting purse balance", zap.String("purse_id", purseId))

	purse, err := getPurse(ctx, s.db, s.dialect, purseId, false)
	if err != nil {
		return nil, err
	}

	balance := purse.Balance()
	zap.L().Debug("Retrieved purse balance",
		zap.String("purse_id", purseId),
		zap.String("total", balance.Total.String()))
	return &balance, nil
}

// VerifyPurseIntegrity compares the stored total with credits minus debits over the full history
func (s *Service) VerifyPurseIntegrity(ctx context.Context, purseId string) (*models.IntegrityReport, error) {
	zap.L().Info("Verifying purse integrity", zap.String("purse_id", purseId))

	purse, err := getPurse(ctx, s.db, s.dialect, purseId, false)
	if err != nil {
		return nil, err
	}

	// Calculate balance from transaction history
	var credits, debits decimal.Decimal
	err = s.db.QueryRowContext(ctx, s.dialect.rebind(querySumPurseMovements), purseId, purseId).Scan(&credits, &debits)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate balance from transactions: %w", err)
	}

	stored := purse.Total()
	calculated := credits.Sub(debits)
	difference := stored.Sub(calculated)

	report := &models.IntegrityReport{
		PurseId:           purseId,
		IsValid:           difference.Abs().LessThan(integrityTolerance),
		PurseBalance:      stored,
		CalculatedBalance: calculated,
		Difference:        difference,
	}

	if !report.IsValid {
		zap.L().Error("Purse integrity check failed",
			zap.String("purse_id", purseId),
			zap.String("purse_balance", stored.String()),
			zap.String("calculated_balance", calculated.String()),
			zap.String("difference", difference.String()))
		return report, nil
	}

	zap.L().Info("Purse integrity check successful",
		zap.String("purse_id", purseId),
		zap.String("balance", stored.String()))
	return report, nil
}
